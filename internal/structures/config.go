package structures

import "time"

const (
	RoleForeground = "foreground"
	RoleMonitor    = "monitor"
)

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

// StoreConfig selects the durable store shared by both processes.
// Dsn is used by the sql drivers, Dir by the file driver.
type StoreConfig struct {
	Driver   string `yaml:"driver" validate:"required|in:memory,file,sqlite,postgres,mysql,redis"`
	Dsn      string `yaml:"dsn"`
	Dir      string `yaml:"dir"`
	Prefix   string `yaml:"prefix"`
	Compress bool   `yaml:"compress"`
}

type NotifierConfig struct {
	Driver   string `yaml:"driver" validate:"required|in:none,local,redis,mqtt"`
	Channel  string `yaml:"channel"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientID"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SyncConfig struct {
	RefreshInterval  time.Duration `yaml:"refreshInterval" validate:"required|min:1"`
	FlushInterval    time.Duration `yaml:"flushInterval" validate:"required|min:1"`
	DrainInterval    time.Duration `yaml:"drainInterval"`
	ForceResyncEvery int           `yaml:"forceResyncEvery"`
}

// SamplerConfig selects where the monitor pulls cumulative usage from.
type SamplerConfig struct {
	Driver   string        `yaml:"driver" validate:"in:none,store"`
	Interval time.Duration `yaml:"interval"`
}

type RewardsConfig struct {
	Timezone                  string `yaml:"timezone"`
	MinUnlockMinutes          int    `yaml:"minUnlockMinutes"`
	MinChallengeUnlockMinutes int    `yaml:"minChallengeUnlockMinutes"`
}

type UsageConfig struct {
	HistoryDays int `yaml:"historyDays"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AppConfig is a guardian-selected app. Handle is the base64 form of the
// opaque handle handed out by the platform picker.
type AppConfig struct {
	Handle          string `yaml:"handle"`
	DisplayName     string `yaml:"displayName"`
	Category        string `yaml:"category"`
	PointsPerMinute int    `yaml:"pointsPerMinute"`
	LogicalID       string `yaml:"logicalID"`
}

type GoalConfig struct {
	RewardAppID   string `yaml:"rewardAppID"`
	LearningAppID string `yaml:"learningAppID"`
	TargetMinutes int    `yaml:"targetMinutes"`
	UnlockMode    string `yaml:"unlockMode"`
}

type WindowConfig struct {
	Weekday     string `yaml:"weekday"`
	StartHour   int    `yaml:"startHour"`
	StartMinute int    `yaml:"startMinute"`
	EndHour     int    `yaml:"endHour"`
	EndMinute   int    `yaml:"endMinute"`
}

type ScheduleConfig struct {
	AppID             string         `yaml:"appID"`
	DailyLimitMinutes *int           `yaml:"dailyLimitMinutes"`
	DowntimeWindows   []WindowConfig `yaml:"downtimeWindows"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	Role      string           `yaml:"role" validate:"required|in:foreground,monitor"`
	WebServer Server           `yaml:"webServer"`
	Logger    LoggerConfig     `yaml:"logger"`
	Store     StoreConfig      `yaml:"store"`
	Notifier  NotifierConfig   `yaml:"notifier"`
	Redis     RedisConfig      `yaml:"redis"`
	Sync      SyncConfig       `yaml:"sync"`
	Sampler   SamplerConfig    `yaml:"sampler"`
	Rewards   RewardsConfig    `yaml:"rewards"`
	Usage     UsageConfig      `yaml:"usage"`
	Cache     CacheConfig      `yaml:"cache"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Apps      []AppConfig      `yaml:"apps"`
	Goals     []GoalConfig     `yaml:"goals"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}
