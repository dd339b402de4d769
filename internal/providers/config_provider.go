package providers

import (
	"fmt"
	"path/filepath"
	"strd/internal/structures"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("role", structures.RoleForeground)
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.prefix", "strd:")
	v.SetDefault("notifier.driver", "none")
	v.SetDefault("notifier.channel", "strd.usage")
	v.SetDefault("sync.refreshInterval", 30*time.Second)
	v.SetDefault("sync.flushInterval", 5*time.Second)
	v.SetDefault("sync.drainInterval", 10*time.Second)
	v.SetDefault("sync.forceResyncEvery", 10)
	v.SetDefault("sampler.driver", "none")
	v.SetDefault("sampler.interval", 15*time.Second)
	v.SetDefault("rewards.timezone", "Local")
	v.SetDefault("rewards.minUnlockMinutes", 15)
	v.SetDefault("rewards.minChallengeUnlockMinutes", 1)
	v.SetDefault("usage.historyDays", 30)
	v.SetDefault("cache.ttl", 2*time.Second)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")
	setDefaults(v)

	v.BindEnv("logger.level", "STRD_LOG_LEVEL")
	v.BindEnv("role", "STRD_ROLE")
	v.BindEnv("store.driver", "STRD_STORE_DRIVER")
	v.BindEnv("store.dsn", "STRD_STORE_DSN")
	v.BindEnv("sync.refreshInterval", "STRD_REFRESH_INTERVAL")
	v.BindEnv("notifier.driver", "STRD_NOTIFIER_DRIVER")
	v.BindEnv("cache.enabled", "STRD_CACHE_ENABLED")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if flags.Role != "" {
		conf.Role = flags.Role
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "ScreenTimeRewardsDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
