package providers

import (
	"fmt"
	"strd/internal/structures"
	"time"

	"github.com/gookit/validate"
)

type CnfValidatorInterface interface {
	Validate() error
}

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) CnfValidatorInterface {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	v.StopOnError = true
	if !v.Validate() {
		return v.Errors.OneError()
	}
	return cv.validateDependent()
}

// validateDependent covers rules that span sections and cannot be written
// as struct tags.
func (cv *CnfValidator) validateDependent() error {
	c := cv.conf
	switch c.Store.Driver {
	case "file":
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the file driver")
		}
	case "sqlite", "postgres", "mysql":
		if c.Store.Dsn == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	}
	if (c.Store.Driver == "redis" || c.Notifier.Driver == "redis") && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is used")
	}
	if c.Notifier.Driver == "mqtt" && c.Notifier.Broker == "" {
		return fmt.Errorf("notifier.broker is required for the mqtt driver")
	}
	if c.Rewards.Timezone != "" {
		if _, err := time.LoadLocation(c.Rewards.Timezone); err != nil {
			return fmt.Errorf("rewards.timezone: %w", err)
		}
	}
	if c.Rewards.MinUnlockMinutes < 0 || c.Rewards.MinChallengeUnlockMinutes < 0 {
		return fmt.Errorf("rewards minimum unlock minutes must not be negative")
	}
	return nil
}
