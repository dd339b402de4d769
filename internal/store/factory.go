package store

import (
	"context"
	"fmt"
	"strd/internal/providers"
	"strd/internal/structures"
	"time"

	"github.com/go-redis/redis/v8"
)

const connectTimeout = 5 * time.Second

func NewSharedStore(conf *structures.Config, client *redis.Client, logger providers.Logger, metrics providers.MetricsProviderInterface) (SharedStore, func(), error) {
	var (
		s   SharedStore
		err error
	)

	switch conf.Store.Driver {
	case "memory":
		logger.Warnf(providers.TypeApp, "Memory store selected: state is not shared with other processes")
		s = NewMemoryStore()
	case "file":
		s, err = NewFileStore(conf.Store.Dir)
	case "sqlite", "postgres", "mysql":
		s, err = OpenSQLStore(conf.Store.Driver, conf.Store.Dsn)
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		s, err = NewRedisStore(ctx, client, conf.Store.Prefix)
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", conf.Store.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	logger.Infof(providers.TypeApp, "Shared store initialized: %s", conf.Store.Driver)
	cleanup := func() {
		if err := s.Close(); err != nil {
			logger.Errorf(providers.TypeApp, "Error closing store: %s", err)
		}
	}
	return NewInstrumentedStore(s, metrics), cleanup, nil
}

func NewNotifier(conf *structures.Config, client *redis.Client, logger providers.Logger) (Notifier, func(), error) {
	var n Notifier
	switch conf.Notifier.Driver {
	case "none", "":
		n = NoopNotifier{}
	case "local":
		logger.Warnf(providers.TypeApp, "Local notifier selected: other processes will only see changes on refresh")
		n = NewLocalNotifier()
	case "redis":
		n = NewRedisNotifier(client, conf.Notifier.Channel)
	case "mqtt":
		m, err := NewMQTTNotifier(conf)
		if err != nil {
			return nil, nil, err
		}
		n = m
	default:
		return nil, nil, fmt.Errorf("unsupported notifier driver: %s", conf.Notifier.Driver)
	}

	logger.Infof(providers.TypeApp, "Notifier initialized: %s", conf.Notifier.Driver)
	return n, func() { _ = n.Close() }, nil
}
