package relay

import (
	"context"
	"strd/internal/providers"
	"strd/internal/structures"
	"sync"
	"time"

	"github.com/roylee0704/gron"
)

type SchedulerInterface interface {
	Init()
	Stop()
	Refresh(ctx context.Context) error
	Persist(ctx context.Context) error
}

// Scheduler runs the periodic jobs of one process. The monitor flushes
// samples, the foreground drains events, both refresh blocking. Jobs never
// overlap.
type Scheduler struct {
	config    *structures.Config
	logger    providers.Logger
	refresher *Refresher
	monitor   MonitorInterface
	receiver  *Receiver
	sampling  *Sampling
	cron      *gron.Cron
	opsMu     sync.Mutex
}

// NewScheduler builds a scheduler. monitor and sampling are nil in the
// foreground role and receiver is nil in the monitor role. sampling is also
// nil when no usage source is configured.
func NewScheduler(config *structures.Config, logger providers.Logger, refresher *Refresher, monitor MonitorInterface, receiver *Receiver, sampling *Sampling) *Scheduler {
	return &Scheduler{
		config:    config,
		logger:    logger,
		refresher: refresher,
		monitor:   monitor,
		receiver:  receiver,
		sampling:  sampling,
	}
}

func (s *Scheduler) job(name string, timeout time.Duration, fn func(ctx context.Context) error) func() {
	return func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Errorf(providers.TypeSync, "%s job: %s", name, err)
		}
	}
}

func (s *Scheduler) Init() {
	s.cron = gron.New()
	conf := s.config.Sync

	s.cron.AddFunc(gron.Every(conf.RefreshInterval), s.job("refresh", conf.RefreshInterval, s.Refresh))

	if s.monitor != nil {
		s.cron.AddFunc(gron.Every(conf.FlushInterval), s.job("flush", conf.FlushInterval, s.Flush))
	}
	if s.monitor != nil && s.sampling != nil && s.config.Sampler.Interval > 0 {
		interval := s.config.Sampler.Interval
		s.cron.AddFunc(gron.Every(interval), s.job("sample", interval, s.Sample))
	}
	if s.receiver != nil && conf.DrainInterval > 0 {
		s.cron.AddFunc(gron.Every(conf.DrainInterval), s.job("drain", conf.DrainInterval, s.Drain))
	}

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Refresh(ctx context.Context) error {
	_, err := s.refresher.Tick(ctx)
	return err
}

func (s *Scheduler) Flush(ctx context.Context) error {
	n, err := s.monitor.Flush(ctx)
	if n > 0 {
		s.logger.Debugf(providers.TypeUsage, "flushed %d samples", n)
	}
	return err
}

// Sample pulls deltas from the configured source into the monitor buffer.
func (s *Scheduler) Sample(ctx context.Context) error {
	handles, err := s.sampling.Handles(ctx)
	if err != nil {
		return err
	}
	if n := s.monitor.Sample(ctx, s.sampling.Sampler, handles); n > 0 {
		s.logger.Debugf(providers.TypeUsage, "sampled %d handles", n)
	}
	return nil
}

func (s *Scheduler) Drain(ctx context.Context) error {
	_, err := s.receiver.Drain(ctx)
	return err
}

// Persist flushes buffered samples before shutdown.
func (s *Scheduler) Persist(ctx context.Context) error {
	if s.monitor == nil {
		return nil
	}
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Flushing %d pending samples...", s.monitor.Pending())
	if err := s.Flush(ctx); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while flushing samples: %s", err)
		return err
	}
	return nil
}
