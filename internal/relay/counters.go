package relay

import (
	"context"
	"strd/internal/identity"
	"strd/internal/models"
	"strd/internal/store"
	"strd/internal/structures"
	"sync"
)

const SamplerStore = "store"

// StoreCounters reads the cumulative usage counters the OS-level agent
// keeps under usage:counter:<tokenHash>.
type StoreCounters struct {
	store store.SharedStore
	codec *store.Codec

	mu    sync.RWMutex
	names map[string]string
}

func NewStoreCounters(s store.SharedStore, codec *store.Codec) *StoreCounters {
	return &StoreCounters{store: s, codec: codec, names: make(map[string]string)}
}

// Handles lists every handle with a counter and caches its display name.
func (c *StoreCounters) Handles(ctx context.Context) ([]models.AppHandle, error) {
	keys, err := c.store.List(ctx, store.PrefixUsageCounter)
	if err != nil {
		return nil, err
	}
	handles := make([]models.AppHandle, 0, len(keys))
	for _, key := range keys {
		var counter models.UsageCounter
		if err := store.GetJSON(ctx, c.store, c.codec, key, &counter); err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if len(counter.Handle) == 0 {
			continue
		}
		c.mu.Lock()
		c.names[identity.Hash(counter.Handle)] = counter.DisplayName
		c.mu.Unlock()
		handles = append(handles, counter.Handle)
	}
	return handles, nil
}

// Cumulative returns the running total for handle; a missing counter is 0.
func (c *StoreCounters) Cumulative(ctx context.Context, handle models.AppHandle) (int, error) {
	var counter models.UsageCounter
	err := store.GetJSON(ctx, c.store, c.codec, store.UsageCounterKey(identity.Hash(handle)), &counter)
	if store.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.Seconds, nil
}

func (c *StoreCounters) DisplayName(_ context.Context, handle models.AppHandle) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[identity.Hash(handle)]
	return name, ok && name != ""
}

// Sampling is the pull side of the monitor: a sampler and the handles to
// poll with it.
type Sampling struct {
	Sampler UsageSampler
	Handles func(ctx context.Context) ([]models.AppHandle, error)
}

// NewSampling returns nil unless sampler.driver selects a source.
func NewSampling(conf *structures.Config, s store.SharedStore, codec *store.Codec) *Sampling {
	if conf.Sampler.Driver != SamplerStore {
		return nil
	}
	counters := NewStoreCounters(s, codec)
	return &Sampling{
		Sampler: NewDeltaSampler(counters),
		Handles: counters.Handles,
	}
}
