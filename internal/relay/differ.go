package relay

import (
	"context"
	"strd/internal/identity"
	"strd/internal/models"
	"sync"
)

// CumulativeDiffer turns running totals into deltas. The first value seen
// for a key only sets the baseline; a total lower than the previous one is a
// counter reset and counts in full.
type CumulativeDiffer struct {
	mu   sync.Mutex
	last map[string]int
}

func NewCumulativeDiffer() *CumulativeDiffer {
	return &CumulativeDiffer{last: make(map[string]int)}
}

func (d *CumulativeDiffer) Delta(key string, cumulative int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, seen := d.last[key]
	d.last[key] = cumulative
	switch {
	case !seen:
		return 0
	case cumulative < prev:
		return cumulative
	default:
		return cumulative - prev
	}
}

func (d *CumulativeDiffer) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, key)
}

// UsageSampler reports foreground seconds for handle since its last call.
type UsageSampler interface {
	UsageDelta(ctx context.Context, handle models.AppHandle) (int, error)
}

// CumulativeSource reports a running total of foreground seconds.
type CumulativeSource interface {
	Cumulative(ctx context.Context, handle models.AppHandle) (int, error)
}

// NameResolver returns the display name the platform shows for handle.
type NameResolver interface {
	DisplayName(ctx context.Context, handle models.AppHandle) (string, bool)
}

// DeltaSampler adapts a cumulative source to UsageSampler.
type DeltaSampler struct {
	source CumulativeSource
	differ *CumulativeDiffer
}

func NewDeltaSampler(source CumulativeSource) *DeltaSampler {
	return &DeltaSampler{source: source, differ: NewCumulativeDiffer()}
}

func (s *DeltaSampler) UsageDelta(ctx context.Context, handle models.AppHandle) (int, error) {
	total, err := s.source.Cumulative(ctx, handle)
	if err != nil {
		return 0, err
	}
	return s.differ.Delta(identity.Hash(handle), total), nil
}

// DisplayName forwards to the source when it resolves names.
func (s *DeltaSampler) DisplayName(ctx context.Context, handle models.AppHandle) (string, bool) {
	if namer, ok := s.source.(NameResolver); ok {
		return namer.DisplayName(ctx, handle)
	}
	return "", false
}
