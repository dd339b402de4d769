package store

import (
	"os"
	"time"
)

func writeRaw(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}

type countingMetrics struct {
	storeErrors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{storeErrors: make(map[string]int)}
}

func (m *countingMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (m *countingMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *countingMetrics) IncCacheHits()                                    {}
func (m *countingMetrics) IncCacheMisses()                                  {}
func (m *countingMetrics) IncUnlocks(_ string)                              {}
func (m *countingMetrics) AddPointsConsumed(_ int)                          {}
func (m *countingMetrics) IncBlockCommands(_ string)                        {}
func (m *countingMetrics) ObserveSyncDuration(_ time.Duration)              {}
func (m *countingMetrics) IncUsageEvents(_ string)                          {}
func (m *countingMetrics) AddUsageSeconds(_ string, _ int)                  {}
func (m *countingMetrics) IncStoreErrors(op string)                         { m.storeErrors[op]++ }
