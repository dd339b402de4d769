package providers

import "time"

// local mocks to avoid import cycle with testutil

type testLogger struct{}

func (m *testLogger) Errorf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *testLogger) Warnf(_ TypeEnum, _ string, _ ...interface{})  {}
func (m *testLogger) Debugf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *testLogger) Infof(_ TypeEnum, _ string, _ ...interface{})  {}
func (m *testLogger) Fatalf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *testLogger) Close()                                        {}

type testMetrics struct {
	requestEndpoint string
	requestStatus   int
	requestCalls    int
	durationCalls   int
	hits            int
	misses          int
}

func (m *testMetrics) IncRequestsTotal(endpoint string, status int) {
	m.requestEndpoint = endpoint
	m.requestStatus = status
	m.requestCalls++
}
func (m *testMetrics) ObserveRequestDuration(_ string, _ time.Duration) { m.durationCalls++ }
func (m *testMetrics) IncCacheHits()                                    { m.hits++ }
func (m *testMetrics) IncCacheMisses()                                  { m.misses++ }
func (m *testMetrics) IncUnlocks(_ string)                              {}
func (m *testMetrics) AddPointsConsumed(_ int)                          {}
func (m *testMetrics) IncBlockCommands(_ string)                        {}
func (m *testMetrics) ObserveSyncDuration(_ time.Duration)              {}
func (m *testMetrics) IncUsageEvents(_ string)                          {}
func (m *testMetrics) AddUsageSeconds(_ string, _ int)                  {}
func (m *testMetrics) IncStoreErrors(_ string)                          {}
