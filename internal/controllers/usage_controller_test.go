package controllers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strd/internal/models"
	"strd/internal/relay"
	"strd/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	samples []models.UsageSample
	err     error
}

func (f *fakeMonitor) Enqueue(s models.UsageSample) error {
	if f.err != nil {
		return f.err
	}
	if len(s.Handle) == 0 || s.Seconds < 0 {
		return models.ErrInvalidSample
	}
	f.samples = append(f.samples, s)
	return nil
}
func (f *fakeMonitor) Pending() int                         { return len(f.samples) }
func (f *fakeMonitor) Flush(_ context.Context) (int, error) { return 0, nil }
func (f *fakeMonitor) Sample(_ context.Context, _ relay.UsageSampler, _ []models.AppHandle) int {
	return 0
}

func TestReceiveUsage_Accepted(t *testing.T) {
	mon := &fakeMonitor{}
	uc := NewUsageController(&testutil.MockLogger{}, mon)
	handle := base64.StdEncoding.EncodeToString([]byte("game"))

	rr := post(uc.ReceiveUsage, "/usage", `{"handle":"`+handle+`","seconds":30,"at":"2026-03-10T16:00:00Z"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, mon.samples, 1)
	assert.Equal(t, models.AppHandle("game"), mon.samples[0].Handle)
	assert.Equal(t, 30, mon.samples[0].Seconds)
	assert.Equal(t, 16, mon.samples[0].At.Hour())
	assert.Empty(t, mon.samples[0].DisplayName)

	rr = post(uc.ReceiveUsage, "/usage", `{"handle":"`+handle+`","seconds":10,"display_name":"Game"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, mon.samples, 2)
	assert.Equal(t, "Game", mon.samples[1].DisplayName)
}

func TestReceiveUsage_Rejected(t *testing.T) {
	mon := &fakeMonitor{}
	uc := NewUsageController(&testutil.MockLogger{}, mon)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"no handle", `{"seconds":30}`},
		{"negative", `{"handle":"Z2FtZQ==","seconds":-5}`},
		{"bad base64", `{"handle":"***","seconds":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, post(uc.ReceiveUsage, "/usage", tt.body).Code)
		})
	}
	assert.Empty(t, mon.samples)
}

func TestReceiveUsage_InternalError(t *testing.T) {
	logger := &testutil.MockLogger{}
	uc := NewUsageController(logger, &fakeMonitor{err: errors.New("boom")})

	rr := post(uc.ReceiveUsage, "/usage", `{"handle":"Z2FtZQ==","seconds":5}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 1, logger.Count("error"))
}
