package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strd/internal/structures"
	"time"

	json "github.com/goccy/go-json"
)

type BufferSizer interface {
	Pending() int
}

type EventBacklog interface {
	Pending(ctx context.Context) (int, error)
}

type HealthController struct {
	role      string
	buffer    BufferSizer
	events    EventBacklog
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Role          string  `json:"role"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	BufferSize    int     `json:"buffer_size"`
	PendingEvents int     `json:"pending_events"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Role:          hc.role,
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
	}
	if hc.buffer != nil {
		resp.BufferSize = hc.buffer.Pending()
	}
	if hc.events != nil {
		n, err := hc.events.Pending(r.Context())
		if err != nil {
			resp.Status = "degraded"
		}
		resp.PendingEvents = n
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

// NewHealthController builds the health endpoint. buffer is the monitor's
// sample buffer and may be nil.
func NewHealthController(conf *structures.Config, buffer BufferSizer, events EventBacklog) *HealthController {
	return &HealthController{
		role:      conf.Role,
		buffer:    buffer,
		events:    events,
		startTime: time.Now(),
	}
}
