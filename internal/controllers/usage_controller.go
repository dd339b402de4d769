package controllers

import (
	"errors"
	"net/http"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/relay"

	json "github.com/goccy/go-json"
)

// UsageController accepts foreground-time samples in the monitor process.
type UsageController struct {
	logger  providers.Logger
	monitor relay.MonitorInterface
}

func NewUsageController(logger providers.Logger, monitor relay.MonitorInterface) *UsageController {
	return &UsageController{
		logger:  logger,
		monitor: monitor,
	}
}

func (uc *UsageController) ReceiveUsage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var sample models.UsageSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := uc.monitor.Enqueue(sample); err != nil {
		if errors.Is(err, models.ErrInvalidSample) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		uc.logger.Errorf(providers.TypePost, "enqueue sample: %s", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
