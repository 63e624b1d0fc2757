package controllers

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"pld/internal/cloud"
	"pld/internal/services"
)

type HealthController struct {
	store     services.EventStoreServiceInterface
	state     cloud.StateStoreInterface
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Records       int     `json:"records"`
	StreakDays    int     `json:"streak_days"`
	Dirty         bool    `json:"dirty"`
	SyncEnabled   bool    `json:"sync_enabled"`
	LastSyncTime  int64   `json:"last_sync_time"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	streakDays := 0
	if streak := hc.store.GetStreak(); streak != nil {
		streakDays = streak.CurrentStreak
	}
	syncState := hc.state.Get()

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Records:       hc.store.Len(),
		StreakDays:    streakDays,
		Dirty:         hc.store.Dirty(),
		SyncEnabled:   syncState.Enabled,
		LastSyncTime:  syncState.LastSyncTime,
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

func NewHealthController(store services.EventStoreServiceInterface, state cloud.StateStoreInterface) *HealthController {
	return &HealthController{
		store:     store,
		state:     state,
		startTime: time.Now(),
	}
}
