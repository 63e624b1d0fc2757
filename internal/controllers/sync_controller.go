package controllers

import (
	"context"
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"pld/internal/cloud"
	"pld/internal/playlog/interfaces"
	"pld/internal/providers"
)

// SyncController exposes the cloud reconciliation surface: manual passes,
// state inspection, the enable switch and the interactive authorization flow.
type SyncController struct {
	logger    providers.Logger
	state     cloud.StateStoreInterface
	engine    cloud.SyncEngineInterface
	creds     cloud.CredentialManagerInterface
	scheduler interfaces.SchedulerInterface
}

func NewSyncController(logger providers.Logger, state cloud.StateStoreInterface, engine cloud.SyncEngineInterface, creds cloud.CredentialManagerInterface, scheduler interfaces.SchedulerInterface) *SyncController {
	return &SyncController{
		logger:    logger,
		state:     state,
		engine:    engine,
		creds:     creds,
		scheduler: scheduler,
	}
}

type syncRunResponse struct {
	OK     bool   `json:"ok"`
	Result string `json:"result"`
}

type syncStatusResponse struct {
	Enabled           bool   `json:"enabled"`
	Authorized        bool   `json:"authorized"`
	InFlight          bool   `json:"inFlight"`
	FileID            string `json:"fileId,omitempty"`
	LastHash          string `json:"lastHash,omitempty"`
	LastSyncTime      int64  `json:"lastSyncTime,omitempty"`
	LastError         string `json:"lastError,omitempty"`
	TrackingStartDate string `json:"trackingStartDate,omitempty"`
}

type syncEnableRequest struct {
	Enabled bool `json:"enabled"`
}

type syncEnableResponse struct {
	OK      bool `json:"ok"`
	Enabled bool `json:"enabled"`
}

type authStartResponse struct {
	OK      bool   `json:"ok"`
	AuthURL string `json:"authUrl"`
}

type authCancelResponse struct {
	OK       bool `json:"ok"`
	Canceled bool `json:"canceled"`
}

// RunSync triggers one reconciliation pass on the caller's request. An
// in-flight pass is a conflict, a misconfiguration is the caller's error and
// everything else is an upstream failure.
func (sc *SyncController) RunSync(w http.ResponseWriter, r *http.Request) {
	outcome, err := sc.engine.Run(r.Context())
	if err != nil {
		var confErr *cloud.ConfigError
		switch {
		case errors.Is(err, cloud.ErrSyncInFlight):
			writeError(w, http.StatusConflict, "already syncing")
		case errors.As(err, &confErr):
			writeError(w, http.StatusBadRequest, confErr.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, syncRunResponse{OK: true, Result: string(outcome)})
}

// Status reports the persisted sync state without the token material.
func (sc *SyncController) Status(w http.ResponseWriter, r *http.Request) {
	st := sc.state.Get()
	writeJSON(w, http.StatusOK, syncStatusResponse{
		Enabled:           st.Enabled,
		Authorized:        sc.creds.HasCredential(),
		InFlight:          sc.engine.InFlight(),
		FileID:            st.FileID,
		LastHash:          st.LastHash,
		LastSyncTime:      st.LastSyncTime,
		LastError:         st.LastError,
		TrackingStartDate: st.TrackingStartDate,
	})
}

// Enable flips the sync switch and starts or stops the sync timer in the same
// request, so a configuration change never waits for a poll.
func (sc *SyncController) Enable(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req syncEnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	if err := sc.state.Update(func(s *cloud.SyncState) {
		s.Enabled = req.Enabled
	}); err != nil {
		sc.logger.Warnf(providers.TypeSync, "Sync switch not yet persisted: %s", err)
	}

	if req.Enabled {
		sc.scheduler.StartSync()
	} else {
		sc.scheduler.StopSync()
	}

	writeJSON(w, http.StatusOK, syncEnableResponse{OK: true, Enabled: req.Enabled})
}

// AuthStart launches the interactive authorization flow and returns the
// authorization URL; the flow itself resolves in the background. When it
// resolves successfully and sync is enabled, the sync timer starts.
func (sc *SyncController) AuthStart(w http.ResponseWriter, r *http.Request) {
	authURL, err := sc.creds.StartAuth(context.Background(), func(err error) {
		if err != nil {
			return
		}
		if sc.state.Get().Enabled {
			sc.scheduler.StartSync()
		}
	})
	if err != nil {
		var confErr *cloud.ConfigError
		switch {
		case errors.Is(err, cloud.ErrAuthInProgress):
			writeError(w, http.StatusConflict, "authorization already in progress")
		case errors.As(err, &confErr):
			writeError(w, http.StatusBadRequest, confErr.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, authStartResponse{OK: true, AuthURL: authURL})
}

func (sc *SyncController) AuthCancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, authCancelResponse{OK: true, Canceled: sc.creds.CancelAuth()})
}

func (sc *SyncController) AuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sc.creds.AuthStatus())
}
