package controllers

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
	"github.com/spf13/cast"

	"pld/internal/cloud"
	"pld/internal/models"
	"pld/internal/providers"
	"pld/internal/services"
	"pld/internal/structures"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// maxImportBodySize bounds manual imports, which carry whole histories.
const maxImportBodySize = 32 << 20

type ApiController struct {
	logger  providers.Logger
	conf    *structures.Config
	store   services.EventStoreServiceInterface
	engine  services.StatsEngineInterface
	tracker services.StreakTrackerInterface
	cache   providers.CacheProviderInterface
	state   cloud.StateStoreInterface
}

func NewApiController(logger providers.Logger, conf *structures.Config, store services.EventStoreServiceInterface, engine services.StatsEngineInterface, tracker services.StreakTrackerInterface, cache providers.CacheProviderInterface, state cloud.StateStoreInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		conf:    conf,
		store:   store,
		engine:  engine,
		tracker: tracker,
		cache:   cache,
		state:   state,
	}
}

type statusResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type importResponse struct {
	OK      bool `json:"ok"`
	Records int  `json:"records"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusResponse{OK: false, Message: message})
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// ReceiveEvent ingests one play event: append, advance the streak, and stamp
// the tracking start date the first time anything is accepted.
func (ac *ApiController) ReceiveEvent(w http.ResponseWriter, r *http.Request) {
	if !ac.conf.Tracking.Enabled {
		writeError(w, http.StatusForbidden, "tracking is disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var record models.PlayRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "malformed play event")
		return
	}

	v := validate.Struct(&record)
	if !v.Validate() {
		writeError(w, http.StatusBadRequest, v.Errors.One())
		return
	}
	if record.DurationListened < 0 {
		writeError(w, http.StatusBadRequest, "durationListened must not be negative")
		return
	}

	ac.store.Append(&record)

	if next, changed := ac.tracker.Advance(ac.store.GetStreak(), record.Timestamp); changed {
		ac.store.SetStreak(next.LastListenDate, next.CurrentStreak)
	}

	if ac.state.Get().TrackingStartDate == "" {
		day := ac.engine.DayKey(time.UnixMilli(record.Timestamp))
		if err := ac.state.Update(func(s *cloud.SyncState) {
			s.TrackingStartDate = day
		}); err != nil {
			ac.logger.Warnf(providers.TypeApp, "Failed to persist tracking start date: %s", err)
		}
	}

	w.WriteHeader(http.StatusCreated)
}

// GetStats serves the full analytics snapshot. The cache key carries the
// document revision, so a cached response can never outlive the data it was
// computed from.
func (ac *ApiController) GetStats(w http.ResponseWriter, r *http.Request) {
	key := "stats:" + cast.ToString(ac.store.Revision())
	ac.serveFromCacheOrCompute(w, key, func() (any, error) {
		doc := ac.store.Snapshot()
		return ac.engine.ComputeSnapshot(doc.PlayRecords, doc.Streak, time.Now()), nil
	})
}

func (ac *ApiController) GetRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := cast.ToInt64(q.Get("from"))
	to := cast.ToInt64(q.Get("to"))

	writeJSON(w, http.StatusOK, ac.store.Query(from, to))
}

func (ac *ApiController) GetStreak(w http.ResponseWriter, r *http.Request) {
	streak := ac.store.GetStreak()
	if streak == nil {
		streak = &models.Streak{}
	}
	writeJSON(w, http.StatusOK, streak)
}

func (ac *ApiController) ExportDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.store.Export(time.Now()))
}

// ImportDocument replaces the whole document with the posted bundle. A failed
// persist is not an import failure: the document is replaced in memory and
// stays dirty for the next flush tick.
func (ac *ApiController) ImportDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
	var bundle models.ExportBundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		writeError(w, http.StatusBadRequest, "malformed export bundle")
		return
	}

	if err := ac.store.Import(&bundle); err != nil {
		ac.logger.Warnf(providers.TypeApp, "Imported document not yet persisted: %s", err)
	}

	writeJSON(w, http.StatusOK, importResponse{OK: true, Records: ac.store.Len()})
}
