package cloud

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"

	"pld/internal/models"
	"pld/internal/providers"
	"pld/internal/services"
	"pld/internal/structures"
)

// SyncOutcome names what a successful reconciliation pass did.
type SyncOutcome string

const (
	OutcomeUpToDate SyncOutcome = "up-to-date"
	OutcomeCreated  SyncOutcome = "created"
	OutcomePushed   SyncOutcome = "pushed"
	OutcomePulled   SyncOutcome = "pulled"
	OutcomeMerged   SyncOutcome = "merged"
)

type SyncEngineInterface interface {
	Run(ctx context.Context) (SyncOutcome, error)
	InFlight() bool
}

// SyncEngine reconciles the local document with its remote copy. One pass at
// a time: a Run entered while another is active returns ErrSyncInFlight
// without touching any state.
type SyncEngine struct {
	conf     *structures.Config
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface
	store    services.EventStoreServiceInterface
	state    StateStoreInterface
	creds    CredentialManagerInterface
	drive    DriveClientInterface
	inFlight atomic.Bool
}

func NewSyncEngine(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, store services.EventStoreServiceInterface, state StateStoreInterface, creds CredentialManagerInterface, drive DriveClientInterface) SyncEngineInterface {
	return &SyncEngine{
		conf:    conf,
		logger:  logger,
		metrics: metrics,
		store:   store,
		state:   state,
		creds:   creds,
		drive:   drive,
	}
}

func (e *SyncEngine) InFlight() bool {
	return e.inFlight.Load()
}

// Run executes one reconciliation pass. Every failure lands in
// SyncState.LastError; the next scheduled tick retries independently.
func (e *SyncEngine) Run(ctx context.Context) (SyncOutcome, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return "", ErrSyncInFlight
	}
	defer e.inFlight.Store(false)

	start := time.Now()
	outcome, err := e.pass(ctx)
	e.metrics.ObserveSyncDuration(time.Since(start))

	if err != nil {
		e.metrics.IncSyncPasses("failure")
		e.logger.Errorf(providers.TypeSync, "Sync pass failed: %s", err)
		if uerr := e.state.Update(func(s *SyncState) { s.LastError = err.Error() }); uerr != nil {
			e.logger.Warnf(providers.TypeSync, "Could not record sync error: %s", uerr)
		}
		return "", err
	}

	e.metrics.IncSyncPasses(string(outcome))
	e.logger.Infof(providers.TypeSync, "Sync pass finished: %s", outcome)
	return outcome, nil
}

func (e *SyncEngine) pass(ctx context.Context) (SyncOutcome, error) {
	st := e.state.Get()
	if !st.Enabled {
		return "", &ConfigError{Message: "cloud sync is disabled"}
	}
	cs := e.conf.CloudSync
	if cs.ClientID == "" || cs.ClientSecret == "" {
		return "", &ConfigError{Message: "cloud sync is not configured: client id and secret are required"}
	}
	if !e.creds.HasCredential() {
		return "", &ConfigError{Message: "not authorized with the cloud provider yet"}
	}

	token, err := e.creds.EnsureAccessToken(ctx)
	if err != nil {
		return "", err
	}

	now := time.Now()
	bundle := e.store.Export(now)
	localHash, err := bundle.Document().ContentHash()
	if err != nil {
		return "", err
	}
	content, err := json.Marshal(bundle)
	if err != nil {
		return "", err
	}

	fileID := st.FileID
	if fileID == "" {
		ref, findErr := e.drive.FindFile(ctx, token, cs.FileName)
		if findErr != nil {
			return "", findErr
		}
		if ref != nil {
			fileID = ref.ID
		}
	}

	// No remote copy at all: initialize it from the local document.
	if fileID == "" {
		id, createErr := e.drive.Create(ctx, token, cs.FileName, content)
		if createErr != nil {
			return "", createErr
		}
		e.logger.Infof(providers.TypeSync, "Created remote file %s with %d records", id, len(bundle.PlayRecords))
		if err = e.finishPass(id, localHash); err != nil {
			return "", err
		}
		return OutcomeCreated, nil
	}

	remoteRaw, err := e.drive.Download(ctx, token, fileID)
	if err != nil {
		// A remote id that cannot be downloaded counts as a gone file.
		e.logger.Warnf(providers.TypeSync, "Remote file %s is unreadable (%s), overwriting with local data", fileID, err)
		return e.push(ctx, token, fileID, content, localHash)
	}

	var remote models.ExportBundle
	if err = json.Unmarshal(remoteRaw, &remote); err != nil {
		e.logger.Warnf(providers.TypeSync, "Remote file %s is not a valid export (%s), overwriting with local data", fileID, err)
		return e.push(ctx, token, fileID, content, localHash)
	}
	remoteHash, err := remote.Document().ContentHash()
	if err != nil {
		return "", err
	}

	if remoteHash == localHash {
		if err = e.finishPass(fileID, localHash); err != nil {
			return "", err
		}
		return OutcomeUpToDate, nil
	}

	switch {
	case st.LastHash == "":
		// No baseline from an earlier sync: the newer export wins.
		if remote.ExportDate > bundle.ExportDate {
			return e.pull(fileID, &remote, remoteHash)
		}
		return e.push(ctx, token, fileID, content, localHash)
	case localHash != st.LastHash && remoteHash != st.LastHash:
		return e.merge(ctx, token, fileID, bundle, &remote, now)
	case remoteHash != st.LastHash:
		return e.pull(fileID, &remote, remoteHash)
	default:
		return e.push(ctx, token, fileID, content, localHash)
	}
}

func (e *SyncEngine) push(ctx context.Context, token, fileID string, content []byte, hash string) (SyncOutcome, error) {
	if err := e.drive.Update(ctx, token, fileID, content); err != nil {
		return "", err
	}
	if err := e.finishPass(fileID, hash); err != nil {
		return "", err
	}
	return OutcomePushed, nil
}

func (e *SyncEngine) pull(fileID string, remote *models.ExportBundle, remoteHash string) (SyncOutcome, error) {
	if err := e.store.Import(remote); err != nil {
		return "", err
	}
	if err := e.finishPass(fileID, remoteHash); err != nil {
		return "", err
	}
	return OutcomePulled, nil
}

// merge reconciles divergent documents: union of records, larger aggregates,
// later streak. The merged bundle replaces both the local document and the
// remote file.
func (e *SyncEngine) merge(ctx context.Context, token, fileID string, local, remote *models.ExportBundle, now time.Time) (SyncOutcome, error) {
	merged := models.MergeBundles(local, remote, now)
	mergedHash, err := merged.Document().ContentHash()
	if err != nil {
		return "", err
	}

	if err = e.store.Import(merged); err != nil {
		return "", err
	}
	content, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	if err = e.drive.Update(ctx, token, fileID, content); err != nil {
		return "", err
	}

	e.logger.Infof(providers.TypeSync, "Merged local and remote documents into %d records", len(merged.PlayRecords))
	if err = e.finishPass(fileID, mergedHash); err != nil {
		return "", err
	}
	return OutcomeMerged, nil
}

// finishPass records the markers of a successful pass and clears the error.
func (e *SyncEngine) finishPass(fileID, hash string) error {
	return e.state.Update(func(s *SyncState) {
		s.FileID = fileID
		s.LastHash = hash
		s.LastSyncTime = time.Now().UnixMilli()
		s.LastError = ""
	})
}
