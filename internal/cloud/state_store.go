package cloud

import (
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"pld/internal/providers"
	"pld/internal/structures"
)

// SyncState is the durable half of the cloud sync setup: tokens, the remote
// file id and the markers of the last successful pass. It lives in its own
// small file next to the config so token refreshes never rewrite user
// configuration.
type SyncState struct {
	Enabled           bool   `json:"enabled"`
	RefreshToken      string `json:"refreshToken,omitempty"`
	AccessToken       string `json:"accessToken,omitempty"`
	AccessTokenExpiry int64  `json:"accessTokenExpiry,omitempty"` // epoch ms
	FileID            string `json:"fileId,omitempty"`
	LastHash          string `json:"lastHash,omitempty"`
	LastSyncTime      int64  `json:"lastSyncTime,omitempty"` // epoch ms
	LastError         string `json:"lastError,omitempty"`
	TrackingStartDate string `json:"trackingStartDate,omitempty"`
}

type StateStoreInterface interface {
	Get() SyncState
	Update(mutate func(*SyncState)) error
}

// StateStore keeps SyncState in memory and writes every update through to
// disk atomically. Reads never touch the disk after construction.
type StateStore struct {
	path   string
	logger providers.Logger
	mu     sync.Mutex
	state  SyncState
}

func NewStateStore(conf *structures.Config, logger providers.Logger) StateStoreInterface {
	s := &StateStore{
		path:   conf.CloudSync.StateFile,
		logger: logger,
	}
	s.load(conf.CloudSync.Enabled)
	return s
}

func (s *StateStore) load(enabledDefault bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warnf(providers.TypeApp, "Could not read sync state file %s: %s", s.path, err)
		}
		s.state = SyncState{Enabled: enabledDefault}
		return
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		s.logger.Warnf(providers.TypeApp, "Sync state file %s is corrupted, starting fresh: %s", s.path, err)
		s.state = SyncState{Enabled: enabledDefault}
	}
}

func (s *StateStore) Get() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies the mutation and persists the result. The in-memory state
// keeps the mutation even when the write fails, so tokens stay usable for
// the rest of the session.
func (s *StateStore) Update(mutate func(*SyncState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutate(&s.state)

	data, err := json.Marshal(&s.state)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpFileName := s.path + ".tmp"
	file, err := os.Create(tmpFileName)
	if err != nil {
		return err
	}
	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFileName)
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFileName)
		return err
	}
	if err = file.Close(); err != nil {
		os.Remove(tmpFileName)
		return err
	}
	return os.Rename(tmpFileName, s.path)
}
