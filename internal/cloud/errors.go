package cloud

import (
	"errors"
	"fmt"
)

// maxErrorBodyLen caps provider response bodies carried inside error
// messages; the full body may be arbitrarily large HTML.
const maxErrorBodyLen = 300

// ErrSyncInFlight is returned by SyncEngine.Run when a pass is already
// active. The caller reports "already syncing" and does not treat it as a
// sync failure.
var ErrSyncInFlight = errors.New("sync already in progress")

// ErrAuthInProgress is returned by StartAuth when an interactive
// authorization flow is already pending.
var ErrAuthInProgress = errors.New("authorization already in progress")

// ConfigError reports an operation attempted without the configuration it
// needs. It is never retried; the user has to fix the config first.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// AuthError reports a failed token exchange, refresh or interactive
// authorization. Body, when set, holds a truncated provider response.
type AuthError struct {
	Message string
	Body    string
}

func (e *AuthError) Error() string {
	if e.Body == "" {
		return e.Message
	}
	return e.Message + ": " + e.Body
}

// TransportError reports a non-success status from the remote file store.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote store returned status %d: %s", e.Status, e.Body)
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > maxErrorBodyLen {
		return s[:maxErrorBodyLen]
	}
	return s
}
