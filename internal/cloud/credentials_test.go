package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pld/internal/structures"
	"pld/internal/testutil"
)

func syncConfig(t *testing.T) *structures.Config {
	conf := &structures.Config{AppName: "PlayLogDaemon"}
	conf.CloudSync = structures.CloudSyncConfig{
		Enabled:      true,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		FileName:     "playlog-data.json",
		AuthURL:      "https://auth.example/consent",
		Scope:        "scope/appdata",
		SyncInterval: 10 * time.Minute,
		AuthTimeout:  5 * time.Minute,
		StateFile:    filepath.Join(t.TempDir(), "sync-state.json"),
	}
	return conf
}

// tokenServer fakes the OAuth token endpoint and records every form it sees.
type tokenServer struct {
	mu       sync.Mutex
	forms    []url.Values
	status   int
	body     string
	response map[string]interface{}
}

func newTokenServer(response map[string]interface{}) (*tokenServer, *httptest.Server) {
	ts := &tokenServer{status: http.StatusOK, response: response}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		ts.mu.Lock()
		ts.forms = append(ts.forms, r.PostForm)
		status, body, response := ts.status, ts.body, ts.response
		ts.mu.Unlock()

		w.WriteHeader(status)
		if body != "" {
			w.Write([]byte(body))
			return
		}
		data, _ := json.Marshal(response)
		w.Write(data)
	}))
	return ts, server
}

func (ts *tokenServer) calls() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.forms)
}

func (ts *tokenServer) lastForm() url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.forms) == 0 {
		return nil
	}
	return ts.forms[len(ts.forms)-1]
}

type fakePrompt struct {
	mu       sync.Mutex
	approve  bool
	messages []string
}

func (p *fakePrompt) Confirm(message string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return p.approve
}

type fakeOpener struct {
	mu     sync.Mutex
	err    error
	opened []string
}

func (o *fakeOpener) Open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, url)
	return o.err
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

type credsFixture struct {
	conf    *structures.Config
	logger  *testutil.MockLogger
	state   StateStoreInterface
	manager CredentialManagerInterface
	prompt  *fakePrompt
	opener  *fakeOpener
}

func newCredsFixture(t *testing.T, tokenURL string) *credsFixture {
	conf := syncConfig(t)
	conf.CloudSync.TokenURL = tokenURL
	logger := &testutil.MockLogger{}
	state := NewStateStore(conf, logger)
	prompt := &fakePrompt{approve: true}
	opener := &fakeOpener{}
	manager := NewCredentialManager(conf, logger, state, &http.Client{Timeout: 5 * time.Second}, prompt, opener)
	return &credsFixture{conf: conf, logger: logger, state: state, manager: manager, prompt: prompt, opener: opener}
}

func startAuthFlow(t *testing.T, m CredentialManagerInterface) (string, chan error) {
	done := make(chan error, 1)
	authURL, err := m.StartAuth(context.Background(), func(e error) { done <- e })
	require.NoError(t, err)
	return authURL, done
}

func waitDone(t *testing.T, done chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("authorization flow did not resolve")
		return nil
	}
}

func TestCredentialManager_PersistedTokenServes(t *testing.T) {
	ts, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	require.NoError(t, f.state.Update(func(s *SyncState) {
		s.AccessToken = "persisted-token"
		s.AccessTokenExpiry = time.Now().Add(10 * time.Minute).UnixMilli()
	}))

	token, err := f.manager.EnsureAccessToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "persisted-token", token)
	assert.Zero(t, ts.calls())
}

func TestCredentialManager_TokenInsideSkewWindowRefreshes(t *testing.T) {
	ts, server := newTokenServer(map[string]interface{}{
		"access_token": "fresh-token",
		"expires_in":   3600,
	})
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	// Expires in 30s: nominally valid, but inside the 60s skew window.
	require.NoError(t, f.state.Update(func(s *SyncState) {
		s.AccessToken = "stale-token"
		s.AccessTokenExpiry = time.Now().Add(30 * time.Second).UnixMilli()
		s.RefreshToken = "refresh-1"
	}))

	token, err := f.manager.EnsureAccessToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, ts.calls())
}

func TestCredentialManager_ExpiredTokenRefreshesExactlyOnce(t *testing.T) {
	ts, server := newTokenServer(map[string]interface{}{
		"access_token": "fresh-token",
		"expires_in":   3600,
	})
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	before := time.Now()
	require.NoError(t, f.state.Update(func(s *SyncState) {
		s.AccessToken = "stale-token"
		s.AccessTokenExpiry = before.Add(-time.Second).UnixMilli()
		s.RefreshToken = "refresh-1"
		s.LastError = "previous failure"
	}))

	token, err := f.manager.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	require.Equal(t, 1, ts.calls())

	form := ts.lastForm()
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "refresh-1", form.Get("refresh_token"))
	assert.Equal(t, "client-id", form.Get("client_id"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))

	st := f.state.Get()
	assert.Equal(t, "fresh-token", st.AccessToken)
	assert.Empty(t, st.LastError)
	// Stored expiry carries the 60s skew: now + 3600s - 60s.
	wantExpiry := before.Add(3540 * time.Second).UnixMilli()
	assert.InDelta(t, wantExpiry, st.AccessTokenExpiry, float64(10*time.Second.Milliseconds()))

	// The refreshed token now serves without another exchange.
	token, err = f.manager.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, ts.calls())
}

func TestCredentialManager_SessionTokenServesWhenPersistedCopyGone(t *testing.T) {
	ts, server := newTokenServer(map[string]interface{}{
		"access_token": "fresh-token",
		"expires_in":   3600,
	})
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	require.NoError(t, f.state.Update(func(s *SyncState) {
		s.RefreshToken = "refresh-1"
	}))
	_, err := f.manager.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, ts.calls())

	// Wipe the persisted copy; the session cache still serves.
	require.NoError(t, f.state.Update(func(s *SyncState) {
		s.AccessToken = ""
		s.AccessTokenExpiry = 0
	}))

	token, err := f.manager.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, ts.calls())
}

func TestCredentialManager_MissingRefreshToken(t *testing.T) {
	ts, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	_, err := f.manager.EnsureAccessToken(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "missing refresh token", authErr.Message)
	assert.Zero(t, ts.calls())
	assert.False(t, f.manager.HasCredential())
}

func TestCredentialManager_RefreshFailureTruncatesBody(t *testing.T) {
	ts, server := newTokenServer(nil)
	defer server.Close()
	ts.status = http.StatusInternalServerError
	ts.body = strings.Repeat("x", 400)
	f := newCredsFixture(t, server.URL)

	require.NoError(t, f.state.Update(func(s *SyncState) {
		s.RefreshToken = "refresh-1"
	}))

	_, err := f.manager.EnsureAccessToken(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Message, "token refresh failed")
	assert.Len(t, authErr.Body, 300)
}

func TestCredentialManager_AuthSuccess(t *testing.T) {
	ts, server := newTokenServer(map[string]interface{}{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"expires_in":    3600,
	})
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	authURL, done := startAuthFlow(t, f.manager)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.True(t, strings.HasPrefix(authURL, f.conf.CloudSync.AuthURL))
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "offline", query.Get("access_type"))
	assert.Equal(t, "consent", query.Get("prompt"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.NotEmpty(t, query.Get("code_challenge"))
	assert.NotEmpty(t, query.Get("state"))
	redirectURI := query.Get("redirect_uri")
	assert.True(t, strings.HasPrefix(redirectURI, "http://127.0.0.1:"))

	assert.Equal(t, AuthStatePending, f.manager.AuthStatus().State)
	assert.Equal(t, authURL, f.manager.AuthStatus().AuthURL)

	// Simulate the provider redirecting back with a code.
	resp, err := http.Get(redirectURI + "?state=" + url.QueryEscape(query.Get("state")) + "&code=auth-code-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, AuthStateSuccess, f.manager.AuthStatus().State)

	form := ts.lastForm()
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "auth-code-1", form.Get("code"))
	assert.Equal(t, redirectURI, form.Get("redirect_uri"))

	// The PKCE verifier sent to the token endpoint must match the challenge
	// advertised in the authorization URL.
	verifier := form.Get("code_verifier")
	require.NotEmpty(t, verifier)
	sum := sha256.Sum256([]byte(verifier))
	assert.Equal(t, query.Get("code_challenge"), base64.RawURLEncoding.EncodeToString(sum[:]))

	st := f.state.Get()
	assert.Equal(t, "access-1", st.AccessToken)
	assert.Equal(t, "refresh-1", st.RefreshToken)
	assert.True(t, f.manager.HasCredential())

	// The loopback listener is gone after resolution.
	_, err = http.Get(redirectURI)
	assert.Error(t, err)
}

func TestCredentialManager_AuthProviderError(t *testing.T) {
	_, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	authURL, done := startAuthFlow(t, f.manager)
	parsed, _ := url.Parse(authURL)
	query := parsed.Query()

	resp, err := http.Get(query.Get("redirect_uri") + "?state=" + url.QueryEscape(query.Get("state")) + "&error=access_denied")
	require.NoError(t, err)
	resp.Body.Close()

	err = waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorization denied: access_denied")
	status := f.manager.AuthStatus()
	assert.Equal(t, AuthStateFailed, status.State)
	assert.Contains(t, status.Error, "access_denied")
}

func TestCredentialManager_AuthStateMismatchFails(t *testing.T) {
	_, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	authURL, done := startAuthFlow(t, f.manager)
	parsed, _ := url.Parse(authURL)

	resp, err := http.Get(parsed.Query().Get("redirect_uri") + "?state=forged&code=auth-code-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	err = waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestCredentialManager_AuthDeclined(t *testing.T) {
	ts, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)
	f.prompt.approve = false

	_, done := startAuthFlow(t, f.manager)

	err := waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorization declined")
	assert.Equal(t, AuthStateFailed, f.manager.AuthStatus().State)
	assert.Zero(t, f.opener.openCount())
	assert.Zero(t, ts.calls())
}

func TestCredentialManager_AuthTimeout(t *testing.T) {
	ts, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)
	f.conf.CloudSync.AuthTimeout = 100 * time.Millisecond

	_, done := startAuthFlow(t, f.manager)

	err := waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorization timed out")
	assert.Equal(t, AuthStateFailed, f.manager.AuthStatus().State)
	assert.Zero(t, ts.calls())
}

func TestCredentialManager_AuthCanceled(t *testing.T) {
	_, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	_, done := startAuthFlow(t, f.manager)

	assert.True(t, f.manager.CancelAuth())
	err := waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorization canceled")

	// Nothing left to cancel once the flow resolved.
	assert.False(t, f.manager.CancelAuth())
}

func TestCredentialManager_AuthAlreadyInProgress(t *testing.T) {
	_, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	_, done := startAuthFlow(t, f.manager)
	defer func() {
		f.manager.CancelAuth()
		waitDone(t, done)
	}()

	_, err := f.manager.StartAuth(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAuthInProgress)
}

func TestCredentialManager_AuthRequiresClientCredentials(t *testing.T) {
	_, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)
	f.conf.CloudSync.ClientID = ""

	_, err := f.manager.StartAuth(context.Background(), nil)

	var confErr *ConfigError
	require.ErrorAs(t, err, &confErr)
}

func TestCredentialManager_DegradedSuccessWithoutRefreshToken(t *testing.T) {
	_, server := newTokenServer(map[string]interface{}{
		"access_token": "access-1",
		"expires_in":   3600,
	})
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	authURL, done := startAuthFlow(t, f.manager)
	parsed, _ := url.Parse(authURL)
	query := parsed.Query()

	resp, err := http.Get(query.Get("redirect_uri") + "?state=" + url.QueryEscape(query.Get("state")) + "&code=auth-code-1")
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, AuthStateSuccess, f.manager.AuthStatus().State)

	st := f.state.Get()
	assert.Equal(t, "access-1", st.AccessToken)
	assert.Empty(t, st.RefreshToken)
	assert.True(t, f.logger.HasLevel("warn"))
}

func TestCredentialManager_AuthFlowInvokesPromptAndOpener(t *testing.T) {
	_, server := newTokenServer(nil)
	defer server.Close()
	f := newCredsFixture(t, server.URL)

	authURL, done := startAuthFlow(t, f.manager)
	defer func() {
		f.manager.CancelAuth()
		waitDone(t, done)
	}()

	require.Eventually(t, func() bool { return f.opener.openCount() == 1 }, time.Second, 10*time.Millisecond)
	f.opener.mu.Lock()
	opened := f.opener.opened[0]
	f.opener.mu.Unlock()
	assert.Equal(t, authURL, opened)

	f.prompt.mu.Lock()
	require.Len(t, f.prompt.messages, 1)
	assert.Contains(t, f.prompt.messages[0], authURL)
	f.prompt.mu.Unlock()
}

func TestCredentialManager_OpenerFailureIsNotTerminal(t *testing.T) {
	_, server := newTokenServer(map[string]interface{}{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"expires_in":    3600,
	})
	defer server.Close()
	f := newCredsFixture(t, server.URL)
	f.opener.err = errors.New("no browser available")

	authURL, done := startAuthFlow(t, f.manager)
	parsed, _ := url.Parse(authURL)
	query := parsed.Query()

	// The flow keeps waiting; a manual visit still completes it.
	resp, err := http.Get(query.Get("redirect_uri") + "?state=" + url.QueryEscape(query.Get("state")) + "&code=auth-code-1")
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, waitDone(t, done))
	assert.True(t, f.logger.HasLevel("warn"))
}

func TestLogPrompt_ApprovesAndLogs(t *testing.T) {
	logger := &testutil.MockLogger{}
	prompt := NewLogPrompt(logger)

	assert.True(t, prompt.Confirm("visit https://example.com"))
	require.NotEmpty(t, logger.Entries())
	assert.Equal(t, "info", logger.Entries()[0].Level)
}
