package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pld/internal/cloud"
	"pld/internal/testutil"
)

// --- local fakes (scoped to controller tests) ---

type fakeSyncRunner struct {
	mu       sync.Mutex
	outcome  cloud.SyncOutcome
	err      error
	inFlight bool
	runs     int
}

func (f *fakeSyncRunner) Run(ctx context.Context) (cloud.SyncOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	if f.err != nil {
		return "", f.err
	}
	return f.outcome, nil
}

func (f *fakeSyncRunner) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

type fakeCredentials struct {
	mu          sync.Mutex
	has         bool
	authURL     string
	startErr    error
	cancelRet   bool
	status      cloud.AuthStatus
	onDone      func(error)
	startCalls  int
	cancelCalls int
}

func (f *fakeCredentials) EnsureAccessToken(ctx context.Context) (string, error) {
	return "token", nil
}

func (f *fakeCredentials) HasCredential() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.has
}

func (f *fakeCredentials) StartAuth(ctx context.Context, onDone func(error)) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return "", f.startErr
	}
	f.onDone = onDone
	return f.authURL, nil
}

func (f *fakeCredentials) CancelAuth() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return f.cancelRet
}

func (f *fakeCredentials) AuthStatus() cloud.AuthStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// --- helpers ---

type syncFixture struct {
	logger *testutil.MockLogger
	state  *stateStub
	engine *fakeSyncRunner
	creds  *fakeCredentials
	sched  *testutil.MockScheduler
	sc     *SyncController
}

func newSyncFixture() *syncFixture {
	logger := &testutil.MockLogger{}
	state := &stateStub{}
	engine := &fakeSyncRunner{outcome: cloud.OutcomeUpToDate}
	creds := &fakeCredentials{authURL: "https://accounts.example.com/o/oauth2/v2/auth?client_id=abc"}
	sched := &testutil.MockScheduler{}
	sc := NewSyncController(logger, state, engine, creds, sched)
	return &syncFixture{
		logger: logger,
		state:  state,
		engine: engine,
		creds:  creds,
		sched:  sched,
		sc:     sc,
	}
}

// --- RunSync tests ---

func TestRunSync_Success(t *testing.T) {
	f := newSyncFixture()
	f.engine.outcome = cloud.OutcomePushed

	req := httptest.NewRequest(http.MethodPost, "/sync/run", nil)
	rr := httptest.NewRecorder()
	f.sc.RunSync(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp syncRunResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "pushed", resp.Result)
	assert.Equal(t, 1, f.engine.runs)
}

func TestRunSync_AlreadyInFlight(t *testing.T) {
	f := newSyncFixture()
	f.engine.err = cloud.ErrSyncInFlight

	req := httptest.NewRequest(http.MethodPost, "/sync/run", nil)
	rr := httptest.NewRecorder()
	f.sc.RunSync(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "already syncing")
}

func TestRunSync_ConfigError(t *testing.T) {
	f := newSyncFixture()
	f.engine.err = &cloud.ConfigError{Message: "cloud sync is disabled"}

	req := httptest.NewRequest(http.MethodPost, "/sync/run", nil)
	rr := httptest.NewRecorder()
	f.sc.RunSync(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "cloud sync is disabled")
}

func TestRunSync_UpstreamError(t *testing.T) {
	f := newSyncFixture()
	f.engine.err = &cloud.TransportError{Status: 503, Body: "backend unavailable"}

	req := httptest.NewRequest(http.MethodPost, "/sync/run", nil)
	rr := httptest.NewRecorder()
	f.sc.RunSync(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "503")
}

// --- Status tests ---

func TestSyncStatus_RedactsTokens(t *testing.T) {
	f := newSyncFixture()
	require.NoError(t, f.state.Update(func(s *cloud.SyncState) {
		s.Enabled = true
		s.RefreshToken = "1//refresh-secret"
		s.AccessToken = "ya29.access-secret"
		s.FileID = "file-123"
		s.LastHash = "abcdef"
		s.LastSyncTime = 1700000000000
		s.LastError = "previous failure"
	}))
	f.creds.has = true

	req := httptest.NewRequest(http.MethodGet, "/sync/status", nil)
	rr := httptest.NewRecorder()
	f.sc.Status(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.NotContains(t, body, "refresh-secret")
	assert.NotContains(t, body, "access-secret")

	var resp syncStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Enabled)
	assert.True(t, resp.Authorized)
	assert.False(t, resp.InFlight)
	assert.Equal(t, "file-123", resp.FileID)
	assert.Equal(t, "abcdef", resp.LastHash)
	assert.Equal(t, int64(1700000000000), resp.LastSyncTime)
	assert.Equal(t, "previous failure", resp.LastError)
}

func TestSyncStatus_ReportsInFlight(t *testing.T) {
	f := newSyncFixture()
	f.engine.inFlight = true

	req := httptest.NewRequest(http.MethodGet, "/sync/status", nil)
	rr := httptest.NewRecorder()
	f.sc.Status(rr, req)

	var resp syncStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.InFlight)
	assert.False(t, resp.Authorized)
}

// --- Enable tests ---

func TestSyncEnable_StartsTimer(t *testing.T) {
	f := newSyncFixture()

	req := httptest.NewRequest(http.MethodPost, "/sync/enable", strings.NewReader(`{"enabled":true}`))
	rr := httptest.NewRecorder()
	f.sc.Enable(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, f.state.Get().Enabled)
	assert.Equal(t, 1, f.sched.StartSyncCount())
	assert.Zero(t, f.sched.StopSyncCount())
}

func TestSyncEnable_StopsTimer(t *testing.T) {
	f := newSyncFixture()
	require.NoError(t, f.state.Update(func(s *cloud.SyncState) { s.Enabled = true }))

	req := httptest.NewRequest(http.MethodPost, "/sync/enable", strings.NewReader(`{"enabled":false}`))
	rr := httptest.NewRecorder()
	f.sc.Enable(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, f.state.Get().Enabled)
	assert.Equal(t, 1, f.sched.StopSyncCount())
	assert.Zero(t, f.sched.StartSyncCount())
}

func TestSyncEnable_MalformedBody(t *testing.T) {
	f := newSyncFixture()

	req := httptest.NewRequest(http.MethodPost, "/sync/enable", strings.NewReader("{oops"))
	rr := httptest.NewRecorder()
	f.sc.Enable(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, f.sched.StartSyncCount())
	assert.Zero(t, f.sched.StopSyncCount())
}

func TestSyncEnable_PersistFailureStillApplies(t *testing.T) {
	f := newSyncFixture()
	f.state.updateErr = assert.AnError

	req := httptest.NewRequest(http.MethodPost, "/sync/enable", strings.NewReader(`{"enabled":true}`))
	rr := httptest.NewRecorder()
	f.sc.Enable(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, f.sched.StartSyncCount())
	assert.True(t, f.logger.HasLevel("warn"))
}

// --- AuthStart tests ---

func TestAuthStart_ReturnsAuthURL(t *testing.T) {
	f := newSyncFixture()

	req := httptest.NewRequest(http.MethodPost, "/sync/auth/start", nil)
	rr := httptest.NewRecorder()
	f.sc.AuthStart(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp authStartResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, f.creds.authURL, resp.AuthURL)
	require.NotNil(t, f.creds.onDone)
}

func TestAuthStart_AlreadyInProgress(t *testing.T) {
	f := newSyncFixture()
	f.creds.startErr = cloud.ErrAuthInProgress

	req := httptest.NewRequest(http.MethodPost, "/sync/auth/start", nil)
	rr := httptest.NewRecorder()
	f.sc.AuthStart(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAuthStart_MissingClientConfig(t *testing.T) {
	f := newSyncFixture()
	f.creds.startErr = &cloud.ConfigError{Message: "sync.clientId is not configured"}

	req := httptest.NewRequest(http.MethodPost, "/sync/auth/start", nil)
	rr := httptest.NewRecorder()
	f.sc.AuthStart(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "clientId")
}

func TestAuthStart_CompletionStartsTimerWhenEnabled(t *testing.T) {
	f := newSyncFixture()
	require.NoError(t, f.state.Update(func(s *cloud.SyncState) { s.Enabled = true }))

	req := httptest.NewRequest(http.MethodPost, "/sync/auth/start", nil)
	rr := httptest.NewRecorder()
	f.sc.AuthStart(rr, req)
	require.NotNil(t, f.creds.onDone)

	f.creds.onDone(nil)
	assert.Equal(t, 1, f.sched.StartSyncCount())
}

func TestAuthStart_CompletionSkipsTimerWhenDisabled(t *testing.T) {
	f := newSyncFixture()

	req := httptest.NewRequest(http.MethodPost, "/sync/auth/start", nil)
	rr := httptest.NewRecorder()
	f.sc.AuthStart(rr, req)
	require.NotNil(t, f.creds.onDone)

	f.creds.onDone(nil)
	assert.Zero(t, f.sched.StartSyncCount())
}

func TestAuthStart_FailedCompletionNeverStartsTimer(t *testing.T) {
	f := newSyncFixture()
	require.NoError(t, f.state.Update(func(s *cloud.SyncState) { s.Enabled = true }))

	req := httptest.NewRequest(http.MethodPost, "/sync/auth/start", nil)
	rr := httptest.NewRecorder()
	f.sc.AuthStart(rr, req)
	require.NotNil(t, f.creds.onDone)

	f.creds.onDone(assert.AnError)
	assert.Zero(t, f.sched.StartSyncCount())
}

// --- AuthCancel / AuthStatus tests ---

func TestAuthCancel_ReportsWhetherFlowWasPending(t *testing.T) {
	f := newSyncFixture()
	f.creds.cancelRet = true

	req := httptest.NewRequest(http.MethodPost, "/sync/auth/cancel", nil)
	rr := httptest.NewRecorder()
	f.sc.AuthCancel(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp authCancelResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Canceled)
	assert.Equal(t, 1, f.creds.cancelCalls)
}

func TestAuthStatus_PassesThrough(t *testing.T) {
	f := newSyncFixture()
	f.creds.status = cloud.AuthStatus{State: cloud.AuthStatePending, AuthURL: "https://accounts.example.com/auth"}

	req := httptest.NewRequest(http.MethodGet, "/sync/auth/status", nil)
	rr := httptest.NewRecorder()
	f.sc.AuthStatus(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var status cloud.AuthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, cloud.AuthStatePending, status.State)
	assert.Equal(t, "https://accounts.example.com/auth", status.AuthURL)
}
