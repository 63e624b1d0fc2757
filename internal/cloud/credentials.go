package cloud

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"pld/internal/providers"
	"pld/internal/structures"
)

// tokenExpirySkew is subtracted from the provider's expires_in when storing
// and added to "now" when checking, so a token is never presented within a
// minute of its real expiry.
const tokenExpirySkew = 60 * time.Second

const defaultAuthTimeout = 5 * time.Minute

const (
	AuthStateIdle    = "idle"
	AuthStatePending = "pending"
	AuthStateSuccess = "success"
	AuthStateFailed  = "failed"
)

// AuthStatus is the poll view of the interactive authorization flow.
type AuthStatus struct {
	State   string `json:"state"`
	AuthURL string `json:"authUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

type CredentialManagerInterface interface {
	EnsureAccessToken(ctx context.Context) (string, error)
	HasCredential() bool
	StartAuth(ctx context.Context, onDone func(error)) (string, error)
	CancelAuth() bool
	AuthStatus() AuthStatus
}

// CredentialManager owns OAuth tokens. Reads prefer the persisted state,
// then the in-memory session cache, then a refresh exchange; interactive
// authorization runs a one-shot loopback listener and resolves exactly once.
type CredentialManager struct {
	conf   *structures.Config
	logger providers.Logger
	state  StateStoreInterface
	client *http.Client
	prompt UserPrompt
	opener ExternalOpener

	mu             sync.Mutex
	sessionAccess  string
	sessionExpiry  int64 // epoch ms, already skewed
	sessionRefresh string
	authCancel     context.CancelFunc // non-nil while a flow is pending
	status         AuthStatus
}

func NewCredentialManager(conf *structures.Config, logger providers.Logger, state StateStoreInterface, client *http.Client, prompt UserPrompt, opener ExternalOpener) CredentialManagerInterface {
	return &CredentialManager{
		conf:   conf,
		logger: logger,
		state:  state,
		client: client,
		prompt: prompt,
		opener: opener,
		status: AuthStatus{State: AuthStateIdle},
	}
}

// EnsureAccessToken returns a token valid for at least the skew window.
// Order: persisted token, session token, refresh exchange. A missing refresh
// token means interactive authorization is required.
func (m *CredentialManager) EnsureAccessToken(ctx context.Context) (string, error) {
	cutoff := time.Now().Add(tokenExpirySkew).UnixMilli()

	st := m.state.Get()
	if st.AccessToken != "" && st.AccessTokenExpiry > cutoff {
		return st.AccessToken, nil
	}

	m.mu.Lock()
	sessionAccess, sessionExpiry, sessionRefresh := m.sessionAccess, m.sessionExpiry, m.sessionRefresh
	m.mu.Unlock()
	if sessionAccess != "" && sessionExpiry > cutoff {
		return sessionAccess, nil
	}

	refreshToken := st.RefreshToken
	if refreshToken == "" {
		refreshToken = sessionRefresh
	}
	if refreshToken == "" {
		return "", &AuthError{Message: "missing refresh token"}
	}

	form := url.Values{}
	form.Set("client_id", m.conf.CloudSync.ClientID)
	form.Set("client_secret", m.conf.CloudSync.ClientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	tr, err := m.requestToken(ctx, "token refresh", form)
	if err != nil {
		return "", err
	}
	m.logger.Debugf(providers.TypeSync, "Access token refreshed, valid for %ds", tr.ExpiresIn)
	return m.storeToken(tr), nil
}

// HasCredential reports whether any credential exists at all, persisted or
// session, without touching the network.
func (m *CredentialManager) HasCredential() bool {
	st := m.state.Get()
	if st.RefreshToken != "" || st.AccessToken != "" {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionRefresh != "" || m.sessionAccess != ""
}

// StartAuth begins the interactive authorization flow and returns the URL
// the user has to visit. The flow itself runs in the background; its outcome
// is observable through AuthStatus and the optional onDone callback.
func (m *CredentialManager) StartAuth(ctx context.Context, onDone func(error)) (string, error) {
	cs := m.conf.CloudSync
	if cs.ClientID == "" || cs.ClientSecret == "" {
		return "", &ConfigError{Message: "cloud sync is not configured: client id and secret are required"}
	}

	verifier, err := randomToken(32)
	if err != nil {
		return "", err
	}
	challengeSum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(challengeSum[:])
	stateParam, err := randomToken(16)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.authCancel != nil {
		m.mu.Unlock()
		return "", ErrAuthInProgress
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("could not start authorization callback listener: %w", err)
	}
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", listener.Addr().(*net.TCPAddr).Port)

	params := url.Values{}
	params.Set("client_id", cs.ClientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", cs.Scope)
	params.Set("code_challenge", challenge)
	params.Set("code_challenge_method", "S256")
	params.Set("state", stateParam)
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")
	authURL := cs.AuthURL + "?" + params.Encode()

	timeout := cs.AuthTimeout
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	flowCtx, cancel := context.WithTimeout(context.Background(), timeout)
	m.authCancel = cancel
	m.status = AuthStatus{State: AuthStatePending, AuthURL: authURL}
	m.mu.Unlock()

	go m.runAuthFlow(flowCtx, cancel, listener, authURL, stateParam, verifier, redirectURI, onDone)
	return authURL, nil
}

// CancelAuth aborts a pending flow. Returns false when none is running.
func (m *CredentialManager) CancelAuth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authCancel == nil {
		return false
	}
	m.authCancel()
	return true
}

func (m *CredentialManager) AuthStatus() AuthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

type authResolution struct {
	code string
	err  error
}

// runAuthFlow serves the loopback callback and waits for whichever terminal
// event fires first: callback with a code, callback with a provider error,
// user decline, timeout, or cancellation. The listener is torn down on every
// path.
func (m *CredentialManager) runAuthFlow(ctx context.Context, cancel context.CancelFunc, listener net.Listener, authURL, stateParam, verifier, redirectURI string, onDone func(error)) {
	resolved := make(chan authResolution, 1)
	var once sync.Once
	resolve := func(code string, err error) {
		once.Do(func() {
			resolved <- authResolution{code: code, err: err}
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != stateParam:
			http.Error(w, "Authorization failed: state mismatch.", http.StatusBadRequest)
			resolve("", &AuthError{Message: "authorization state mismatch"})
		case query.Get("error") != "":
			fmt.Fprintln(w, "Authorization failed. You can close this tab.")
			resolve("", &AuthError{Message: "authorization denied: " + query.Get("error")})
		case query.Get("code") == "":
			http.Error(w, "Authorization failed: no code received.", http.StatusBadRequest)
			resolve("", &AuthError{Message: "authorization callback carried no code"})
		default:
			fmt.Fprintln(w, "Authorization complete. You can close this tab.")
			resolve(query.Get("code"), nil)
		}
	})
	server := &http.Server{Handler: mux}
	go func() {
		_ = server.Serve(listener)
	}()

	if !m.prompt.Confirm("Open the authorization page in your browser:\n" + authURL) {
		resolve("", &AuthError{Message: "authorization declined"})
	} else if err := m.opener.Open(authURL); err != nil {
		// Not terminal: the URL is in the status endpoint and the log.
		m.logger.Warnf(providers.TypeSync, "Could not open browser (%s), open the URL manually: %s", err, authURL)
	}

	var res authResolution
	select {
	case res = <-resolved:
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			res = authResolution{err: &AuthError{Message: "authorization timed out"}}
		} else {
			res = authResolution{err: &AuthError{Message: "authorization canceled"}}
		}
	}

	// Graceful shutdown so an in-flight callback response still reaches the
	// browser before the listener goes away.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
	}
	shutdownCancel()
	cancel()

	finalErr := res.err
	if finalErr == nil {
		finalErr = m.exchangeCode(res.code, verifier, redirectURI)
	}

	m.mu.Lock()
	m.authCancel = nil
	if finalErr != nil {
		m.status = AuthStatus{State: AuthStateFailed, Error: finalErr.Error()}
	} else {
		m.status = AuthStatus{State: AuthStateSuccess}
	}
	m.mu.Unlock()

	if finalErr != nil {
		m.logger.Errorf(providers.TypeSync, "Authorization failed: %s", finalErr)
	} else {
		m.logger.Infof(providers.TypeSync, "Authorization complete")
	}

	if onDone != nil {
		onDone(finalErr)
	}
}

// exchangeCode trades the authorization code for tokens. A response without
// a refresh token is a degraded success: usable now, gone after restart.
func (m *CredentialManager) exchangeCode(code, verifier, redirectURI string) error {
	form := url.Values{}
	form.Set("client_id", m.conf.CloudSync.ClientID)
	form.Set("client_secret", m.conf.CloudSync.ClientSecret)
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", redirectURI)

	tr, err := m.requestToken(context.Background(), "token exchange", form)
	if err != nil {
		return err
	}
	if tr.RefreshToken == "" {
		m.logger.Warnf(providers.TypeSync, "Provider granted no refresh token; authorization will be required again after the access token expires")
	}
	m.storeToken(tr)
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

func (m *CredentialManager) requestToken(ctx context.Context, action string, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.conf.CloudSync.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthError{Message: action + " failed", Body: truncateBody(data)}
	}

	var tr tokenResponse
	if err = json.Unmarshal(data, &tr); err != nil {
		return nil, &AuthError{Message: action + " returned an unreadable response"}
	}
	if tr.AccessToken == "" {
		return nil, &AuthError{Message: action + " response carries no access token"}
	}
	return &tr, nil
}

// storeToken places the token in the session cache and the persisted state.
// A failed persist keeps the session copy, so the token still serves until
// the process exits.
func (m *CredentialManager) storeToken(tr *tokenResponse) string {
	expiry := time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpirySkew).UnixMilli()

	m.mu.Lock()
	m.sessionAccess = tr.AccessToken
	m.sessionExpiry = expiry
	if tr.RefreshToken != "" {
		m.sessionRefresh = tr.RefreshToken
	}
	m.mu.Unlock()

	err := m.state.Update(func(s *SyncState) {
		s.AccessToken = tr.AccessToken
		s.AccessTokenExpiry = expiry
		if tr.RefreshToken != "" {
			s.RefreshToken = tr.RefreshToken
		}
		s.LastError = ""
	})
	if err != nil {
		m.logger.Warnf(providers.TypeSync, "Could not persist tokens: %s", err)
	}
	return tr.AccessToken
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
