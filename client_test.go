package tuta

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/tutanota-cli/client-go/internal/api"
	"github.com/tutanota-cli/client-go/internal/crypto"
)

// memStore is an in-memory SessionStore for orchestrator tests.
type memStore struct {
	session *Session
	saves   int
	clears  int
}

func (m *memStore) Load() (*Session, error) { return m.session, nil }
func (m *memStore) Save(s *Session) error   { m.session = s; m.saves++; return nil }
func (m *memStore) Clear() error            { m.session = nil; m.clears++; return nil }

// authEnv fakes the full authentication surface: salt and session
// services, the probe endpoint, and the User entity needed for unlock.
type authEnv struct {
	srv *httptest.Server

	salt       []byte
	userKey    crypto.Key
	probeOK    atomic.Bool
	probeCalls atomic.Int32
	logins     atomic.Int32
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	env := &authEnv{
		salt:    make([]byte, 16),
		userKey: testKey(t, crypto.Key128Size),
	}
	env.probeOK.Store(true)

	passphraseKey, err := crypto.DerivePassphraseKey("pw", env.salt, "1")
	if err != nil {
		t.Fatal(err)
	}
	wrappedUserKey := wrap128(t, passphraseKey.Companion(), env.userKey)

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/sys/saltservice", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"421":  "0",
			"422":  crypto.ToBase64(env.salt),
			"2133": "1",
		})
	})
	mux.HandleFunc("/rest/sys/sessionservice", func(w http.ResponseWriter, r *http.Request) {
		env.logins.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"1220": "0",
			"1221": validAccessToken(),
			"1222": []any{},
			"1223": "user-1",
		})
	})
	mux.HandleFunc("/rest/sys/systemkeysservice", func(w http.ResponseWriter, r *http.Request) {
		env.probeCalls.Add(1)
		if !env.probeOK.Load() {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{})
	})
	mux.HandleFunc("/rest/sys/user/user-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"86": "user-1",
			"95": map[string]any{
				"27":   crypto.ToBase64(wrappedUserKey),
				"29":   "ug",
				"2246": "1",
			},
			"96":  []any{},
			"991": "customer-1",
		})
	})
	mux.HandleFunc("/rest/sys/customer/customer-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"33": "customer-1",
			"36": "2",
		})
	})

	env.srv = httptest.NewServer(mux)
	t.Cleanup(env.srv.Close)
	return env
}

func TestConnect_ReusesValidStoredSession(t *testing.T) {
	env := newAuthEnv(t)
	store := &memStore{session: &Session{
		BaseURL: env.srv.URL, AccessToken: "stored-tok", UserID: "user-1",
	}}

	c, err := Connect(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if c.Session().AccessToken != "stored-tok" {
		t.Errorf("access token = %q, want stored token", c.Session().AccessToken)
	}
	if env.logins.Load() != 0 {
		t.Errorf("logins = %d, want 0", env.logins.Load())
	}
	if env.probeCalls.Load() != 1 {
		t.Errorf("probe calls = %d, want 1", env.probeCalls.Load())
	}
}

func TestConnect_RejectedSessionFallsBackToLogin(t *testing.T) {
	env := newAuthEnv(t)
	env.probeOK.Store(false)

	store := &memStore{session: &Session{
		BaseURL: env.srv.URL, AccessToken: "stale-tok", UserID: "user-1",
	}}
	creds := StaticCredentials{Email: "alice@example.com", Password: "pw"}

	c, err := Connect(context.Background(), store, creds, WithBaseURL(env.srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if store.clears != 1 {
		t.Errorf("store clears = %d, want 1", store.clears)
	}
	if store.saves != 1 || store.session == nil {
		t.Errorf("new session not persisted: saves = %d", store.saves)
	}
	if env.logins.Load() != 1 {
		t.Errorf("logins = %d, want 1", env.logins.Load())
	}

	// Login also unlocked the key chain.
	if _, ok := c.chain.Get("ug", "1"); !ok {
		t.Error("user group key not planted after fallback login")
	}
}

func TestConnect_NetworkFailureKeepsStoredSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	store := &memStore{session: &Session{
		BaseURL: base, AccessToken: "tok", UserID: "user-1",
	}}

	_, err := Connect(context.Background(), store, StaticCredentials{Email: "a@b.c", Password: "pw"})
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("Connect() error = %v, want ErrNetworkUnavailable", err)
	}
	if store.session == nil || store.clears != 0 {
		t.Error("network failure must not discard the stored session")
	}
}

func TestConnect_NoStoredSessionLogsIn(t *testing.T) {
	env := newAuthEnv(t)
	store := &memStore{}

	c, err := Connect(context.Background(), store, StaticCredentials{Email: "alice@example.com", Password: "pw"},
		WithBaseURL(env.srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if c.Session() == nil || c.Session().UserID != "user-1" {
		t.Errorf("session = %+v", c.Session())
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	if env.probeCalls.Load() != 0 {
		t.Errorf("probe calls = %d, want 0", env.probeCalls.Load())
	}
}

func TestConnect_MissingCredentials(t *testing.T) {
	store := &memStore{}
	if _, err := Connect(context.Background(), store, nil); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Connect() error = %v, want ErrMissingCredentials", err)
	}
}

func TestWithAuthRetry_RecoversOnce(t *testing.T) {
	env := newAuthEnv(t)
	store := &memStore{}

	c := New(WithBaseURL(env.srv.URL))
	c.store = store
	c.creds = StaticCredentials{Email: "alice@example.com", Password: "pw"}

	var attempts int
	err := c.withAuthRetry(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return wrapError(&api.APIError{StatusCode: http.StatusUnauthorized})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withAuthRetry() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if env.logins.Load() != 1 {
		t.Errorf("logins = %d, want 1", env.logins.Load())
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
}

func TestWithAuthRetry_SecondFailureIsFatal(t *testing.T) {
	env := newAuthEnv(t)

	c := New(WithBaseURL(env.srv.URL))
	c.creds = StaticCredentials{Email: "alice@example.com", Password: "pw"}

	var attempts int
	err := c.withAuthRetry(context.Background(), func() error {
		attempts++
		return wrapError(&api.APIError{StatusCode: http.StatusUnauthorized})
	})
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("withAuthRetry() error = %v, want ErrAuthFailed", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestProfile(t *testing.T) {
	env := newAuthEnv(t)

	c := New(WithBaseURL(env.srv.URL))
	if _, err := c.Login(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	p, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.UserID != "user-1" {
		t.Errorf("user id = %q", p.UserID)
	}
	if p.CustomerID != "customer-1" {
		t.Errorf("customer id = %q", p.CustomerID)
	}
	if p.AccountType != 2 {
		t.Errorf("account type = %d, want 2", p.AccountType)
	}
}
