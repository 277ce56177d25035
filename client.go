package tuta

import (
	"context"
	"errors"
	"fmt"

	"github.com/tutanota-cli/client-go/internal/api"
	"github.com/tutanota-cli/client-go/internal/crypto"
	"github.com/tutanota-cli/client-go/internal/typemodel"
	"github.com/tutanota-cli/client-go/internal/wire"
)

// systemKeysService is the authenticated endpoint used to probe a stored
// session.
const systemKeysService = "systemkeysservice"

// CredentialsProvider supplies login credentials when no valid stored
// session exists, or when a session must be re-established after an auth
// failure. The CLI backs this with environment variables and interactive
// prompts.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (email, password string, err error)
}

// StaticCredentials is a CredentialsProvider with fixed values.
type StaticCredentials struct {
	Email    string
	Password string
}

// Credentials returns the fixed credentials.
func (s StaticCredentials) Credentials(context.Context) (string, string, error) {
	if s.Email == "" || s.Password == "" {
		return "", "", ErrMissingCredentials
	}
	return s.Email, s.Password, nil
}

// Client reads an account's mailbox over the encrypted-entity REST API.
// Create one with New and authenticate with Login or Resume, or use
// Connect for the full get-or-create-session flow.
type Client struct {
	api   *api.Client
	chain *KeyChain
	cb    *DecryptCallbacks
	log   Logger

	maxInFlight int

	session  *Session
	email    string
	user     wire.Instance
	material *UserKeyMaterial

	// Set by Connect; enable the clear-and-retry-once recovery on 401.
	store SessionStore
	creds CredentialsProvider
}

// New creates an unauthenticated client.
func New(opts ...Option) *Client {
	cfg := &clientConfig{maxInFlight: defaultMaxInFlight}
	for _, opt := range opts {
		opt(cfg)
	}

	apiOpts := []api.Option{
		api.WithBaseURL(cfg.baseURL),
		api.WithUserAgent(cfg.userAgent),
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}

	return &Client{
		api:         api.New(apiOpts...),
		chain:       NewKeyChain(),
		cb:          cfg.callbacks,
		log:         cfg.logger,
		maxInFlight: cfg.maxInFlight,
	}
}

// logSink returns the client's own logger, falling back to the
// process-wide sink installed with SetLogger.
func (c *Client) logSink() Logger {
	if c.log != nil {
		return c.log
	}
	return logger
}

// Session returns the active session, or nil before authentication.
func (c *Client) Session() *Session {
	return c.session
}

// KeyChain exposes the client's group key cache.
func (c *Client) KeyChain() *KeyChain {
	return c.chain
}

// Login authenticates with credentials, unlocks the key chain, and returns
// the new session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	session, passphraseKey, err := c.login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.session = session
	c.email = email
	c.api.SetAccessToken(session.AccessToken)

	if err := c.unlock(ctx, passphraseKey); err != nil {
		return nil, err
	}
	c.logSink().Log(fmt.Sprintf("logged in as user %s", session.UserID))
	return session, nil
}

// Resume adopts a stored session and probes it against an authenticated
// endpoint. The key chain stays locked; call EnsureUnlocked before mailbox
// operations.
func (c *Client) Resume(ctx context.Context, session *Session) error {
	if session == nil || session.AccessToken == "" || session.UserID == "" {
		return fmt.Errorf("%w: incomplete stored session", ErrAuthFailed)
	}

	c.session = session
	c.api.SetAccessToken(session.AccessToken)

	if _, err := c.api.GetService(ctx, sysApp, systemKeysService, typemodel.SysModelVersion, nil); err != nil {
		c.session = nil
		c.api.SetAccessToken("")
		return wrapError(err)
	}
	c.logSink().Log(fmt.Sprintf("resumed session for user %s", session.UserID))
	return nil
}

// Unlocked reports whether the key chain has been unlocked.
func (c *Client) Unlocked() bool {
	return c.material != nil
}

// EnsureUnlocked derives the passphrase key and unlocks the key chain for
// a resumed session. It is a no-op when the chain is already unlocked.
func (c *Client) EnsureUnlocked(ctx context.Context, email, password string) error {
	if c.material != nil {
		return nil
	}
	if c.session == nil {
		return fmt.Errorf("%w: no active session", ErrAuthFailed)
	}

	passphraseKey, err := c.derivePassphraseKey(ctx, email, password)
	if err != nil {
		return err
	}
	c.email = email
	return c.unlock(ctx, passphraseKey)
}

// unlock loads the User entity, parses its key material, and plants the
// user and mail group keys.
func (c *Client) unlock(ctx context.Context, passphraseKey crypto.Key) error {
	user, err := c.api.LoadEntity(ctx, typemodel.User, api.ElementID(c.session.UserID))
	if err != nil {
		return wrapError(err)
	}

	material, err := ParseUserKeyMaterial(user)
	if err != nil {
		return err
	}
	if err := c.chain.Unlock(passphraseKey, material); err != nil {
		return err
	}

	c.user = user
	c.material = material
	return nil
}

// Profile summarizes the authenticated account.
type Profile struct {
	UserID      string
	CustomerID  string
	AccountType int64
	MailGroup   string
	Memberships int
}

// Profile loads the User and Customer entities backing the account.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	if c.session == nil {
		return nil, fmt.Errorf("%w: no active session", ErrAuthFailed)
	}

	var profile *Profile
	err := c.withAuthRetry(ctx, func() error {
		user := c.user
		if user == nil {
			loaded, err := c.api.LoadEntity(ctx, typemodel.User, api.ElementID(c.session.UserID))
			if err != nil {
				return wrapError(err)
			}
			user = loaded
			c.user = user
		}

		p := &Profile{UserID: c.session.UserID}
		if material, err := ParseUserKeyMaterial(user); err == nil {
			p.Memberships = len(material.Memberships)
			if mail := material.MailMembership(); mail != nil {
				p.MailGroup = mail.Group
			}
		}

		customerID, ok := wire.String(user[typemodel.UserCustomer])
		if ok && customerID != "" {
			customer, err := c.api.LoadEntity(ctx, typemodel.Customer, api.ElementID(customerID))
			if err != nil {
				return wrapError(err)
			}
			p.CustomerID = customerID
			if text, ok := wire.Text(customer[typemodel.CustomerType]); ok {
				if n, err := parseWireNumber(text); err == nil {
					p.AccountType = n
				}
			}
		}

		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// withAuthRetry runs op, recovering once from an auth failure by clearing
// the persisted session and logging in again with fresh credentials. A
// second auth failure is fatal.
func (c *Client) withAuthRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, ErrAuthFailed) || c.creds == nil {
		return err
	}

	c.logSink().Log("access token rejected, creating a new session")
	if c.store != nil {
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logSink().LogError("clear stored session", clearErr)
		}
	}

	email, password, credErr := c.creds.Credentials(ctx)
	if credErr != nil {
		return err
	}
	session, loginErr := c.Login(ctx, email, password)
	if loginErr != nil {
		return loginErr
	}
	if c.store != nil {
		if saveErr := c.store.Save(session); saveErr != nil {
			c.logSink().LogError("persist session", saveErr)
		}
	}
	return op()
}

// Connect implements get-or-create-session: a stored session is probed and
// reused when valid; otherwise credentials are obtained, a fresh login
// runs, and the new session is persisted. Network failures during the
// probe do not discard the stored session; auth failures do.
func Connect(ctx context.Context, store SessionStore, creds CredentialsProvider, opts ...Option) (*Client, error) {
	if store == nil {
		store = NoopSessionStore{}
	}

	stored, err := store.Load()
	if err != nil {
		logger.LogError("read stored session", err)
	}
	if stored != nil {
		c := New(append([]Option{WithBaseURL(stored.BaseURL)}, opts...)...)
		c.store, c.creds = store, creds

		switch err := c.Resume(ctx, stored); {
		case err == nil:
			return c, nil
		case errors.Is(err, ErrNetworkUnavailable):
			c.logSink().LogError("session probe failed, keeping stored session", err)
			return nil, err
		default:
			c.logSink().LogError("stored session rejected", err)
			if clearErr := store.Clear(); clearErr != nil {
				c.logSink().LogError("clear stored session", clearErr)
			}
		}
	}

	if creds == nil {
		return nil, ErrMissingCredentials
	}
	email, password, err := creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	c := New(opts...)
	c.store, c.creds = store, creds

	session, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := store.Save(session); err != nil {
		c.logSink().LogError("persist session", err)
	}
	return c, nil
}
