package tuta

import (
	"errors"
	"fmt"

	"github.com/tutanota-cli/client-go/internal/api"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrTwoFactorRequired is returned when the session response carries
	// second-factor challenges, which this client does not support.
	ErrTwoFactorRequired = errors.New("account requires a second factor")

	// ErrAuthFailed is returned when an authenticated request is rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNetworkUnavailable is returned on transport-level failures:
	// name resolution, refused connections, timeouts, resets.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrProtocolMismatch is returned when a required attribute is missing
	// or has an unexpected shape.
	ErrProtocolMismatch = errors.New("protocol mismatch")

	// ErrKeyUnavailable is returned when the key chain cannot supply a key
	// for a requested (group, version) pair.
	ErrKeyUnavailable = errors.New("key unavailable")

	// ErrDecryptFailed is returned when attribute decryption fails after
	// both key-width fallbacks.
	ErrDecryptFailed = errors.New("decryption failed")

	// ErrMissingCredentials is returned when no email or password could be
	// obtained.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrLocked is returned when a mailbox operation runs before the key
	// chain was unlocked.
	ErrLocked = errors.New("key chain is locked")
)

// ProtocolError reports a wire shape the client cannot interpret.
type ProtocolError struct {
	Type      string
	Attribute string
	Message   string
}

func (e *ProtocolError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("protocol mismatch: %s attribute %s: %s", e.Type, e.Attribute, e.Message)
	}
	return fmt.Sprintf("protocol mismatch: %s: %s", e.Type, e.Message)
}

// Is implements errors.Is for sentinel error matching.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolMismatch
}

// wrapError converts internal API errors to public errors so that
// errors.Is() checks work with the sentinel errors above.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrUnauthorized) {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if api.IsNetwork(err) {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	return err
}
