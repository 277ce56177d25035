package crypto

// UnwrapMethod identifies which decryption method recovered a wrapped key.
type UnwrapMethod int

const (
	// UnwrapNone means no method succeeded.
	UnwrapNone UnwrapMethod = iota
	// Unwrap128 is AES-128-CBC, MAC optional.
	Unwrap128
	// Unwrap256Legacy is unauthenticated AES-256-CBC with the raw key.
	Unwrap256Legacy
	// Unwrap256Auth is authenticated AES-256-CBC with hashed subkeys.
	Unwrap256Auth
)

func (m UnwrapMethod) String() string {
	switch m {
	case Unwrap128:
		return "aes128"
	case Unwrap256Legacy:
		return "aes256-legacy"
	case Unwrap256Auth:
		return "aes256"
	default:
		return "none"
	}
}

// UnwrapHooks receives diagnostics from UnwrapKey. Nil hooks and nil
// fields are no-ops.
type UnwrapHooks struct {
	// OnSuccess is invoked once with the method that recovered the key,
	// or UnwrapNone when the whole ladder failed.
	OnSuccess func(UnwrapMethod)
	// OnAttempt is invoked for every attempted method with its outcome.
	OnAttempt func(UnwrapMethod, error)
}

func (h *UnwrapHooks) success(m UnwrapMethod) {
	if h != nil && h.OnSuccess != nil {
		h.OnSuccess(m)
	}
}

func (h *UnwrapHooks) attempt(m UnwrapMethod, err error) {
	if h != nil && h.OnAttempt != nil {
		h.OnAttempt(m, err)
	}
}

// unwrapAttempt runs one ladder step. Keys are wrapped without padding.
func unwrapAttempt(m UnwrapMethod, key Key, wrapped []byte) ([]byte, error) {
	switch m {
	case Unwrap128:
		return Aes128Decrypt(key.Companion(), wrapped, false)
	case Unwrap256Legacy:
		return Aes256DecryptUnauthenticated(key, wrapped, false)
	default:
		return Aes256Decrypt(key, wrapped, false)
	}
}

// ladder128 and ladder256 order the decryption methods by the wrapping
// key's width. Accounts produced under different historical key widths
// still appear in the wild; the orderings are wire behavior and must be
// preserved exactly.
var (
	ladder128 = []UnwrapMethod{Unwrap128, Unwrap256Legacy, Unwrap256Auth}
	ladder256 = []UnwrapMethod{Unwrap256Legacy, Unwrap256Auth, Unwrap128}
)

// UnwrapKey decrypts a wrapped symmetric key under the documented fallback
// ladder, stopping at the first method that succeeds.
func UnwrapKey(key Key, wrapped []byte, hooks *UnwrapHooks) (Key, error) {
	ladder := ladder256
	if key.Is128() {
		ladder = ladder128
	}

	var lastErr error
	for _, m := range ladder {
		raw, err := unwrapAttempt(m, key, wrapped)
		hooks.attempt(m, err)
		if err == nil {
			hooks.success(m)
			return Key(raw), nil
		}
		lastErr = err
	}
	hooks.success(UnwrapNone)
	return nil, lastErr
}
