package tuta

import (
	"strconv"
	"strings"
	"time"

	"github.com/tutanota-cli/client-go/internal/crypto"
	"github.com/tutanota-cli/client-go/internal/typemodel"
	"github.com/tutanota-cli/client-go/internal/wire"
)

// DecryptCallbacks receives diagnostics from session-key resolution and
// attribute decryption. A nil callbacks value and nil fields are no-ops.
type DecryptCallbacks struct {
	// OnUnwrapMethod reports which ladder method recovered the session
	// key, or UnwrapNone when every ladder method failed. It does not fire
	// when resolution stops earlier (missing owner attributes or no cached
	// group key).
	OnUnwrapMethod func(crypto.UnwrapMethod)
	// OnUnwrapAttempt reports every ladder attempt with its outcome.
	OnUnwrapAttempt func(crypto.UnwrapMethod, error)
	// OnDecryptFailure reports an attribute whose decryption failed after
	// both key-width fallbacks; the attribute falls back to its zero value.
	OnDecryptFailure func(attrID string, err error)
	// OnCompanionFallback reports an attribute rescued by the session
	// key's 128-bit companion.
	OnCompanionFallback func(attrID string)
}

func (cb *DecryptCallbacks) unwrapHooks() *crypto.UnwrapHooks {
	if cb == nil || (cb.OnUnwrapMethod == nil && cb.OnUnwrapAttempt == nil) {
		return nil
	}
	return &crypto.UnwrapHooks{
		OnSuccess: cb.OnUnwrapMethod,
		OnAttempt: cb.OnUnwrapAttempt,
	}
}

func (cb *DecryptCallbacks) decryptFailure(attrID string, err error) {
	if cb != nil && cb.OnDecryptFailure != nil {
		cb.OnDecryptFailure(attrID, err)
	}
}

func (cb *DecryptCallbacks) companionFallback(attrID string) {
	if cb != nil && cb.OnCompanionFallback != nil {
		cb.OnCompanionFallback(attrID)
	}
}

// ResolveSessionKey locates and unwraps the session key of an encrypted
// wire instance. It returns nil, with no error, when the type carries no
// encrypted attributes, when the owner attributes are missing, or when the
// key chain has no key for the owner group at the selected version.
//
// versionOverride, when non-empty, replaces the instance's own owner key
// version; the mailbox reader uses it to retry with other cached versions.
func ResolveSessionKey(chain *KeyChain, tm *typemodel.Type, inst wire.Instance, versionOverride string, cb *DecryptCallbacks) (crypto.Key, error) {
	if !tm.Encrypted {
		return nil, nil
	}

	ownerGroup, ok := wire.String(inst[tm.OwnerGroup])
	if !ok || ownerGroup == "" {
		return nil, nil
	}
	encSessionKey, err := crypto.DecodeBytes(inst[tm.OwnerEncSessionKey])
	if err != nil || len(encSessionKey) == 0 {
		return nil, nil
	}

	version := versionOverride
	if version == "" {
		version, _ = wire.Text(inst[tm.OwnerKeyVersion])
	}

	groupKey, ok := chain.Get(ownerGroup, version)
	if !ok {
		return nil, nil
	}

	sessionKey, err := crypto.UnwrapKey(groupKey, encSessionKey, cb.unwrapHooks())
	if err != nil {
		return nil, err
	}
	return sessionKey, nil
}

// zeroValue returns the scalar zero of a declared value type.
func zeroValue(vt typemodel.ValueType) any {
	switch vt {
	case typemodel.TypeNumber:
		return int64(0)
	case typemodel.TypeDate:
		return time.UnixMilli(0).UTC()
	case typemodel.TypeBoolean:
		return false
	case typemodel.TypeBytes:
		return []byte{}
	default:
		return ""
	}
}

// coerceValue turns decrypted UTF-8 bytes back into the declared scalar.
func coerceValue(b []byte, vt typemodel.ValueType) (any, error) {
	switch vt {
	case typemodel.TypeNumber, typemodel.TypeDate:
		text := string(b)
		if text == "" {
			return zeroValue(vt), nil
		}
		n, err := parseWireNumber(text)
		if err != nil {
			return nil, err
		}
		if vt == typemodel.TypeDate {
			return time.UnixMilli(n).UTC(), nil
		}
		return n, nil
	case typemodel.TypeBoolean:
		return string(b) != "0", nil
	case typemodel.TypeBytes:
		return b, nil
	default:
		return string(b), nil
	}
}

// DecryptInstance decrypts every encrypted value attribute of a parsed
// wire instance and coerces the plaintext to the declared scalar type.
//
// Unencrypted attributes copy through unchanged, as does every wire key
// absent from the type's value table (association ids). With a nil session
// key, or for missing and empty wire values, encrypted attributes
// materialize as their scalar zero values. Attribute-level failures are
// non-fatal: the callback fires and the zero value is stored.
func DecryptInstance(tm *typemodel.Type, inst wire.Instance, sessionKey crypto.Key, cb *DecryptCallbacks) wire.Instance {
	out := make(wire.Instance, len(inst))

	for id, v := range inst {
		value, known := tm.Values[id]
		if !known || !value.Encrypted {
			out[id] = v
			continue
		}

		text, _ := wire.String(v)
		if sessionKey == nil || v == nil || text == "" {
			out[id] = zeroValue(value.Type)
			continue
		}

		ciphertext, err := crypto.FromBase64(text)
		if err != nil {
			cb.decryptFailure(id, err)
			out[id] = zeroValue(value.Type)
			continue
		}

		plaintext, err := crypto.DecryptData(sessionKey, ciphertext)
		if err != nil && !sessionKey.Is128() {
			if retried, retryErr := crypto.DecryptData(sessionKey.Companion(), ciphertext); retryErr == nil {
				plaintext, err = retried, nil
				cb.companionFallback(id)
			}
		}
		if err != nil {
			cb.decryptFailure(id, err)
			out[id] = zeroValue(value.Type)
			continue
		}

		coerced, err := coerceValue(plaintext, value.Type)
		if err != nil {
			cb.decryptFailure(id, err)
			out[id] = zeroValue(value.Type)
			continue
		}
		out[id] = coerced
	}

	// Encrypted attributes absent from the wire still materialize as
	// their zero values.
	for id, value := range tm.Values {
		if !value.Encrypted {
			continue
		}
		if _, present := out[id]; !present {
			out[id] = zeroValue(value.Type)
		}
	}
	return out
}

// parseWireNumber parses integer-like text, tolerating surrounding
// whitespace.
func parseWireNumber(text string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
}
