package crypto

import (
	"bytes"
	"testing"
)

// wrapKey encrypts key material the way the server does for the given
// method, so tests can exercise each rung of the ladder.
func wrapKey(t *testing.T, m UnwrapMethod, kek Key, raw []byte) []byte {
	t.Helper()
	iv := randBytes(t, IVSize)
	var (
		wrapped []byte
		err     error
	)
	switch m {
	case Unwrap128:
		wrapped, err = Aes128Encrypt(kek.Companion(), raw, iv, false, true)
	case Unwrap256Legacy:
		wrapped, err = Aes256EncryptUnauthenticated(kek, raw, iv, false)
	default:
		wrapped, err = Aes256Encrypt(kek, raw, iv, false)
	}
	if err != nil {
		t.Fatalf("wrap via %v: %v", m, err)
	}
	return wrapped
}

func TestUnwrapKey_LadderOrder(t *testing.T) {
	tests := []struct {
		name    string
		kekSize int
		want    []UnwrapMethod
	}{
		{"128-bit kek", Key128Size, []UnwrapMethod{Unwrap128, Unwrap256Legacy, Unwrap256Auth}},
		{"256-bit kek", Key256Size, []UnwrapMethod{Unwrap256Legacy, Unwrap256Auth, Unwrap128}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kek := Key(randBytes(t, tt.kekSize))
			raw := randBytes(t, Key128Size)

			// Wrap with the last method in the ladder so every earlier
			// method is attempted and fails first.
			last := tt.want[len(tt.want)-1]
			wrapped := wrapKey(t, last, kek, raw)

			var attempts []UnwrapMethod
			var succeeded UnwrapMethod
			hooks := &UnwrapHooks{
				OnSuccess: func(m UnwrapMethod) { succeeded = m },
				OnAttempt: func(m UnwrapMethod, err error) { attempts = append(attempts, m) },
			}

			got, err := UnwrapKey(kek, wrapped, hooks)
			if err != nil {
				t.Fatalf("UnwrapKey() error = %v", err)
			}
			if !bytes.Equal(got, raw) {
				t.Errorf("unwrapped key mismatch")
			}
			if succeeded != last {
				t.Errorf("succeeded method = %v, want %v", succeeded, last)
			}
			if len(attempts) != len(tt.want) {
				t.Fatalf("attempts = %v, want order %v", attempts, tt.want)
			}
			for i, m := range tt.want {
				if attempts[i] != m {
					t.Errorf("attempt %d = %v, want %v", i, attempts[i], m)
				}
			}
		})
	}
}

func TestUnwrapKey_FirstMethodWins(t *testing.T) {
	kek := Key(randBytes(t, Key128Size))
	raw := randBytes(t, Key256Size)
	wrapped := wrapKey(t, Unwrap128, kek, raw)

	var attempts int
	hooks := &UnwrapHooks{OnAttempt: func(UnwrapMethod, error) { attempts++ }}

	got, err := UnwrapKey(kek, wrapped, hooks)
	if err != nil {
		t.Fatalf("UnwrapKey() error = %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("unwrapped key mismatch")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestUnwrapKey_AllMethodsFail(t *testing.T) {
	kek := Key(randBytes(t, Key256Size))
	// Odd length defeats the unauthenticated method, a zero marker byte
	// defeats both authenticated ones.
	garbage := randBytes(t, 49)
	garbage[0] = 0

	var succeeded UnwrapMethod = 99
	hooks := &UnwrapHooks{OnSuccess: func(m UnwrapMethod) { succeeded = m }}

	if _, err := UnwrapKey(kek, garbage, hooks); err == nil {
		t.Fatal("UnwrapKey() succeeded on garbage")
	}
	if succeeded != UnwrapNone {
		t.Errorf("succeeded = %v, want UnwrapNone", succeeded)
	}
}

func TestKeyCompanion(t *testing.T) {
	k := Key(randBytes(t, Key256Size))
	companion := k.Companion()
	if len(companion) != Key128Size {
		t.Fatalf("companion length = %d, want %d", len(companion), Key128Size)
	}
	if !bytes.Equal(companion, k[:Key128Size]) {
		t.Error("companion is not the key's first 16 bytes")
	}
	// The original is never altered.
	if len(k) != Key256Size {
		t.Error("original key was truncated")
	}

	short := Key(randBytes(t, Key128Size))
	if !bytes.Equal(short.Companion(), short) {
		t.Error("128-bit companion should be the key itself")
	}
}
