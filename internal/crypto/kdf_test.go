package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestDerivePassphraseKey_Bcrypt(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, 16)

	key, err := DerivePassphraseKey("correct horse", salt, KdfBcrypt)
	if err != nil {
		t.Fatalf("DerivePassphraseKey() error = %v", err)
	}
	if len(key) != Key128Size {
		t.Errorf("key length = %d, want %d", len(key), Key128Size)
	}

	// Deterministic for the same inputs.
	again, err := DerivePassphraseKey("correct horse", salt, KdfBcrypt)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key, again) {
		t.Error("bcrypt derivation is not deterministic")
	}

	// Sensitive to the passphrase.
	other, err := DerivePassphraseKey("wrong horse", salt, KdfBcrypt)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(key, other) {
		t.Error("different passphrases derived the same key")
	}
}

func TestDerivePassphraseKey_BcryptSaltSize(t *testing.T) {
	if _, err := DerivePassphraseKey("pw", make([]byte, 8), KdfBcrypt); err == nil {
		t.Error("expected error for 8-byte bcrypt salt")
	}
}

func TestDerivePassphraseKey_Argon2id(t *testing.T) {
	salt := bytes.Repeat([]byte{0x01}, 16)

	key, err := DerivePassphraseKey("correct horse", salt, "1")
	if err != nil {
		t.Fatalf("DerivePassphraseKey() error = %v", err)
	}
	if len(key) != Key256Size {
		t.Errorf("key length = %d, want %d", len(key), Key256Size)
	}

	// Any non-"0" version selects Argon2id.
	same, err := DerivePassphraseKey("correct horse", salt, "2")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key, same) {
		t.Error("argon2id derivation should not depend on the exact version")
	}
}

func TestAuthVerifier(t *testing.T) {
	key := Key(bytes.Repeat([]byte{0x07}, Key128Size))

	v := AuthVerifier(key)
	if v == "" {
		t.Fatal("empty verifier")
	}
	if strings.ContainsAny(v, "+/=") {
		t.Errorf("verifier %q is not unpadded base64url", v)
	}
	if v != AuthVerifier(key) {
		t.Error("verifier is not deterministic")
	}
}
