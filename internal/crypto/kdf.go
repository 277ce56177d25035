package crypto

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KdfBcrypt is the kdfVersion value selecting the legacy bcrypt KDF.
// Any other version selects Argon2id.
const KdfBcrypt = "0"

// DerivePassphraseKey derives the symmetric passphrase key from the user's
// passphrase and the server-provided salt and KDF version.
//
// Version "0" is the legacy scheme: bcrypt over the SHA-256 of the
// passphrase, first 16 bytes of the raw hash as a 128-bit key. Every other
// version is Argon2id with fixed parameters producing a 256-bit key.
func DerivePassphraseKey(passphrase string, salt []byte, kdfVersion string) (Key, error) {
	if kdfVersion == KdfBcrypt {
		hashed := sha256.Sum256([]byte(passphrase))
		raw, err := bcryptRaw(hashed[:], salt, BcryptRounds)
		if err != nil {
			return nil, fmt.Errorf("bcrypt: %w", err)
		}
		return Key(raw[:Key128Size]), nil
	}
	key := argon2.IDKey([]byte(passphrase), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)
	return Key(key), nil
}

// AuthVerifier builds the login verifier for a passphrase key: the unpadded
// base64url encoding of the key's SHA-256 digest. It proves knowledge of
// the passphrase without transmitting the key.
func AuthVerifier(key Key) string {
	digest := sha256.Sum256(key)
	return ToBase64URL(digest[:])
}
