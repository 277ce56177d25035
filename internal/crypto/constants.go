package crypto

import "crypto/sha256"

const (
	// Key128Size is the size of a 128-bit symmetric key in bytes.
	Key128Size = 16
	// Key256Size is the size of a 256-bit symmetric key in bytes.
	Key256Size = 32

	// IVSize is the size of a CBC initialization vector in bytes.
	IVSize = 16
	// MacSize is the size of an HMAC-SHA-256 tag in bytes.
	MacSize = sha256.Size

	// macMarker is the leading byte of an authenticated ciphertext.
	macMarker byte = 1

	// BcryptRounds is the fixed cost parameter for the legacy passphrase KDF.
	BcryptRounds = 8

	// Argon2id parameters for the current passphrase KDF.
	Argon2Time    = 4
	Argon2Memory  = 32 * 1024 // KiB
	Argon2Threads = 1
	Argon2KeyLen  = 32
)
