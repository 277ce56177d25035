package crypto

import "errors"

var (
	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKeySize is returned when a symmetric key has an unexpected size.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidCiphertext is returned when a ciphertext is too short or not
	// block-aligned.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrInvalidMac is returned when an authenticated ciphertext fails
	// MAC verification or lacks the authentication marker.
	ErrInvalidMac = errors.New("invalid mac")

	// ErrInvalidPadding is returned when PKCS#7 padding is malformed.
	ErrInvalidPadding = errors.New("invalid padding")

	// ErrInvalidSaltSize is returned when a KDF salt has an unexpected size.
	ErrInvalidSaltSize = errors.New("invalid salt size")
)
