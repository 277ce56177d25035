package crypto

import (
	"fmt"

	"golang.org/x/crypto/blowfish"
)

// bcrypt's fixed 24-byte plaintext, encrypted 64 times to produce the hash.
var magicCipherData = []byte("OrpheanBeholderScryDoubt")

// bcryptSaltSize is the salt length bcrypt requires.
const bcryptSaltSize = 16

// bcryptRaw runs the bcrypt core and returns the raw 24-byte result instead
// of the crypt(3) string form. The legacy passphrase KDF consumes the first
// 16 bytes as a 128-bit key.
func bcryptRaw(password, salt []byte, rounds uint) ([]byte, error) {
	if len(salt) != bcryptSaltSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidSaltSize, len(salt), bcryptSaltSize)
	}

	c, err := expensiveBlowfishSetup(password, salt, rounds)
	if err != nil {
		return nil, err
	}

	cipherData := make([]byte, len(magicCipherData))
	copy(cipherData, magicCipherData)
	for i := 0; i < len(cipherData); i += 8 {
		for j := 0; j < 64; j++ {
			c.Encrypt(cipherData[i:i+8], cipherData[i:i+8])
		}
	}
	return cipherData, nil
}

// expensiveBlowfishSetup performs the eksblowfish key schedule with
// 2^rounds alternating expansions of key and salt.
func expensiveBlowfishSetup(key, salt []byte, rounds uint) (*blowfish.Cipher, error) {
	ckey := make([]byte, len(key)+1)
	copy(ckey, key)

	c, err := blowfish.NewSaltedCipher(ckey, salt)
	if err != nil {
		return nil, err
	}

	for i := uint64(0); i < 1<<rounds; i++ {
		blowfish.ExpandKey(ckey, c)
		blowfish.ExpandKey(salt, c)
	}
	return c, nil
}
