package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
)

// subKeys128 splits SHA-256 of a 128-bit key into cipher and MAC subkeys.
func subKeys128(key []byte) (cKey, mKey []byte) {
	h := sha256.Sum256(key)
	return h[:16], h[16:32]
}

// subKeys256 splits SHA-512 of a key into 256-bit cipher and MAC subkeys.
func subKeys256(key []byte) (cKey, mKey []byte) {
	h := sha512.Sum512(key)
	return h[:32], h[32:64]
}

func pkcs7Pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}

// cbcDecrypt decrypts iv-prefixed CBC data with the given cipher key.
func cbcDecrypt(cKey, data []byte, padding bool) ([]byte, error) {
	if len(data) < IVSize || (len(data)-IVSize)%aes.BlockSize != 0 {
		return nil, ErrInvalidCiphertext
	}
	if padding && len(data) == IVSize {
		return nil, ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(cKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeySize, len(cKey))
	}
	iv, ciphertext := data[:IVSize], data[IVSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	if !padding {
		return plaintext, nil
	}
	unpadded, err := pkcs7Unpad(plaintext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return unpadded, nil
}

// cbcEncrypt encrypts data with CBC under cKey, prepending the iv.
func cbcEncrypt(cKey, plaintext, iv []byte, padding bool) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, ErrInvalidCiphertext
	}
	if padding {
		plaintext = pkcs7Pad(plaintext)
	} else if len(plaintext)%aes.BlockSize != 0 {
		return nil, ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(cKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeySize, len(cKey))
	}
	out := make([]byte, IVSize+len(plaintext))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[IVSize:], plaintext)
	return out, nil
}

// stripMac verifies the authentication marker and HMAC-SHA-256 tag of an
// authenticated ciphertext and returns the inner iv || ciphertext.
func stripMac(mKey, data []byte) ([]byte, error) {
	if len(data) < 1+IVSize+MacSize || data[0] != macMarker {
		return nil, ErrInvalidMac
	}
	inner := data[1 : len(data)-MacSize]
	tag := data[len(data)-MacSize:]
	mac := hmac.New(sha256.New, mKey)
	mac.Write(inner)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, ErrInvalidMac
	}
	return inner, nil
}

// appendMac wraps iv || ciphertext with the authentication marker and tag.
func appendMac(mKey, inner []byte) []byte {
	mac := hmac.New(sha256.New, mKey)
	mac.Write(inner)
	out := make([]byte, 0, 1+len(inner)+MacSize)
	out = append(out, macMarker)
	out = append(out, inner...)
	return mac.Sum(out)
}

// Aes128Decrypt decrypts data under a 128-bit key. The ciphertext is
// authenticated when its byte length is odd (marker + MAC present);
// otherwise it is plain iv-prefixed CBC under the key itself.
func Aes128Decrypt(key, data []byte, padding bool) ([]byte, error) {
	if len(key) != Key128Size {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), Key128Size)
	}
	if len(data)%2 == 1 {
		cKey, mKey := subKeys128(key)
		inner, err := stripMac(mKey, data)
		if err != nil {
			return nil, err
		}
		return cbcDecrypt(cKey, inner, padding)
	}
	return cbcDecrypt(key, data, padding)
}

// Aes128Encrypt encrypts data under a 128-bit key, optionally authenticated.
func Aes128Encrypt(key, plaintext, iv []byte, padding, withMac bool) ([]byte, error) {
	if len(key) != Key128Size {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), Key128Size)
	}
	if !withMac {
		return cbcEncrypt(key, plaintext, iv, padding)
	}
	cKey, mKey := subKeys128(key)
	inner, err := cbcEncrypt(cKey, plaintext, iv, padding)
	if err != nil {
		return nil, err
	}
	return appendMac(mKey, inner), nil
}

// Aes256Decrypt decrypts an authenticated 256-bit ciphertext. Subkeys are
// derived by hashing the key, so the wrapping key's raw width does not have
// to be 32 bytes.
func Aes256Decrypt(key, data []byte, padding bool) ([]byte, error) {
	cKey, mKey := subKeys256(key)
	inner, err := stripMac(mKey, data)
	if err != nil {
		return nil, err
	}
	return cbcDecrypt(cKey, inner, padding)
}

// Aes256Encrypt encrypts data under a 256-bit key with mandatory MAC.
func Aes256Encrypt(key, plaintext, iv []byte, padding bool) ([]byte, error) {
	cKey, mKey := subKeys256(key)
	inner, err := cbcEncrypt(cKey, plaintext, iv, padding)
	if err != nil {
		return nil, err
	}
	return appendMac(mKey, inner), nil
}

// Aes256DecryptUnauthenticated decrypts legacy iv-prefixed CBC data with the
// raw key and no MAC. The key is used as-is, whatever its width.
func Aes256DecryptUnauthenticated(key, data []byte, padding bool) ([]byte, error) {
	return cbcDecrypt(key, data, padding)
}

// Aes256EncryptUnauthenticated encrypts legacy CBC data with the raw key.
func Aes256EncryptUnauthenticated(key, plaintext, iv []byte, padding bool) ([]byte, error) {
	return cbcEncrypt(key, plaintext, iv, padding)
}

// DecryptData decrypts an encrypted attribute value, dispatching on key
// width: 128-bit keys use the optionally-authenticated method, wider keys
// the authenticated 256-bit method.
func DecryptData(key, data []byte) ([]byte, error) {
	if len(key) == Key128Size {
		return Aes128Decrypt(key, data, true)
	}
	return Aes256Decrypt(key, data, true)
}

// EncryptData is the encryption counterpart of DecryptData.
func EncryptData(key, plaintext, iv []byte) ([]byte, error) {
	if len(key) == Key128Size {
		return Aes128Encrypt(key, plaintext, iv, true, true)
	}
	return Aes256Encrypt(key, plaintext, iv, true)
}

