package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Generated ids are nine random bytes encoded to twelve base64ext
// characters. The sentinels bound every possible generated id.
const (
	GeneratedMinID = "------------"
	GeneratedMaxID = "zzzzzzzzzzzz"
)

// base64Alphabet is the standard base64 alphabet; base64ExtAlphabet is the
// server's id alphabet, chosen so that lexicographic order of encoded ids
// matches numeric order of the underlying bytes.
const (
	base64Alphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	base64ExtAlphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"
)

// ToBase64 encodes bytes to standard base64 with padding.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromBase64 decodes standard base64 (with padding) to bytes.
func FromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// ToBase64URL encodes bytes to URL-safe base64 without padding.
func ToBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// FromBase64URL decodes URL-safe base64 without padding.
func FromBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// Base64ToBase64URL converts a standard base64 string to its URL-safe form,
// dropping padding. The wire uses this to re-encode ids and verifiers.
func Base64ToBase64URL(s string) string {
	s = strings.TrimRight(s, "=")
	s = strings.ReplaceAll(s, "+", "-")
	return strings.ReplaceAll(s, "/", "_")
}

// Base64ToBase64Ext re-encodes an unpadded standard base64 string in the id
// alphabet. Generated ids are nine bytes, which encode to exactly twelve
// characters with no padding.
func Base64ToBase64Ext(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		i := strings.IndexRune(base64Alphabet, c)
		if i < 0 {
			return "", fmt.Errorf("invalid base64 character %q", c)
		}
		b.WriteByte(base64ExtAlphabet[i])
	}
	return b.String(), nil
}

// ToBase64Ext encodes bytes in the id alphabet.
func ToBase64Ext(data []byte) (string, error) {
	return Base64ToBase64Ext(base64.RawStdEncoding.EncodeToString(data))
}

// CustomIDFromString builds the custom-id encoding of a text value:
// UTF-8 bytes, standard base64, then base64url. Former-key list elements
// are addressed by the custom-id encoding of their decimal version.
func CustomIDFromString(s string) string {
	return Base64ToBase64URL(ToBase64([]byte(s)))
}

// DecodeBytes normalizes a wire value that may carry bytes either raw or
// base64-encoded. Strings are decoded as standard base64 first, then as
// base64url for values that went through id re-encoding.
func DecodeBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		if data, err := FromBase64(b); err == nil {
			return data, nil
		}
		if data, err := FromBase64URL(b); err == nil {
			return data, nil
		}
		return nil, fmt.Errorf("value is not base64")
	case []any:
		// A salt may arrive as a JSON array of numbers.
		data := make([]byte, len(b))
		for i, n := range b {
			f, ok := n.(float64)
			if !ok {
				return nil, fmt.Errorf("byte array element %d is %T", i, n)
			}
			data[i] = byte(int(f))
		}
		return data, nil
	default:
		return nil, fmt.Errorf("cannot decode %T as bytes", v)
	}
}
