// Package crypto provides the symmetric primitives of the mail protocol.
//
// # Algorithm Suite
//
// The protocol predates AEAD ciphers and uses AES-CBC with PKCS#7 padding,
// optionally authenticated with encrypt-then-MAC HMAC-SHA-256. Three
// decryption methods appear on the wire:
//
//   - AES-128-CBC, MAC optional (detected by ciphertext parity).
//   - AES-256-CBC without MAC (legacy, unauthenticated).
//   - AES-256-CBC with mandatory HMAC-SHA-256.
//
// MAC subkeys are derived by hashing the symmetric key: SHA-256 for 128-bit
// keys (16-byte cipher key, 16-byte MAC key), SHA-512 for 256-bit keys
// (32/32 split). An authenticated ciphertext is marked by a leading 0x01
// byte followed by iv || ciphertext || mac, with the MAC computed over
// iv || ciphertext.
//
// # Passphrase Keys
//
// Two KDFs derive the passphrase key, selected by a server-provided version:
// a raw-output bcrypt variant producing a 128-bit key, and Argon2id with
// fixed parameters producing a 256-bit key. [AuthVerifier] proves knowledge
// of the derived key without transmitting it.
//
// # Key Unwrapping
//
// Wrapped keys (group keys, session keys) are decrypted through a fixed
// fallback ladder over the three methods, ordered by the wrapping key's
// width; see [UnwrapKey].
package crypto
