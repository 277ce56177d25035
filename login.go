package tuta

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/tutanota-cli/client-go/internal/crypto"
	"github.com/tutanota-cli/client-go/internal/typemodel"
	"github.com/tutanota-cli/client-go/internal/wire"
)

// Wire shapes of the authentication services. Requests are keyed by
// numeric attribute id; responses are normalized back to named fields.
var (
	saltRequestFields = wire.FieldMap{
		"_format":     "418",
		"mailAddress": "419",
	}
	saltResponseFields = wire.FieldMap{
		"_format":    "421",
		"salt":       "422",
		"kdfVersion": "2133",
	}
	sessionRequestFields = wire.FieldMap{
		"_format":             "1212",
		"mailAddress":         "1213",
		"authVerifier":        "1214",
		"clientIdentifier":    "1215",
		"accessKey":           "1216",
		"authToken":           "1217",
		"user":                "1218",
		"recoverCodeVerifier": "1417",
	}
	sessionResponseFields = wire.FieldMap{
		"_format":     "1220",
		"accessToken": "1221",
		"challenges":  "1222",
		"user":        "1223",
	}
)

const (
	saltService    = "saltservice"
	sessionService = "sessionservice"
	sysApp         = "sys"

	clientIdentifier = "tutanota-cli"

	// sessionListIDBytes of the decoded access token address the session
	// list; the remainder hashes to the element id.
	sessionListIDBytes = 9
)

// normalizeMailAddress lower-cases and trims an email address the way the
// salt endpoint expects it.
func normalizeMailAddress(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// buildSaltBody builds the numeric-keyed salt request body.
func buildSaltBody(email string) (map[string]any, error) {
	return saltRequestFields.Body(map[string]any{
		"_format":     "0",
		"mailAddress": normalizeMailAddress(email),
	})
}

// buildSessionBody builds the session-creation body. Every attribute is
// present even when empty: the user element association is an empty list,
// the optional attributes explicit nulls.
func buildSessionBody(email, authVerifier string) (map[string]any, error) {
	return sessionRequestFields.Body(map[string]any{
		"_format":             "0",
		"mailAddress":         normalizeMailAddress(email),
		"authVerifier":        authVerifier,
		"clientIdentifier":    clientIdentifier,
		"accessKey":           nil,
		"authToken":           nil,
		"user":                []any{},
		"recoverCodeVerifier": nil,
	})
}

// sessionIDFromAccessToken derives the session's (listId, elementId) pair
// from the access token: the first nine decoded bytes re-encode to the
// list id in the id alphabet, the SHA-256 of the remainder encodes to the
// element id in base64url. These are wire constants; the split and the
// mixed encodings must not be simplified.
func sessionIDFromAccessToken(token string) (SessionID, error) {
	raw, err := crypto.FromBase64URL(token)
	if err != nil {
		return SessionID{}, fmt.Errorf("decode access token: %w", err)
	}
	if len(raw) <= sessionListIDBytes {
		return SessionID{}, fmt.Errorf("access token too short: %d bytes", len(raw))
	}

	listID, err := crypto.ToBase64Ext(raw[:sessionListIDBytes])
	if err != nil {
		return SessionID{}, fmt.Errorf("encode session list id: %w", err)
	}

	digest := sha256.Sum256(raw[sessionListIDBytes:])
	return SessionID{
		ListID:    listID,
		ElementID: crypto.ToBase64URL(digest[:]),
	}, nil
}

// fetchSalt asks the salt endpoint for the account's KDF inputs.
func (c *Client) fetchSalt(ctx context.Context, email string) (salt []byte, kdfVersion string, err error) {
	body, err := buildSaltBody(email)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.api.GetService(ctx, sysApp, saltService, typemodel.SysModelVersion, body)
	if err != nil {
		return nil, "", wrapError(err)
	}

	fields := saltResponseFields.Normalize(resp)
	salt, err = crypto.DecodeBytes(fields["salt"])
	if err != nil || len(salt) == 0 {
		return nil, "", &ProtocolError{Type: "SaltReturn", Attribute: "salt", Message: "missing or malformed"}
	}
	kdfVersion, ok := wire.Text(fields["kdfVersion"])
	if !ok {
		kdfVersion = crypto.KdfBcrypt
	}
	return salt, kdfVersion, nil
}

// derivePassphraseKey runs the KDF for the account's salt and version.
func (c *Client) derivePassphraseKey(ctx context.Context, email, password string) (crypto.Key, error) {
	salt, kdfVersion, err := c.fetchSalt(ctx, email)
	if err != nil {
		return nil, err
	}
	key, err := crypto.DerivePassphraseKey(password, salt, kdfVersion)
	if err != nil {
		return nil, fmt.Errorf("derive passphrase key: %w", err)
	}
	return key, nil
}

// login runs the two-step login protocol and returns the new session plus
// the passphrase key needed to unlock the key chain.
func (c *Client) login(ctx context.Context, email, password string) (*Session, crypto.Key, error) {
	passphraseKey, err := c.derivePassphraseKey(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	body, err := buildSessionBody(email, crypto.AuthVerifier(passphraseKey))
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.api.PostService(ctx, sysApp, sessionService, typemodel.SysModelVersion, body)
	if err != nil {
		return nil, nil, wrapError(err)
	}

	fields := sessionResponseFields.Normalize(resp)
	if challenges, ok := fields["challenges"].([]any); ok && len(challenges) > 0 {
		return nil, nil, fmt.Errorf("%w: %d challenges", ErrTwoFactorRequired, len(challenges))
	}

	accessToken, ok := wire.String(fields["accessToken"])
	if !ok || accessToken == "" {
		return nil, nil, &ProtocolError{Type: "CreateSessionReturn", Attribute: "accessToken", Message: "missing"}
	}
	userID, ok := wire.String(fields["user"])
	if !ok || userID == "" {
		return nil, nil, &ProtocolError{Type: "CreateSessionReturn", Attribute: "user", Message: "missing"}
	}

	sessionID, err := sessionIDFromAccessToken(accessToken)
	if err != nil {
		return nil, nil, err
	}

	session := &Session{
		BaseURL:     c.api.BaseURL(),
		AccessToken: accessToken,
		UserID:      userID,
		SessionID:   &sessionID,
	}
	return session, passphraseKey, nil
}
