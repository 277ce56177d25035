package tuta

import (
	"fmt"

	"github.com/tutanota-cli/client-go/internal/crypto"
	"github.com/tutanota-cli/client-go/internal/typemodel"
	"github.com/tutanota-cli/client-go/internal/wire"
)

// KeyChain caches symmetric group keys by (group id, key version). It is
// populated at unlock time from the passphrase key and grows only through
// Insert, which the former-key walker calls after successfully decrypting
// a chain link. Keys are never removed or replaced.
type KeyChain struct {
	groups map[string]*groupKeys
}

type groupKeys struct {
	currentVersion string
	order          []string
	keys           map[string]crypto.Key
}

// NewKeyChain creates an empty key chain.
func NewKeyChain() *KeyChain {
	return &KeyChain{groups: make(map[string]*groupKeys)}
}

// Get returns the key for (group, version), if known.
func (k *KeyChain) Get(groupID, version string) (crypto.Key, bool) {
	g, ok := k.groups[groupID]
	if !ok {
		return nil, false
	}
	key, ok := g.keys[version]
	return key, ok
}

// Insert stores a key for (group, version). Inserting an already-known
// version is a no-op; stored key bytes are never altered.
func (k *KeyChain) Insert(groupID, version string, key crypto.Key) {
	g, ok := k.groups[groupID]
	if !ok {
		g = &groupKeys{keys: make(map[string]crypto.Key), currentVersion: version}
		k.groups[groupID] = g
	}
	if _, exists := g.keys[version]; exists {
		return
	}
	g.keys[version] = key
	g.order = append(g.order, version)
}

// Versions enumerates the known key versions of a group in insertion order.
func (k *KeyChain) Versions(groupID string) []string {
	g, ok := k.groups[groupID]
	if !ok {
		return nil
	}
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// CurrentVersion returns the group's current key version, if the group is
// known at all.
func (k *KeyChain) CurrentVersion(groupID string) (string, bool) {
	g, ok := k.groups[groupID]
	if !ok {
		return "", false
	}
	return g.currentVersion, true
}

// Membership is a user's relationship to a group, carrying the group key
// wrapped under the user group key.
type Membership struct {
	Group           string
	GroupType       string
	GroupKeyVersion string
	SymKeyVersion   string
	SymEncGKey      []byte
}

// UserKeyMaterial is the key-relevant slice of the User entity: the user
// group plus the plain membership list.
type UserKeyMaterial struct {
	UserGroup   Membership
	Memberships []Membership
}

// MailMembership returns the user's mail group membership, or nil when the
// user has none.
func (m *UserKeyMaterial) MailMembership() *Membership {
	for i := range m.Memberships {
		if m.Memberships[i].GroupType == typemodel.GroupTypeMail {
			return &m.Memberships[i]
		}
	}
	return nil
}

func parseMembership(v any) (Membership, error) {
	agg, ok := wire.Map(v)
	if !ok {
		return Membership{}, &ProtocolError{Type: "GroupMembership", Message: "not an aggregation"}
	}

	group, ok := wire.String(agg[typemodel.MembershipGroup])
	if !ok {
		return Membership{}, &ProtocolError{Type: "GroupMembership", Attribute: typemodel.MembershipGroup, Message: "missing group id"}
	}
	encKey, err := crypto.DecodeBytes(agg[typemodel.MembershipSymEncGKey])
	if err != nil || len(encKey) == 0 {
		return Membership{}, &ProtocolError{Type: "GroupMembership", Attribute: typemodel.MembershipSymEncGKey, Message: "missing wrapped group key"}
	}

	m := Membership{Group: group, SymEncGKey: encKey}
	if s, ok := wire.Text(agg[typemodel.MembershipGroupType]); ok {
		m.GroupType = s
	}
	if s, ok := wire.Text(agg[typemodel.MembershipGroupKeyVersion]); ok {
		m.GroupKeyVersion = s
	}
	if s, ok := wire.Text(agg[typemodel.MembershipSymKeyVersion]); ok {
		m.SymKeyVersion = s
	}
	return m, nil
}

// ParseUserKeyMaterial extracts the unlock inputs from a User wire instance.
func ParseUserKeyMaterial(user wire.Instance) (*UserKeyMaterial, error) {
	userGroup, err := parseMembership(user[typemodel.UserUserGroup])
	if err != nil {
		return nil, fmt.Errorf("user group: %w", err)
	}

	material := &UserKeyMaterial{UserGroup: userGroup}

	list, _ := wire.UnwrapSingleElement(user[typemodel.UserMemberships]).([]any)
	for i, v := range list {
		m, err := parseMembership(v)
		if err != nil {
			return nil, fmt.Errorf("membership %d: %w", i, err)
		}
		material.Memberships = append(material.Memberships, m)
	}
	return material, nil
}

// unwrapWithWidthDance decrypts a wrapped key, preferring the 128-bit
// truncation of a wide key. A legacy account may have a 128-bit passphrase
// key server-side while this client derived a 256-bit Argon2id key;
// accounts that migrated retain the 128-bit wrapping.
func unwrapWithWidthDance(key crypto.Key, wrapped []byte) (crypto.Key, error) {
	if len(key) > crypto.Key128Size {
		if k, err := crypto.UnwrapKey(key.Companion(), wrapped, nil); err == nil {
			return k, nil
		}
	}
	return crypto.UnwrapKey(key, wrapped, nil)
}

// Unlock plants the user group key derived from the passphrase key and,
// when a mail membership exists, the mail group key derived from it. All
// other memberships are ignored.
func (k *KeyChain) Unlock(passphraseKey crypto.Key, material *UserKeyMaterial) error {
	userKey, err := unwrapWithWidthDance(passphraseKey, material.UserGroup.SymEncGKey)
	if err != nil {
		return fmt.Errorf("unlock user group key: %w", err)
	}
	k.Insert(material.UserGroup.Group, material.UserGroup.GroupKeyVersion, userKey)

	if mail := material.MailMembership(); mail != nil {
		mailKey, err := unwrapWithWidthDance(userKey, mail.SymEncGKey)
		if err != nil {
			return fmt.Errorf("unlock mail group key: %w", err)
		}
		k.Insert(mail.Group, mail.GroupKeyVersion, mailKey)
	}
	return nil
}
