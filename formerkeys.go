package tuta

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tutanota-cli/client-go/internal/api"
	"github.com/tutanota-cli/client-go/internal/crypto"
	"github.com/tutanota-cli/client-go/internal/typemodel"
	"github.com/tutanota-cli/client-go/internal/wire"
)

// deriveFormerKey recovers a group key at an older version by walking the
// group's former-key chain from the current version downward, decrypting
// each link with the next-newer key. The recovered key is inserted into
// the key chain.
//
// A decryption failure along the chain means the target version is
// unreachable; the walk aborts and returns nil without error. HTTP
// failures propagate.
func (c *Client) deriveFormerKey(ctx context.Context, groupID, currentVersion, targetVersion string) (crypto.Key, error) {
	current, err := strconv.ParseUint(currentVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("current key version %q: %w", currentVersion, err)
	}
	target, err := strconv.ParseUint(targetVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("target key version %q: %w", targetVersion, err)
	}

	if current <= target {
		key, _ := c.chain.Get(groupID, targetVersion)
		return key, nil
	}

	key, ok := c.chain.Get(groupID, currentVersion)
	if !ok {
		return nil, fmt.Errorf("%w: group %s version %s", ErrKeyUnavailable, groupID, currentVersion)
	}

	group, err := c.api.LoadEntity(ctx, typemodel.Group, api.ElementID(groupID))
	if err != nil {
		return nil, wrapError(err)
	}

	// The former-keys list id lives inside a single-element-array
	// aggregation on the Group entity.
	keysRef, ok := wire.Map(group[typemodel.GroupFormerGroupKeys])
	if !ok {
		return nil, &ProtocolError{Type: "Group", Attribute: typemodel.GroupFormerGroupKeys, Message: "missing former-keys aggregation"}
	}
	listID, ok := wire.String(keysRef[typemodel.GroupKeysRefList])
	if !ok || listID == "" {
		return nil, &ProtocolError{Type: "GroupKeysRef", Attribute: typemodel.GroupKeysRefList, Message: "missing list id"}
	}

	start := crypto.CustomIDFromString(currentVersion)
	count := int(current - target)

	links, err := c.api.LoadRange(ctx, typemodel.GroupKey, listID, start, count, true)
	if err != nil {
		return nil, wrapError(err)
	}

	for _, link := range links {
		wrapped, err := crypto.DecodeBytes(link[typemodel.GroupKeyOwnerEncGKey])
		if err != nil || len(wrapped) == 0 {
			return nil, nil
		}
		key, err = crypto.UnwrapKey(key, wrapped, nil)
		if err != nil {
			c.logSink().Log(fmt.Sprintf("former-key chain of group %s broke before version %s", groupID, targetVersion))
			return nil, nil
		}
	}

	c.chain.Insert(groupID, targetVersion, key)
	return key, nil
}
