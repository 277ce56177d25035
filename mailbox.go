package tuta

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tutanota-cli/client-go/internal/api"
	"github.com/tutanota-cli/client-go/internal/crypto"
	"github.com/tutanota-cli/client-go/internal/typemodel"
	"github.com/tutanota-cli/client-go/internal/wire"
)

// mailSetPageSize caps folder enumeration; accounts with more mail sets
// would need pagination.
const mailSetPageSize = 1000

// defaultMailPageSize is the number of newest entries listed per folder.
const defaultMailPageSize = 10

// Folder is a decrypted mail set: a folder or label container.
type Folder struct {
	// ListID and ID form the tuple id of the MailSet entity.
	ListID string
	ID     string
	// Name is the decrypted display name, with the folder-type fallback
	// applied when the stored name is empty.
	Name  string
	Color string
	// FolderType discriminates the built-in folders; see folderTypeName.
	FolderType int64
	// EntriesListID addresses the folder's mail entries list.
	EntriesListID string
}

// Mail is a decrypted message header. Bodies and attachments are out of
// the client's scope.
type Mail struct {
	// ListID and ID form the tuple id of the Mail entity.
	ListID string
	ID     string

	Subject                 string
	SenderAddress           string
	DifferentEnvelopeSender string
	SentDate                time.Time
	ReceivedDate            time.Time
	Unread                  bool
	Confidential            bool
}

// folderTypeName substitutes a display name for mail sets whose stored
// name is empty: the built-in folders carry no encrypted name at all.
func folderTypeName(folderType int64) string {
	switch folderType {
	case 1:
		return "Inbox"
	case 2:
		return "Sent"
	case 3:
		return "Trash"
	case 4:
		return "Archive"
	case 5:
		return "Spam"
	case 6:
		return "Draft"
	case 10:
		return "Scheduled"
	case 8:
		return "Label (no name)"
	default:
		return "(no name)"
	}
}

// mailMembership returns the unlocked mail membership or ErrLocked.
func (c *Client) mailMembership() (*Membership, error) {
	if c.material == nil {
		return nil, fmt.Errorf("%w: unlock before reading the mailbox", ErrLocked)
	}
	mail := c.material.MailMembership()
	if mail == nil {
		return nil, &ProtocolError{Type: "User", Attribute: typemodel.UserMemberships, Message: "no mail group membership"}
	}
	return mail, nil
}

// loadMailSets walks MailboxGroupRoot -> MailBox -> mail-sets list and
// returns the raw MailSet range.
func (c *Client) loadMailSets(ctx context.Context, mailGroupID string) ([]wire.Instance, error) {
	root, err := c.api.LoadEntity(ctx, typemodel.MailboxGroupRoot, api.ElementID(mailGroupID))
	if err != nil {
		return nil, wrapError(err)
	}
	mailboxID, ok := wire.String(root[typemodel.MailboxGroupRootMailbox])
	if !ok || mailboxID == "" {
		return nil, &ProtocolError{Type: "MailboxGroupRoot", Attribute: typemodel.MailboxGroupRootMailbox, Message: "missing mailbox id"}
	}

	box, err := c.api.LoadEntity(ctx, typemodel.MailBox, api.ElementID(mailboxID))
	if err != nil {
		return nil, wrapError(err)
	}
	boxKey, err := ResolveSessionKey(c.chain, typemodel.MailBox, box, "", c.cb)
	if err != nil {
		c.logSink().LogError("mailbox session key", err)
	}
	box = DecryptInstance(typemodel.MailBox, box, boxKey, c.cb)

	// The mail-sets list id lives on the MailSetRef aggregation, which may
	// arrive wrapped in a single-element array.
	foldersRef, ok := wire.Map(box[typemodel.MailBoxFolders])
	if !ok {
		return nil, &ProtocolError{Type: "MailBox", Attribute: typemodel.MailBoxFolders, Message: "missing folders aggregation"}
	}
	mailSetsListID, ok := wire.String(foldersRef[typemodel.MailSetRefList])
	if !ok || mailSetsListID == "" {
		return nil, &ProtocolError{Type: "MailSetRef", Attribute: typemodel.MailSetRefList, Message: "missing mail-sets list id"}
	}

	sets, err := c.api.LoadRange(ctx, typemodel.MailSet, mailSetsListID, api.GeneratedMinID, mailSetPageSize, false)
	if err != nil {
		return nil, wrapError(err)
	}
	return sets, nil
}

// populateFormerKeys scans a range result for owner key versions older
// than the group's current version and walks the former-key chain once per
// missing version. It must complete before the decryption fan-out starts:
// the key chain is not guarded against concurrent inserts.
func (c *Client) populateFormerKeys(ctx context.Context, tm *typemodel.Type, groupID string, instances []wire.Instance) error {
	current, ok := c.chain.CurrentVersion(groupID)
	if !ok {
		return nil
	}

	seen := make(map[string]struct{})
	for _, inst := range instances {
		version, ok := wire.Text(inst[tm.OwnerKeyVersion])
		if !ok || version == current {
			continue
		}
		if _, done := seen[version]; done {
			continue
		}
		seen[version] = struct{}{}
		if _, cached := c.chain.Get(groupID, version); cached {
			continue
		}
		if _, err := c.deriveFormerKey(ctx, groupID, current, version); err != nil {
			return err
		}
	}
	return nil
}

// decryptWithRetry applies the per-instance key-version retry loop: the
// instance's own owner key version first, then every other cached version
// of the group. A version is rejected when decryption of any attribute in
// retryOn reported failure. When every version fails, the instance is
// decrypted without a session key, which materializes zero values for all
// encrypted attributes and preserves the association ids.
func (c *Client) decryptWithRetry(tm *typemodel.Type, inst wire.Instance, groupID string, retryOn map[string]struct{}) wire.Instance {
	ownVersion, _ := wire.Text(inst[tm.OwnerKeyVersion])
	versions := []string{ownVersion}
	for _, v := range c.chain.Versions(groupID) {
		if v != ownVersion {
			versions = append(versions, v)
		}
	}

	for _, version := range versions {
		var failed bool
		cb := c.watchFailures(retryOn, &failed)

		sessionKey, err := ResolveSessionKey(c.chain, tm, inst, version, cb)
		if err != nil || sessionKey == nil {
			continue
		}
		decrypted := DecryptInstance(tm, inst, sessionKey, cb)
		if !failed {
			return decrypted
		}
	}
	return DecryptInstance(tm, inst, nil, c.cb)
}

// watchFailures chains the client callbacks with a probe that records
// decryption failures of the given attributes.
func (c *Client) watchFailures(attrs map[string]struct{}, failed *bool) *DecryptCallbacks {
	base := c.cb
	return &DecryptCallbacks{
		OnUnwrapMethod: func(m crypto.UnwrapMethod) {
			if base != nil && base.OnUnwrapMethod != nil {
				base.OnUnwrapMethod(m)
			}
		},
		OnUnwrapAttempt: func(m crypto.UnwrapMethod, err error) {
			if base != nil && base.OnUnwrapAttempt != nil {
				base.OnUnwrapAttempt(m, err)
			}
		},
		OnDecryptFailure: func(attrID string, err error) {
			if _, watched := attrs[attrID]; watched {
				*failed = true
			}
			if base != nil && base.OnDecryptFailure != nil {
				base.OnDecryptFailure(attrID, err)
			}
		},
		OnCompanionFallback: func(attrID string) {
			if base != nil && base.OnCompanionFallback != nil {
				base.OnCompanionFallback(attrID)
			}
		},
	}
}

// mailSetRetryAttrs are the encrypted strings whose failure triggers the
// version retry: the name and color of a mail set.
var mailSetRetryAttrs = map[string]struct{}{
	typemodel.MailSetName:  {},
	typemodel.MailSetColor: {},
}

// Folders enumerates the account's mail sets with decrypted names.
func (c *Client) Folders(ctx context.Context) ([]Folder, error) {
	var folders []Folder
	err := c.withAuthRetry(ctx, func() error {
		out, err := c.folders(ctx)
		if err != nil {
			return err
		}
		folders = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folders, nil
}

func folderFromInstance(inst wire.Instance) Folder {
	f := Folder{}
	if listID, elementID, ok := wire.TupleID(inst[typemodel.MailSetID]); ok {
		f.ListID, f.ID = listID, elementID
	}
	if name, ok := inst[typemodel.MailSetName].(string); ok {
		f.Name = name
	}
	if color, ok := inst[typemodel.MailSetColor].(string); ok {
		f.Color = color
	}
	if text, ok := wire.Text(inst[typemodel.MailSetFolderType]); ok {
		if n, err := parseWireNumber(text); err == nil {
			f.FolderType = n
		}
	}
	if entries, ok := wire.String(inst[typemodel.MailSetEntries]); ok {
		f.EntriesListID = entries
	}
	if strings.TrimSpace(f.Name) == "" {
		f.Name = folderTypeName(f.FolderType)
	}
	return f
}

// Mails lists the newest message headers of a folder, identified by its
// element id as printed by Folders.
func (c *Client) Mails(ctx context.Context, folderID string, count int) ([]Mail, error) {
	if count <= 0 {
		count = defaultMailPageSize
	}

	var mails []Mail
	err := c.withAuthRetry(ctx, func() error {
		folders, err := c.folders(ctx)
		if err != nil {
			return err
		}

		var folder *Folder
		for i := range folders {
			if folders[i].ID == folderID {
				folder = &folders[i]
				break
			}
		}
		if folder == nil {
			return fmt.Errorf("folder %s not found", folderID)
		}
		if folder.EntriesListID == "" {
			return &ProtocolError{Type: "MailSet", Attribute: typemodel.MailSetEntries, Message: "missing entries list id"}
		}

		entries, err := c.api.LoadRange(ctx, typemodel.MailSetEntry, folder.EntriesListID, api.GeneratedMaxID, count, true)
		if err != nil {
			return wrapError(err)
		}

		out := make([]Mail, len(entries))
		ferr := c.forEachLimit(ctx, len(entries), func(ctx context.Context, i int) error {
			listID, elementID, ok := wire.TupleID(entries[i][typemodel.MailSetEntryMail])
			if !ok {
				return &ProtocolError{Type: "MailSetEntry", Attribute: typemodel.MailSetEntryMail, Message: "missing mail reference"}
			}

			raw, err := c.api.LoadEntity(ctx, typemodel.Mail, api.TupleID(listID, elementID))
			if err != nil {
				return wrapError(err)
			}

			sessionKey, err := ResolveSessionKey(c.chain, typemodel.Mail, raw, "", c.cb)
			if err != nil {
				c.logSink().LogError("mail session key", err)
			}
			decrypted := DecryptInstance(typemodel.Mail, raw, sessionKey, c.cb)
			out[i] = mailFromInstance(decrypted)
			return nil
		})
		if ferr != nil {
			return ferr
		}
		mails = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mails, nil
}

// folders runs the folder enumeration without its own auth retry, for use
// inside an already-retried operation.
func (c *Client) folders(ctx context.Context) ([]Folder, error) {
	mail, err := c.mailMembership()
	if err != nil {
		return nil, err
	}
	sets, err := c.loadMailSets(ctx, mail.Group)
	if err != nil {
		return nil, err
	}
	if err := c.populateFormerKeys(ctx, typemodel.MailSet, mail.Group, sets); err != nil {
		return nil, err
	}

	out := make([]Folder, len(sets))
	ferr := c.forEachLimit(ctx, len(sets), func(ctx context.Context, i int) error {
		decrypted := c.decryptWithRetry(typemodel.MailSet, sets[i], mail.Group, mailSetRetryAttrs)
		out[i] = folderFromInstance(decrypted)
		return nil
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

func mailFromInstance(inst wire.Instance) Mail {
	m := Mail{}
	if listID, elementID, ok := wire.TupleID(inst[typemodel.MailID]); ok {
		m.ListID, m.ID = listID, elementID
	}
	if subject, ok := inst[typemodel.MailSubject].(string); ok {
		m.Subject = subject
	}
	if sender, ok := wire.Map(inst[typemodel.MailSender]); ok {
		if address, ok := wire.String(sender[typemodel.MailAddressAddress]); ok {
			m.SenderAddress = address
		}
	}
	if s, ok := inst[typemodel.MailDifferentEnvelopeSender].(string); ok {
		m.DifferentEnvelopeSender = s
	}
	if text, ok := wire.Text(inst[typemodel.MailSentDate]); ok {
		if n, err := parseWireNumber(text); err == nil {
			m.SentDate = time.UnixMilli(n).UTC()
		}
	}
	if text, ok := wire.Text(inst[typemodel.MailReceivedDate]); ok {
		if n, err := parseWireNumber(text); err == nil {
			m.ReceivedDate = time.UnixMilli(n).UTC()
		}
	}
	if unread, ok := inst[typemodel.MailUnread].(bool); ok {
		m.Unread = unread
	}
	if confidential, ok := inst[typemodel.MailConfidential].(bool); ok {
		m.Confidential = confidential
	}
	return m
}

// forEachLimit runs fn for every index with at most maxInFlight concurrent
// invocations, preserving input order in the caller's output slice. The
// first error cancels the remaining work.
func (c *Client) forEachLimit(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, c.maxInFlight)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

loop:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(ctx, i); err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(i)
	}

	wg.Wait()
	return firstErr
}
