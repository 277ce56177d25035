package tuta

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/tutanota-cli/client-go/internal/crypto"
	"github.com/tutanota-cli/client-go/internal/wire"
)

func TestFolderTypeName(t *testing.T) {
	tests := []struct {
		folderType int64
		want       string
	}{
		{1, "Inbox"},
		{2, "Sent"},
		{3, "Trash"},
		{4, "Archive"},
		{5, "Spam"},
		{6, "Draft"},
		{10, "Scheduled"},
		{8, "Label (no name)"},
		{0, "(no name)"},
		{99, "(no name)"},
	}

	for _, tt := range tests {
		if got := folderTypeName(tt.folderType); got != tt.want {
			t.Errorf("folderTypeName(%d) = %q, want %q", tt.folderType, got, tt.want)
		}
	}
}

func TestFolderFromInstance_NameSubstitution(t *testing.T) {
	tests := []struct {
		name       string
		decrypted  string
		folderType string
		want       string
	}{
		{"empty name sent folder", "", "2", "Sent"},
		{"whitespace name", "   ", "2", "Sent"},
		{"empty name label", "", "8", "Label (no name)"},
		{"named folder keeps name", "Projects", "2", "Projects"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := folderFromInstance(wire.Instance{
				"435": tt.decrypted,
				"436": tt.folderType,
			})
			if f.Name != tt.want {
				t.Errorf("name = %q, want %q", f.Name, tt.want)
			}
		})
	}
}

// mailboxEnv is a fake server covering the whole mailbox walk.
type mailboxEnv struct {
	srv *httptest.Server

	mailKeyV2  crypto.Key // current mail group key
	mailKeyV1  crypto.Key // former version, reachable via the chain
	setKey     crypto.Key // session key of the mail sets
	mailSK     crypto.Key // session key of the mail
	fkRequests atomic.Int32
}

func newMailboxEnv(t *testing.T) *mailboxEnv {
	t.Helper()
	env := &mailboxEnv{
		mailKeyV2: testKey(t, crypto.Key128Size),
		mailKeyV1: testKey(t, crypto.Key128Size),
		setKey:    testKey(t, crypto.Key128Size),
		mailSK:    testKey(t, crypto.Key128Size),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/tutanota/mailboxgrouproot/mail-g", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"695": "mail-g", "699": "mailbox-1"})
	})
	mux.HandleFunc("/rest/tutanota/mailbox/mailbox-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"127":  "mailbox-1",
			"590":  "mail-g",
			"591":  crypto.ToBase64(wrap128(t, env.mailKeyV2, testKey(t, crypto.Key128Size))),
			"1396": "2",
			// Single-element-array wrapper around the folders aggregation.
			"443": []any{map[string]any{"442": "sets-list"}},
		})
	})
	mux.HandleFunc("/rest/tutanota/mailset/sets-list", func(w http.ResponseWriter, r *http.Request) {
		// One built-in folder at the current key version, one label at the
		// former version 1.
		inbox := wire.Instance{
			"431":  []any{"sets-list", "set-inbox"},
			"434":  crypto.ToBase64(wrap128(t, env.mailKeyV2, env.setKey)),
			"435":  encryptAttr(t, env.setKey, ""),
			"436":  "1",
			"589":  "mail-g",
			"1399": "2",
			"1459": "entries-inbox",
		}
		label := wire.Instance{
			"431":  []any{"sets-list", "set-label"},
			"434":  crypto.ToBase64(wrap128(t, env.mailKeyV1, env.setKey)),
			"435":  encryptAttr(t, env.setKey, "Receipts"),
			"436":  "8",
			"589":  "mail-g",
			"1399": "1",
			"1459": "entries-label",
		}
		json.NewEncoder(w).Encode([]any{inbox, label})
	})
	mux.HandleFunc("/rest/sys/group/mail-g", func(w http.ResponseWriter, r *http.Request) {
		env.fkRequests.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"7":    "mail-g",
			"2273": []any{map[string]any{"2272": "fk-list"}},
		})
	})
	mux.HandleFunc("/rest/sys/groupkey/fk-list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{
			map[string]any{"2267": crypto.ToBase64(wrap128(t, env.mailKeyV2, env.mailKeyV1))},
		})
	})
	mux.HandleFunc("/rest/tutanota/mailsetentry/entries-inbox", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{
			wire.Instance{"1452": "e1", "1456": []any{"mails-list", "m1"}},
		})
	})
	mux.HandleFunc("/rest/tutanota/mail/mails-list/m1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.Instance{
			"99":   []any{"mails-list", "m1"},
			"102":  crypto.ToBase64(wrap128(t, env.mailKeyV2, env.mailSK)),
			"105":  encryptAttr(t, env.mailSK, "Quarterly report"),
			"107":  "1715941800000",
			"111":  map[string]any{"115": "boss@example.com"},
			"426":  encryptAttr(t, env.mailSK, "1"),
			"466":  encryptAttr(t, env.mailSK, "0"),
			"587":  "mail-g",
			"1395": "2",
		})
	})

	env.srv = httptest.NewServer(mux)
	t.Cleanup(env.srv.Close)
	return env
}

// unlockedClient builds a client with a planted session and key chain, as
// if login and unlock already ran.
func (env *mailboxEnv) unlockedClient(t *testing.T) *Client {
	t.Helper()
	c := New(WithBaseURL(env.srv.URL))
	c.session = &Session{BaseURL: env.srv.URL, AccessToken: "tok", UserID: "user-1"}
	c.api.SetAccessToken("tok")
	c.material = &UserKeyMaterial{
		UserGroup: Membership{Group: "ug", GroupKeyVersion: "1"},
		Memberships: []Membership{
			{Group: "mail-g", GroupType: "5", GroupKeyVersion: "2"},
		},
	}
	c.chain.Insert("ug", "1", testKey(t, crypto.Key128Size))
	c.chain.Insert("mail-g", "2", env.mailKeyV2)
	return c
}

func TestFolders_EndToEnd(t *testing.T) {
	env := newMailboxEnv(t)
	c := env.unlockedClient(t)

	folders, err := c.Folders(context.Background())
	if err != nil {
		t.Fatalf("Folders() error = %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("got %d folders, want 2", len(folders))
	}

	// Input order is preserved through the fan-out.
	if folders[0].ID != "set-inbox" || folders[1].ID != "set-label" {
		t.Errorf("folder order = %s, %s", folders[0].ID, folders[1].ID)
	}

	// Empty decrypted name substitutes by folder type.
	if folders[0].Name != "Inbox" {
		t.Errorf("inbox name = %q, want %q", folders[0].Name, "Inbox")
	}

	// The label's session key is wrapped under the former version 1 key,
	// populated through the former-key walk.
	if folders[1].Name != "Receipts" {
		t.Errorf("label name = %q, want %q", folders[1].Name, "Receipts")
	}
	if folders[1].EntriesListID != "entries-label" {
		t.Errorf("entries list = %q", folders[1].EntriesListID)
	}

	if _, ok := c.chain.Get("mail-g", "1"); !ok {
		t.Error("former key version 1 not inserted during pre-walk")
	}
	// The missing version is walked exactly once.
	if got := env.fkRequests.Load(); got != 1 {
		t.Errorf("former-key walks = %d, want 1", got)
	}
}

func TestMails_EndToEnd(t *testing.T) {
	env := newMailboxEnv(t)
	c := env.unlockedClient(t)

	mails, err := c.Mails(context.Background(), "set-inbox", 10)
	if err != nil {
		t.Fatalf("Mails() error = %v", err)
	}
	if len(mails) != 1 {
		t.Fatalf("got %d mails, want 1", len(mails))
	}

	m := mails[0]
	if m.Subject != "Quarterly report" {
		t.Errorf("subject = %q", m.Subject)
	}
	if m.SenderAddress != "boss@example.com" {
		t.Errorf("sender = %q", m.SenderAddress)
	}
	if !m.Unread {
		t.Error("mail should be unread")
	}
	if m.Confidential {
		t.Error("mail should not be confidential")
	}
	if m.ListID != "mails-list" || m.ID != "m1" {
		t.Errorf("mail id = %s/%s", m.ListID, m.ID)
	}
	if m.ReceivedDate.UnixMilli() != 1715941800000 {
		t.Errorf("received date = %v", m.ReceivedDate)
	}
}

func TestMails_UnknownFolder(t *testing.T) {
	env := newMailboxEnv(t)
	c := env.unlockedClient(t)

	if _, err := c.Mails(context.Background(), "no-such-folder", 10); err == nil {
		t.Error("expected error for unknown folder id")
	}
}

func TestFolders_RequiresUnlock(t *testing.T) {
	env := newMailboxEnv(t)
	c := New(WithBaseURL(env.srv.URL))
	c.session = &Session{AccessToken: "tok", UserID: "user-1"}

	_, err := c.Folders(context.Background())
	if err == nil {
		t.Fatal("expected error before unlock")
	}
}
