// Command tutanota-cli reads an encrypted mailbox from the terminal:
// session management, profile lookup, folder enumeration and message
// header listing.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	tuta "github.com/tutanota-cli/client-go"
)

const (
	envEmail    = "TUTANOTA_EMAIL"
	envPassword = "TUTANOTA_PASSWORD"
	envAPIURL   = "TUTANOTA_API_URL"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	// A .env in the working directory supplies missing variables; the
	// real environment wins.
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "auth":
		if len(os.Args) < 3 {
			usage()
		}
		switch os.Args[2] {
		case "check":
			authCheck(ctx, os.Args[3:])
		case "logout":
			authLogout()
		default:
			usage()
		}
	case "profile":
		profile(ctx, os.Args[2:])
	case "folders":
		if len(os.Args) < 3 || os.Args[2] != "list" {
			usage()
		}
		foldersList(ctx, os.Args[3:])
	case "mails":
		if len(os.Args) < 3 || os.Args[2] != "list" {
			usage()
		}
		mailsList(ctx, os.Args[3:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tutanota-cli <command>

commands:
  auth check [--json] [--verbose]   validate or create a session
  auth logout                       discard the stored session
  profile [--json] [--verbose]      show account information
  folders list [--json] [--verbose] list mailbox folders
  mails list <folder-id> [--count n] [--json] [--verbose]
                                    list newest mails of a folder`)
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// commonFlags parses the shared --json/--verbose flags.
func commonFlags(name string, args []string) (*flag.FlagSet, *bool, *bool) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "machine-readable output")
	verbose := fs.Bool("verbose", false, "verbose diagnostics on stderr")
	return fs, jsonOut, verbose
}

// promptCredentials obtains email and password from the environment,
// falling back to interactive prompts. The password prompt does not echo.
type promptCredentials struct{}

func (promptCredentials) Credentials(context.Context) (string, string, error) {
	email := os.Getenv(envEmail)
	if email == "" {
		fmt.Fprint(os.Stderr, "Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	password := os.Getenv(envPassword)
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}

	if email == "" || password == "" {
		return "", "", tuta.ErrMissingCredentials
	}
	return email, password, nil
}

func clientOptions() []tuta.Option {
	var opts []tuta.Option
	if u := os.Getenv(envAPIURL); u != "" {
		opts = append(opts, tuta.WithBaseURL(u))
	}
	return opts
}

func connect(ctx context.Context) (*tuta.Client, tuta.SessionStore) {
	store, err := tuta.DefaultSessionStore()
	if err != nil {
		fatal("session store: %v", err)
	}

	client, err := tuta.Connect(ctx, store, promptCredentials{}, clientOptions()...)
	if err != nil {
		fatal("connect: %v", err)
	}
	return client, store
}

// unlocked connects and makes sure the key chain is usable, prompting for
// credentials again when a resumed session carries no passphrase key.
func unlocked(ctx context.Context) *tuta.Client {
	client, _ := connect(ctx)
	if client.Unlocked() {
		return client
	}

	email, password, err := promptCredentials{}.Credentials(ctx)
	if err != nil {
		fatal("credentials: %v", err)
	}
	if err := client.EnsureUnlocked(ctx, email, password); err != nil {
		fatal("unlock: %v", err)
	}
	return client
}

func authCheck(ctx context.Context, args []string) {
	fs, jsonOut, verbose := commonFlags("auth check", args)
	fs.Parse(args)
	tuta.SetVerbose(*verbose)

	store, err := tuta.DefaultSessionStore()
	if err != nil {
		fatal("session store: %v", err)
	}

	client, err := tuta.Connect(ctx, store, promptCredentials{}, clientOptions()...)
	if err != nil {
		if *jsonOut {
			json.NewEncoder(os.Stdout).Encode(map[string]any{"ok": false, "error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "auth check failed: %v\n", err)
		}
		os.Exit(1)
	}

	session := client.Session()
	if *jsonOut {
		out := map[string]any{"ok": true, "userId": session.UserID}
		if session.SessionID != nil {
			out["sessionId"] = session.SessionID
		}
		json.NewEncoder(os.Stdout).Encode(out)
		return
	}
	fmt.Printf("ok: user %s\n", session.UserID)
}

func authLogout() {
	store, err := tuta.DefaultSessionStore()
	if err != nil {
		fatal("session store: %v", err)
	}
	if err := store.Clear(); err != nil {
		fatal("logout: %v", err)
	}
	fmt.Println("logged out")
}

func profile(ctx context.Context, args []string) {
	fs, jsonOut, verbose := commonFlags("profile", args)
	fs.Parse(args)
	tuta.SetVerbose(*verbose)

	client, _ := connect(ctx)
	p, err := client.Profile(ctx)
	if err != nil {
		fatal("profile: %v", err)
	}

	if *jsonOut {
		json.NewEncoder(os.Stdout).Encode(map[string]any{
			"userId":      p.UserID,
			"customerId":  p.CustomerID,
			"accountType": p.AccountType,
			"mailGroup":   p.MailGroup,
			"memberships": p.Memberships,
		})
		return
	}
	fmt.Printf("user:        %s\n", p.UserID)
	fmt.Printf("customer:    %s\n", p.CustomerID)
	fmt.Printf("accountType: %d\n", p.AccountType)
	fmt.Printf("mail group:  %s\n", p.MailGroup)
	fmt.Printf("memberships: %d\n", p.Memberships)
}

func foldersList(ctx context.Context, args []string) {
	fs, jsonOut, verbose := commonFlags("folders list", args)
	fs.Parse(args)
	tuta.SetVerbose(*verbose)

	client := unlocked(ctx)
	folders, err := client.Folders(ctx)
	if err != nil {
		fatal("folders: %v", err)
	}

	if *jsonOut {
		type folderOut struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			Color      string `json:"color,omitempty"`
			FolderType int64  `json:"folderType"`
		}
		out := make([]folderOut, 0, len(folders))
		for _, f := range folders {
			out = append(out, folderOut{ID: f.ID, Name: f.Name, Color: f.Color, FolderType: f.FolderType})
		}
		json.NewEncoder(os.Stdout).Encode(out)
		return
	}
	for _, f := range folders {
		fmt.Printf("%s  %s\n", f.ID, f.Name)
	}
}

func mailsList(ctx context.Context, args []string) {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		fatal("usage: tutanota-cli mails list <folder-id> [--count n] [--json] [--verbose]")
	}
	folderID := args[0]

	fs, jsonOut, verbose := commonFlags("mails list", args[1:])
	count := fs.Int("count", 10, "number of mails to list")
	fs.Parse(args[1:])
	tuta.SetVerbose(*verbose)

	client := unlocked(ctx)
	mails, err := client.Mails(ctx, folderID, *count)
	if err != nil {
		fatal("mails: %v", err)
	}

	if *jsonOut {
		type mailOut struct {
			ID           string    `json:"id"`
			Subject      string    `json:"subject"`
			Sender       string    `json:"sender,omitempty"`
			ReceivedDate time.Time `json:"receivedDate"`
			Unread       bool      `json:"unread"`
		}
		out := make([]mailOut, 0, len(mails))
		for _, m := range mails {
			out = append(out, mailOut{ID: m.ID, Subject: m.Subject, Sender: m.SenderAddress, ReceivedDate: m.ReceivedDate, Unread: m.Unread})
		}
		json.NewEncoder(os.Stdout).Encode(out)
		return
	}
	for _, m := range mails {
		marker := " "
		if m.Unread {
			marker = "*"
		}
		fmt.Printf("%s %s  %-30s  %s\n", marker, m.ReceivedDate.Format("2006-01-02 15:04"), m.SenderAddress, m.Subject)
	}
}
