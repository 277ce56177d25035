// Package tuta provides a Go client for an end-to-end encrypted mail
// service. It authenticates against the versioned REST API, persists a
// session locally, and reads the user's mailbox folders and message
// headers by walking a tree of encrypted entities.
//
// Basic usage:
//
//	store, err := tuta.DefaultSessionStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := tuta.Connect(ctx, store, creds)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	folders, err := client.Folders(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, f := range folders {
//	    fmt.Println(f.Name)
//	}
//
// Decryption never sees the passphrase: the passphrase key is derived
// locally, unlocks the user group key, and from there a per-group key
// chain resolves the session key of every encrypted entity. Attribute
// decryption failures are non-fatal; affected attributes fall back to
// their scalar zero values and are reported through [DecryptCallbacks].
package tuta
