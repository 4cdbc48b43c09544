// Package session manages per-user conversation state for the chat relay.
//
// Invariants:
// - Exactly one live session per user identifier.
// - Turns increases by exactly one per successful Update; the store is the
//   sole authority on Turns and LastSeen.
// - Get never fails visibly: storage faults degrade to a fresh session so a
//   chat turn always gets some session object.
//
// Two backends implement the Store interface: a file-backed store with a
// debounced atomic persist and a background reaper, and a Redis-backed store
// that delegates expiry to server-side TTLs.
//
// Usage:
//
//	store, _ := session.NewFileStore(session.FileOptions{Path: "/tmp/sessions_db.json"}, log.Logger)
//	s := store.Get(ctx, "5493816000000")
//	store.Update(ctx, "5493816000000", session.Delta{Greeted: session.Bool(true)})
//	_ = store.Close()
package session
