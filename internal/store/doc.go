// Package store archives finished research sessions using SQLite.
//
// # Data Models
//
//   - Session: a finished conversation with its prompt, effort, and phase
//   - Entry: one transcript line (speaker, kind, text) in position order
//   - SessionSummary: a Session without entries, used for listings
//
// # Implementations
//
// SQLiteStore is backed by modernc.org/sqlite (pure Go, no CGO). The schema
// is created on open; entries are removed with their session through a
// cascading foreign key. MockStore keeps everything in memory for tests and
// mirrors SQLiteStore ordering and search.
//
// # Saving
//
// SaveSession is an upsert. Saving a session that already exists replaces
// its metadata and all of its entries in one transaction.
//
// # Listing
//
// ListSessions returns summaries newest first. Search is a case-insensitive
// substring match on the title; LIKE wildcards in the search text are
// matched literally.
package store
