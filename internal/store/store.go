// ABOUTME: Store interface and data types for the research session archive
// ABOUTME: Defines Session, Entry, SessionSummary and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidSession is returned when a session cannot be saved as given
var ErrInvalidSession = errors.New("invalid session")

// Session is a finished research conversation as archived.
type Session struct {
	ID        string
	Title     string
	Prompt    string
	Effort    string // low, medium, high
	Phase     string // complete, failed
	CreatedAt time.Time
	UpdatedAt time.Time
	Entries   []Entry
}

// Entry is one transcript line of an archived session.
type Entry struct {
	Position  int
	Speaker   string // user, system
	Kind      string // text, question, update, finalReport
	Text      string
	CreatedAt time.Time
}

// SessionSummary is a session without its entries, for listings.
type SessionSummary struct {
	ID         string
	Title      string
	Effort     string
	Phase      string
	EntryCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ListOptions filters ListSessions.
type ListOptions struct {
	Search string // case-insensitive title substring
	Limit  int    // 0 means no limit
}

// Store defines the archive operations.
type Store interface {
	// SaveSession inserts the session or replaces an existing one with the same ID.
	SaveSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	// ListSessions returns summaries, newest first.
	ListSessions(ctx context.Context, opts ListOptions) ([]*SessionSummary, error)
	DeleteSession(ctx context.Context, id string) error
	Close() error
}

// FinalReport returns the text of the session's last final report entry.
func (s *Session) FinalReport() string {
	for i := len(s.Entries) - 1; i >= 0; i-- {
		if s.Entries[i].Kind == "finalReport" {
			return s.Entries[i].Text
		}
	}
	return ""
}

func validateSession(sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidSession
	}
	return nil
}
