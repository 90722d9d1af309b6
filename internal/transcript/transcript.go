// ABOUTME: Ordered conversation transcript with a single mutable live-update slot
// ABOUTME: Entries are append-only; the live slot is opened, updated in place, then closed

package transcript

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Speaker identifies who produced an entry.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerSystem Speaker = "system"
)

// Kind classifies an entry for the presentation layer.
type Kind string

const (
	KindPlainText   Kind = "text"
	KindQuestion    Kind = "question"
	KindLiveUpdate  Kind = "update"
	KindFinalReport Kind = "finalReport"
)

// ErrLiveKind is returned when Append is asked to write a live update;
// live updates go through OpenLive.
var ErrLiveKind = errors.New("live updates must be opened with OpenLive")

// Entry is one line of the transcript.
type Entry struct {
	Index     int
	Speaker   Speaker
	Kind      Kind
	Text      string
	Open      bool // live slot still mutable
	CreatedAt time.Time
}

// Transcript is the ordered log of a single conversation. It is safe for
// concurrent use. Every mutation is published to subscribers while the lock
// is held, so subscribers observe changes in transcript order.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
	live    *LiveSlot

	broadcaster *Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an empty transcript. Pass nil logger for default.
func New(logger *slog.Logger) *Transcript {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "transcript")
	return &Transcript{
		broadcaster: NewBroadcaster(logger),
		logger:      logger,
		now:         time.Now,
	}
}

// Append adds an immutable entry and returns it.
func (t *Transcript) Append(speaker Speaker, kind Kind, text string) (Entry, error) {
	if kind == KindLiveUpdate {
		return Entry{}, ErrLiveKind
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.appendLocked(speaker, kind, text, false)
	return e, nil
}

func (t *Transcript) appendLocked(speaker Speaker, kind Kind, text string, open bool) Entry {
	e := Entry{
		Index:     len(t.entries),
		Speaker:   speaker,
		Kind:      kind,
		Text:      text,
		Open:      open,
		CreatedAt: t.now(),
	}
	t.entries = append(t.entries, e)
	t.broadcaster.Publish(Change{Op: OpAppended, Entry: e})
	return e
}

// OpenLive appends a new live-update entry and returns its handle. Any live
// slot that is still open is closed first, so at most one is ever open.
func (t *Transcript) OpenLive(text string) *LiveSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.live != nil {
		t.logger.Debug("closing stale live slot", "index", t.live.index)
		t.closeLocked(t.live)
	}
	e := t.appendLocked(SpeakerSystem, KindLiveUpdate, text, true)
	slot := &LiveSlot{t: t, index: e.Index}
	t.live = slot
	return slot
}

// Live returns the currently open live slot, or nil.
func (t *Transcript) Live() *LiveSlot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Entries returns a snapshot of all entries in order.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Count returns how many entries have the given kind.
func (t *Transcript) Count(kind Kind) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Subscribe delivers every subsequent change until ctx is cancelled.
func (t *Transcript) Subscribe(ctx context.Context) (<-chan Change, string) {
	return t.broadcaster.Subscribe(ctx)
}

// Close releases subscribers. The transcript itself stays readable.
func (t *Transcript) Close() {
	t.broadcaster.Close()
}

func (t *Transcript) closeLocked(slot *LiveSlot) {
	t.entries[slot.index].Open = false
	if t.live == slot {
		t.live = nil
	}
	t.broadcaster.Publish(Change{Op: OpClosed, Entry: t.entries[slot.index]})
}

// LiveSlot is the handle to an open live-update entry. Once closed, updates
// are rejected and the entry is as immutable as any other.
type LiveSlot struct {
	t     *Transcript
	index int
}

// Index returns the transcript position of the slot's entry.
func (s *LiveSlot) Index() int {
	return s.index
}

// Update replaces the slot's text in place. It reports false if the slot
// has already been closed.
func (s *LiveSlot) Update(text string) bool {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.t.live != s {
		return false
	}
	s.t.entries[s.index].Text = text
	s.t.broadcaster.Publish(Change{Op: OpUpdated, Entry: s.t.entries[s.index]})
	return true
}

// Close freezes the slot. Closing twice is a no-op.
func (s *LiveSlot) Close() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.t.live != s {
		return
	}
	s.t.closeLocked(s)
}
