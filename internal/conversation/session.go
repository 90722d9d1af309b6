// ABOUTME: Session drives one research conversation from prompt to final report
// ABOUTME: One-shot gates guard init, research start, and the terminal transition

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/2389/coven-research/internal/backend"
	"github.com/2389/coven-research/internal/frame"
	"github.com/2389/coven-research/internal/store"
	"github.com/2389/coven-research/internal/transcript"
)

// DefaultConcurrency is sent with every research request unless overridden.
const DefaultConcurrency = 2

// maxTitleRunes bounds the archived session title derived from the prompt.
const maxTitleRunes = 80

// Session errors
var (
	ErrPromptRequired  = errors.New("prompt is required")
	ErrBackendRequired = errors.New("backend is required")
	ErrNotAccepting    = errors.New("session is not accepting answers")
	ErrSessionClosed   = errors.New("session is closed")
)

// Backend is what the session needs from the research service.
type Backend interface {
	Clarify(ctx context.Context, query string) ([]string, error)
	Research(ctx context.Context, req backend.ResearchRequest) (io.ReadCloser, error)
}

// Archiver receives the finished conversation.
type Archiver interface {
	SaveSession(ctx context.Context, sess *store.Session) error
}

// Options configures a Session.
type Options struct {
	Prompt       string
	Effort       Level
	Concurrency  int
	MaxFrameSize int
	Backend      Backend
	Archiver     Archiver // optional
	Logger       *slog.Logger
}

// Session is a single research conversation. All transitions and
// transcript writes happen under one mutex; network calls happen outside it.
type Session struct {
	id           string
	prompt       string
	effort       Level
	concurrency  int
	maxFrameSize int
	createdAt    time.Time

	backend  Backend
	archiver Archiver
	logger   *slog.Logger

	mu         sync.Mutex
	phase      Phase
	transcript *transcript.Transcript
	sequencer  *Sequencer
	router     *Router
	report     string
	err        error

	initialized     atomic.Bool
	researchStarted atomic.Bool
	terminated      atomic.Bool

	done chan struct{}
}

// New creates an idle session.
func New(opts Options) (*Session, error) {
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, ErrPromptRequired
	}
	if opts.Backend == nil {
		return nil, ErrBackendRequired
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New().String()
	base := logger.With("session_id", id)
	logger = base.With("component", "session")

	effort := opts.Effort
	switch effort {
	case LevelLow, LevelMedium, LevelHigh:
	default:
		if effort != "" {
			logger.Warn("unknown effort level, using medium", "effort", effort)
		}
		effort = LevelMedium
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	t := transcript.New(base)
	return &Session{
		id:           id,
		prompt:       opts.Prompt,
		effort:       effort,
		concurrency:  concurrency,
		maxFrameSize: opts.MaxFrameSize,
		createdAt:    time.Now(),
		backend:      opts.Backend,
		archiver:     opts.Archiver,
		logger:       logger,
		phase:        PhaseIdle,
		transcript:   t,
		sequencer:    NewSequencer(),
		router:       NewRouter(t, base),
		done:         make(chan struct{}),
	}, nil
}

// ID returns the session's UUID.
func (s *Session) ID() string { return s.id }

// Prompt returns the initial research request.
func (s *Session) Prompt() string { return s.prompt }

// Effort returns the effort level the session runs at.
func (s *Session) Effort() Level { return s.effort }

// Transcript returns the session's transcript for reading and subscribing.
func (s *Session) Transcript() *transcript.Transcript { return s.transcript }

// Done is closed once the session reaches a terminal phase and has been archived.
func (s *Session) Done() <-chan struct{} { return s.done }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// FinalReport returns the report text once terminal. A failed session
// reports the fixed failure text.
func (s *Session) FinalReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Err returns why the session failed, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the session is done or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start records the prompt and fetches clarifying questions. Only the first
// call does anything; later calls return nil without issuing a request.
func (s *Session) Start(ctx context.Context) error {
	if !s.initialized.CompareAndSwap(false, true) {
		s.logger.Debug("start called again, ignoring")
		return nil
	}

	s.mu.Lock()
	s.transcript.Append(transcript.SpeakerUser, transcript.KindPlainText, s.prompt)
	s.mu.Unlock()

	questions, err := s.backend.Clarify(ctx, s.prompt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Warn("clarification failed", "error", err)
		s.transcript.Append(transcript.SpeakerSystem, transcript.KindPlainText, TextClarifyFailed)
		s.sequencer.LoadFailed()
		s.phase = PhaseCollectingAnswers
		return nil
	}

	first, exhausted := s.sequencer.Load(questions)
	s.phase = PhaseCollectingAnswers
	s.logger.Info("clarifying questions received", "count", len(questions))

	if exhausted {
		s.startResearchLocked(ctx)
		return nil
	}
	s.transcript.Append(transcript.SpeakerSystem, transcript.KindQuestion, first)
	return nil
}

// Answer records the user's reply to the current question and either asks
// the next one or starts research.
func (s *Session) Answer(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.phase.Terminal():
		return ErrSessionClosed
	case s.phase != PhaseCollectingAnswers:
		return fmt.Errorf("%w (phase %s)", ErrNotAccepting, s.phase)
	}

	s.transcript.Append(transcript.SpeakerUser, transcript.KindPlainText, text)

	step, next := s.sequencer.Advance(text)
	switch step {
	case StepAsk:
		s.transcript.Append(transcript.SpeakerSystem, transcript.KindQuestion, next)
	case StepExhausted:
		s.startResearchLocked(ctx)
	case StepIgnored:
		s.logger.Debug("answer after exhaustion ignored")
	}
	return nil
}

// startResearchLocked moves to Researching and launches the research
// stream. The live slot is visible before the request goes out.
func (s *Session) startResearchLocked(ctx context.Context) {
	if !s.researchStarted.CompareAndSwap(false, true) {
		return
	}

	s.phase = PhaseResearching
	s.transcript.OpenLive(TextResearching)

	params := s.effort.Params()
	req := backend.ResearchRequest{
		Query:       BuildResearchQuery(s.prompt, s.sequencer.Pairs()),
		Breadth:     params.Breadth,
		Depth:       params.Depth,
		Concurrency: s.concurrency,
	}

	s.logger.Info("research started",
		"effort", s.effort,
		"breadth", req.Breadth,
		"depth", req.Depth,
		"answers", len(s.sequencer.Pairs()))

	go s.runResearch(ctx, req)
}

// runResearch consumes the research stream frame by frame. Each frame's
// effects are applied before the next read.
func (s *Session) runResearch(ctx context.Context, req backend.ResearchRequest) {
	defer s.settle(ctx)

	body, err := s.backend.Research(ctx, req)
	if err != nil {
		s.fail(err)
		return
	}
	defer body.Close()

	decodeOpts := []frame.Option{frame.WithLogger(s.logger)}
	if s.maxFrameSize > 0 {
		decodeOpts = append(decodeOpts, frame.WithMaxFrameSize(s.maxFrameSize))
	}

	for f, err := range frame.Decode(body, decodeOpts...) {
		if err != nil {
			if frame.IsDecodeError(err) {
				s.logger.Warn("skipping malformed frame", "error", err)
				continue
			}
			s.fail(err)
			return
		}
		if s.apply(f) {
			return
		}
	}

	s.fail(backend.ErrStreamEnded)
}

// apply routes one frame and reports whether the session is now terminal.
func (s *Session) apply(f frame.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated.Load() {
		s.logger.Debug("dropping frame after terminal state", "type", f.Type)
		return true
	}

	res := s.router.Route(f)
	switch res.Outcome {
	case OutcomeComplete:
		if s.terminated.CompareAndSwap(false, true) {
			s.phase = PhaseComplete
			s.report = res.Report
			s.logger.Info("research complete")
		}
		return true
	case OutcomeFailed:
		s.failLocked(res.Err)
		return true
	default:
		return false
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(err)
}

// failLocked records a transport-level failure. Only the first terminal
// signal is honored.
func (s *Session) failLocked(err error) {
	if !s.terminated.CompareAndSwap(false, true) {
		s.logger.Debug("ignoring failure after terminal state", "error", err)
		return
	}

	if live := s.transcript.Live(); live != nil {
		live.Close()
	}
	s.transcript.Append(transcript.SpeakerSystem, transcript.KindFinalReport, TextResearchFailed)
	s.phase = PhaseFailed
	s.report = TextResearchFailed
	s.err = err

	s.logger.Error("research failed", "error", err)
}

// settle archives the finished session and releases waiters.
func (s *Session) settle(ctx context.Context) {
	defer close(s.done)
	defer s.transcript.Close()

	if s.archiver == nil {
		return
	}

	rec := s.record()
	if err := s.archiver.SaveSession(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to archive session", "error", err)
		return
	}
	s.logger.Debug("session archived", "entries", len(rec.Entries))
}

// record snapshots the session in its archived form.
func (s *Session) record() *store.Session {
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()

	entries := s.transcript.Entries()
	out := &store.Session{
		ID:        s.id,
		Title:     titleFor(s.prompt),
		Prompt:    s.prompt,
		Effort:    string(s.effort),
		Phase:     phase.String(),
		CreatedAt: s.createdAt,
		UpdatedAt: time.Now(),
		Entries:   make([]store.Entry, len(entries)),
	}
	for i, e := range entries {
		out.Entries[i] = store.Entry{
			Position:  e.Index,
			Speaker:   string(e.Speaker),
			Kind:      string(e.Kind),
			Text:      e.Text,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}

// titleFor derives a short title from the first line of the prompt.
func titleFor(prompt string) string {
	title := strings.TrimSpace(prompt)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxTitleRunes-3]) + "..."
}
