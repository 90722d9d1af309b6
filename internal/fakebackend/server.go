// ABOUTME: Scripted research backend speaking the clarification and research wire contract
// ABOUTME: Used by end-to-end tests and by cmd/fake-research for local runs

package fakebackend

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/2389/coven-research/internal/backend"
	"github.com/2389/coven-research/internal/dedupe"
	"github.com/2389/coven-research/internal/frame"
)

const (
	dedupeTTL     = 10 * time.Minute
	dedupeMaxKeys = 10_000
)

// Event is one frame the research endpoint will send.
type Event struct {
	Type frame.Type
	Data any
}

// Script decides how the server answers.
type Script struct {
	// Questions returned by the clarification endpoint.
	Questions []string
	// ClarifyStatus, when non-zero, fails clarification with this status.
	ClarifyStatus int
	// StreamClarify answers clarification as an event stream ending in a final frame.
	StreamClarify bool

	// ResearchStatus, when non-zero, fails research with this status.
	ResearchStatus int
	// Events are sent before the final frame.
	Events []Event
	// Report is the final report; empty means one is generated from the query.
	Report string
	// OmitFinal ends the stream without a final frame.
	OmitFinal bool
	// Trailing frames are sent after the final frame.
	Trailing []Event
	// FrameDelay pauses between frames.
	FrameDelay time.Duration
}

// DefaultScript is a plausible three-question session with tracker progress.
func DefaultScript() Script {
	return Script{
		Questions: []string{
			"What time period are you most interested in?",
			"Should the report focus on any particular region?",
			"What level of technical detail do you want?",
		},
		Events: []Event{
			{Type: frame.TypeProgress, Data: map[string]any{"stage": "plan", "message": "generating search queries"}},
			{Type: frame.TypeProgress, Data: tracker(1, 4, 1.2)},
			{Type: frame.TypeProgress, Data: tracker(2, 4, 2.5)},
			{Type: frame.TypeError, Data: "one source timed out, continuing"},
			{Type: frame.TypeProgress, Data: tracker(3, 4, 3.9)},
			{Type: frame.TypeProgress, Data: tracker(4, 4, 5.1)},
			{Type: frame.TypeProgress, Data: map[string]any{"stage": "report", "message": "writing final report"}},
		},
		FrameDelay: 150 * time.Millisecond,
	}
}

func tracker(completed, total int, elapsed float64) map[string]any {
	pct := float64(completed) / float64(total) * 100
	remaining := elapsed/float64(completed)*float64(total) - elapsed
	return map[string]any{
		"completed":  completed,
		"total":      total,
		"percentage": pct,
		"elapsed":    elapsed,
		"remaining":  remaining,
	}
}

// Server is an http.Handler implementing the research backend contract.
type Server struct {
	mu             sync.Mutex
	script         Script
	clarifyQueries []string
	requests       []backend.ResearchRequest
	keys           []string

	guard  *dedupe.Guard
	mux    *http.ServeMux
	logger *slog.Logger
}

// New creates a server running script. Pass nil logger for default.
func New(script Script, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		script: script,
		guard:  dedupe.New(dedupeTTL, dedupeMaxKeys),
		mux:    http.NewServeMux(),
		logger: logger.With("component", "fakebackend"),
	}
	s.mux.HandleFunc("POST /api/feedback", s.handleFeedback)
	s.mux.HandleFunc("POST /api/research", s.handleResearch)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops the idempotency guard's sweeper.
func (s *Server) Close() {
	s.guard.Close()
}

// SetScript replaces the script for subsequent requests.
func (s *Server) SetScript(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
}

// ClarifyQueries returns every query sent to the clarification endpoint.
func (s *Server) ClarifyQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clarifyQueries...)
}

// Requests returns every accepted research request.
func (s *Server) Requests() []backend.ResearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.ResearchRequest(nil), s.requests...)
}

// IdempotencyKeys returns the key of every accepted research request.
func (s *Server) IdempotencyKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func (s *Server) currentScript() Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.script
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req backend.ClarifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		sendJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	s.mu.Lock()
	s.clarifyQueries = append(s.clarifyQueries, req.Query)
	script := s.script
	s.mu.Unlock()

	s.logger.Info("clarification requested", "query", req.Query)

	if script.ClarifyStatus != 0 {
		sendJSONError(w, script.ClarifyStatus, "clarification unavailable")
		return
	}

	questions := script.Questions
	if questions == nil {
		questions = []string{}
	}

	if !script.StreamClarify {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(backend.ClarifyResponse{Questions: questions})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	setStreamHeaders(w)
	frame.Write(w, frame.TypeProgress, "thinking of follow-up questions")
	flusher.Flush()
	frame.Write(w, frame.TypeFinal, backend.ClarifyResponse{Questions: questions})
	flusher.Flush()
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req backend.ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		sendJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	key := r.Header.Get(backend.IdempotencyHeader)
	if key != "" && !s.guard.Claim(key) {
		s.logger.Warn("duplicate research request", "idempotency_key", key)
		sendJSONError(w, http.StatusConflict, "duplicate request")
		return
	}

	script := s.currentScript()
	if script.ResearchStatus != 0 {
		if key != "" {
			s.guard.Release(key)
		}
		sendJSONError(w, script.ResearchStatus, "research unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.keys = append(s.keys, key)
	s.mu.Unlock()

	s.logger.Info("research started",
		"breadth", req.Breadth,
		"depth", req.Depth,
		"concurrency", req.Concurrency,
		"idempotency_key", key)

	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(ev Event) bool {
		if script.FrameDelay > 0 {
			select {
			case <-time.After(script.FrameDelay):
			case <-r.Context().Done():
				return false
			}
		}
		if err := frame.Write(w, ev.Type, ev.Data); err != nil {
			s.logger.Debug("client went away", "error", err)
			return false
		}
		flusher.Flush()
		return true
	}

	for _, ev := range script.Events {
		if !send(ev) {
			return
		}
	}

	if !script.OmitFinal {
		report := script.Report
		if report == "" {
			report = generateReport(req)
		}
		final := Event{Type: frame.TypeFinal, Data: map[string]any{
			"final_report": report,
			"learnings":    []string{},
			"visited_urls": []string{},
		}}
		if !send(final) {
			return
		}
	}

	for _, ev := range script.Trailing {
		if !send(ev) {
			return
		}
	}
}

func generateReport(req backend.ResearchRequest) string {
	return "# Research Report\n\n" +
		"Breadth " + strconv.Itoa(req.Breadth) + ", depth " + strconv.Itoa(req.Depth) + ".\n\n" +
		"## Query\n\n" + req.Query + "\n"
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
