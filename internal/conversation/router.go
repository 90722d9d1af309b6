// ABOUTME: Applies decoded research stream frames to the transcript one at a time
// ABOUTME: Progress and error frames rewrite the live slot; a final frame closes it and appends the report

package conversation

import (
	"errors"
	"log/slog"

	"github.com/2389/coven-research/internal/frame"
	"github.com/2389/coven-research/internal/transcript"
)

// Fixed transcript texts.
const (
	TextResearching    = "Doing research..."
	TextDone           = "Done"
	TextClarifyFailed  = "Error fetching follow-up questions."
	TextResearchFailed = "Error fetching research results."
	errorFramePrefix   = "Error: "
)

// ErrMalformedFinal is reported when a final frame carries no report.
var ErrMalformedFinal = errors.New("final frame has no report")

// Outcome is the effect a routed frame has on the session phase.
type Outcome int

const (
	// OutcomeContinue leaves the phase unchanged.
	OutcomeContinue Outcome = iota
	// OutcomeComplete means the research finished with a report.
	OutcomeComplete
	// OutcomeFailed means the frame ended the research unsuccessfully.
	OutcomeFailed
)

// Result describes what Route did with a frame.
type Result struct {
	Outcome Outcome
	Report  string
	Err     error
}

// finalPayload is the data of a final frame.
type finalPayload struct {
	FinalReport string   `json:"final_report"`
	Learnings   []string `json:"learnings,omitempty"`
	VisitedURLs []string `json:"visited_urls,omitempty"`
}

// Router interprets frames against a transcript. It holds no state of its
// own and must be called from a single goroutine at a time.
type Router struct {
	transcript *transcript.Transcript
	logger     *slog.Logger
}

// NewRouter creates a router writing to t. Pass nil logger for default.
func NewRouter(t *transcript.Transcript, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		transcript: t,
		logger:     logger.With("component", "router"),
	}
}

// Route applies one frame. A malformed final frame changes nothing in the
// transcript and reports OutcomeFailed; the caller decides how to surface it.
func (r *Router) Route(f frame.Frame) Result {
	switch f.Type {
	case frame.TypeProgress:
		r.setLive(RenderProgress(f))
		return Result{Outcome: OutcomeContinue}

	case frame.TypeError:
		text := f.Text()
		r.logger.Warn("research stream reported an error", "error", text)
		r.setLive(errorFramePrefix + text)
		return Result{Outcome: OutcomeContinue}

	case frame.TypeFinal:
		var payload finalPayload
		if err := f.Unmarshal(&payload); err != nil || payload.FinalReport == "" {
			r.logger.Warn("final frame without report", "data", f.Text())
			return Result{Outcome: OutcomeFailed, Err: ErrMalformedFinal}
		}

		if live := r.transcript.Live(); live != nil {
			live.Close()
		}
		r.transcript.Append(transcript.SpeakerSystem, transcript.KindFinalReport, payload.FinalReport)
		r.transcript.Append(transcript.SpeakerSystem, transcript.KindPlainText, TextDone)

		r.logger.Debug("research complete",
			"report_bytes", len(payload.FinalReport),
			"learnings", len(payload.Learnings),
			"visited_urls", len(payload.VisitedURLs))
		return Result{Outcome: OutcomeComplete, Report: payload.FinalReport}

	default:
		r.logger.Debug("ignoring frame of unknown type", "type", f.Type)
		return Result{Outcome: OutcomeContinue}
	}
}

// setLive rewrites the open live slot, opening one if needed.
func (r *Router) setLive(text string) {
	if live := r.transcript.Live(); live != nil && live.Update(text) {
		return
	}
	r.transcript.OpenLive(text)
}
