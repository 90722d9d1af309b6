// ABOUTME: Renders transcript changes to the terminal as the conversation unfolds
// ABOUTME: On a TTY the live status line is rewritten in place; elsewhere each update gets its own line

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/coven-research/internal/store"
	"github.com/2389/coven-research/internal/transcript"
)

var (
	userColor     = color.New(color.FgGreen)
	questionColor = color.New(color.FgCyan, color.Bold)
	systemColor   = color.New(color.FgHiBlack)
	liveColor     = color.New(color.FgYellow)
	reportColor   = color.New(color.FgWhite)
)

// printer writes transcript changes to w. It is not safe for concurrent use.
type printer struct {
	w         io.Writer
	tty       bool
	echoUser  bool // typed input is already on screen when reading from a TTY
	inLive    bool
	sawReport bool
}

func newPrinter(w io.Writer) *printer {
	tty := isTerminal(w)
	return &printer{
		w:        w,
		tty:      tty,
		echoUser: !tty,
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) print(change transcript.Change) {
	switch change.Op {
	case transcript.OpAppended:
		p.entry(change.Entry)
	case transcript.OpUpdated:
		p.live(change.Entry.Text)
	case transcript.OpClosed:
		p.endLive()
	}
}

func (p *printer) entry(e transcript.Entry) {
	if e.Kind == transcript.KindLiveUpdate {
		p.live(e.Text)
		return
	}
	p.endLive()

	switch {
	case e.Kind == transcript.KindQuestion:
		questionColor.Fprintf(p.w, "? %s\n", e.Text)
	case e.Kind == transcript.KindFinalReport:
		p.sawReport = true
		fmt.Fprintln(p.w)
		reportColor.Fprintln(p.w, e.Text)
		fmt.Fprintln(p.w)
	case e.Speaker == transcript.SpeakerUser:
		if p.echoUser {
			userColor.Fprintf(p.w, "> %s\n", e.Text)
		}
	default:
		systemColor.Fprintln(p.w, e.Text)
	}
}

func (p *printer) live(text string) {
	if !p.tty {
		liveColor.Fprintf(p.w, "... %s\n", text)
		return
	}
	fmt.Fprint(p.w, "\r\033[K")
	liveColor.Fprintf(p.w, "... %s", text)
	p.inLive = true
}

func (p *printer) endLive() {
	if p.inLive {
		fmt.Fprintln(p.w)
		p.inLive = false
	}
}

// ensureReport prints report unless a final report entry was already
// printed. The live feed drops changes for a slow reader.
func (p *printer) ensureReport(report string) {
	if p.sawReport || report == "" {
		return
	}
	p.entry(transcript.Entry{
		Speaker: transcript.SpeakerSystem,
		Kind:    transcript.KindFinalReport,
		Text:    report,
	})
}

// archived renders a stored session's entries as closed transcript lines.
func (p *printer) archived(entries []store.Entry) {
	for _, e := range entries {
		p.entry(transcript.Entry{
			Index:     e.Position,
			Speaker:   transcript.Speaker(e.Speaker),
			Kind:      transcript.Kind(e.Kind),
			Text:      e.Text,
			CreatedAt: e.CreatedAt,
		})
		p.endLive()
	}
}
