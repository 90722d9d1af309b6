// ABOUTME: Tests for transcript rendering in both line and in-place modes
// ABOUTME: Feeds synthetic changes and checks the exact bytes written

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/coven-research/internal/transcript"
)

func appended(speaker transcript.Speaker, kind transcript.Kind, text string) transcript.Change {
	return transcript.Change{
		Op:    transcript.OpAppended,
		Entry: transcript.Entry{Speaker: speaker, Kind: kind, Text: text},
	}
}

func updated(text string) transcript.Change {
	return transcript.Change{
		Op:    transcript.OpUpdated,
		Entry: transcript.Entry{Speaker: transcript.SpeakerSystem, Kind: transcript.KindLiveUpdate, Text: text},
	}
}

func closed() transcript.Change {
	return transcript.Change{
		Op:    transcript.OpClosed,
		Entry: transcript.Entry{Speaker: transcript.SpeakerSystem, Kind: transcript.KindLiveUpdate},
	}
}

var conversationChanges = []transcript.Change{
	appended(transcript.SpeakerUser, transcript.KindPlainText, "P"),
	appended(transcript.SpeakerSystem, transcript.KindQuestion, "Q1"),
	appended(transcript.SpeakerUser, transcript.KindPlainText, "A1"),
	appended(transcript.SpeakerSystem, transcript.KindLiveUpdate, "Doing research..."),
	updated("Researching... 50.0%"),
	closed(),
	appended(transcript.SpeakerSystem, transcript.KindFinalReport, "# R"),
	appended(transcript.SpeakerSystem, transcript.KindPlainText, "Done"),
}

func TestPrinter_LineMode(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	assert.False(t, p.tty)

	for _, c := range conversationChanges {
		p.print(c)
	}

	want := "> P\n" +
		"? Q1\n" +
		"> A1\n" +
		"... Doing research...\n" +
		"... Researching... 50.0%\n" +
		"\n# R\n\n" +
		"Done\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_InPlaceMode(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, tty: true}

	for _, c := range conversationChanges {
		p.print(c)
	}

	want := "? Q1\n" +
		"\r\033[K... Doing research..." +
		"\r\033[K... Researching... 50.0%" +
		"\n" +
		"\n# R\n\n" +
		"Done\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_EntryEndsOpenLiveLine(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, tty: true}

	p.print(appended(transcript.SpeakerSystem, transcript.KindLiveUpdate, "working"))
	p.print(appended(transcript.SpeakerSystem, transcript.KindFinalReport, "Error fetching research results."))

	assert.Equal(t, "\r\033[K... working\n\nError fetching research results.\n\n", buf.String())
}

func TestPrinter_EnsureReport(t *testing.T) {
	t.Run("prints a report the feed dropped", func(t *testing.T) {
		var buf bytes.Buffer
		p := newPrinter(&buf)

		p.print(appended(transcript.SpeakerSystem, transcript.KindLiveUpdate, "Doing research..."))
		p.ensureReport("# R")

		assert.Equal(t, "... Doing research...\n\n# R\n\n", buf.String())
	})

	t.Run("ends an open live line first", func(t *testing.T) {
		var buf bytes.Buffer
		p := &printer{w: &buf, tty: true}

		p.print(appended(transcript.SpeakerSystem, transcript.KindLiveUpdate, "working"))
		p.ensureReport("# R")

		assert.Equal(t, "\r\033[K... working\n\n# R\n\n", buf.String())
	})

	t.Run("skips a report already printed", func(t *testing.T) {
		var buf bytes.Buffer
		p := newPrinter(&buf)

		for _, c := range conversationChanges {
			p.print(c)
		}
		before := buf.String()
		p.ensureReport("# R")

		assert.Equal(t, before, buf.String())
	})

	t.Run("skips an empty report", func(t *testing.T) {
		var buf bytes.Buffer
		p := newPrinter(&buf)

		p.ensureReport("")
		assert.Empty(t, buf.String())
	})
}
