// ABOUTME: Tests for routing research frames into the transcript
// ABOUTME: Live slot replacement, error frames, final report, malformed final

package conversation

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-research/internal/frame"
	"github.com/2389/coven-research/internal/transcript"
)

func rawFrame(t *testing.T, typ frame.Type, data any) frame.Frame {
	t.Helper()
	b, err := json.Marshal(data)
	require.NoError(t, err)
	return frame.Frame{Type: typ, Data: b}
}

func TestRouter_ProgressReplacesSingleLiveEntry(t *testing.T) {
	tr := transcript.New(nil)
	defer tr.Close()
	r := NewRouter(tr, nil)

	tr.OpenLive(TextResearching)
	for i := 0; i < 25; i++ {
		res := r.Route(rawFrame(t, frame.TypeProgress, fmt.Sprintf("step %d", i)))
		assert.Equal(t, OutcomeContinue, res.Outcome)
		assert.Equal(t, 1, tr.Count(transcript.KindLiveUpdate))
	}

	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "step 24", entries[0].Text)
	assert.True(t, entries[0].Open)
}

func TestRouter_ProgressOpensSlotWhenNoneOpen(t *testing.T) {
	tr := transcript.New(nil)
	defer tr.Close()
	r := NewRouter(tr, nil)

	r.Route(rawFrame(t, frame.TypeProgress, map[string]string{"stage": "serp", "message": "querying"}))

	require.NotNil(t, tr.Live())
	assert.Equal(t, "[serp] querying", tr.Entries()[0].Text)
}

func TestRouter_ErrorFrameUpdatesLiveSlot(t *testing.T) {
	tr := transcript.New(nil)
	defer tr.Close()
	r := NewRouter(tr, nil)

	tr.OpenLive(TextResearching)
	res := r.Route(rawFrame(t, frame.TypeError, "rate limited"))

	assert.Equal(t, OutcomeContinue, res.Outcome)
	assert.NoError(t, res.Err)
	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Error: rate limited", entries[0].Text)
	assert.True(t, entries[0].Open)
}

func TestRouter_FinalClosesSlotAndAppendsReport(t *testing.T) {
	tr := transcript.New(nil)
	defer tr.Close()
	r := NewRouter(tr, nil)

	tr.OpenLive(TextResearching)
	res := r.Route(rawFrame(t, frame.TypeFinal, map[string]any{
		"final_report": "# Report",
		"learnings":    []string{"one"},
	}))

	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, "# Report", res.Report)
	assert.Nil(t, tr.Live())

	entries := tr.Entries()
	require.Len(t, entries, 3)
	assert.False(t, entries[0].Open)
	assert.Equal(t, transcript.KindFinalReport, entries[1].Kind)
	assert.Equal(t, "# Report", entries[1].Text)
	assert.Equal(t, transcript.KindPlainText, entries[2].Kind)
	assert.Equal(t, TextDone, entries[2].Text)
}

func TestRouter_MalformedFinalLeavesTranscriptAlone(t *testing.T) {
	tests := []struct {
		name string
		data any
	}{
		{"missing field", map[string]string{"summary": "x"}},
		{"empty report", map[string]string{"final_report": ""}},
		{"wrong shape", "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := transcript.New(nil)
			defer tr.Close()
			r := NewRouter(tr, nil)
			tr.OpenLive(TextResearching)

			res := r.Route(rawFrame(t, frame.TypeFinal, tt.data))

			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.ErrorIs(t, res.Err, ErrMalformedFinal)
			assert.Equal(t, 1, tr.Len())
			assert.NotNil(t, tr.Live())
		})
	}
}

func TestRouter_UnknownTypeIgnored(t *testing.T) {
	tr := transcript.New(nil)
	defer tr.Close()
	r := NewRouter(tr, nil)

	res := r.Route(frame.Frame{Type: "heartbeat", Data: json.RawMessage(`{}`)})
	assert.Equal(t, OutcomeContinue, res.Outcome)
	assert.Equal(t, 0, tr.Len())
}
