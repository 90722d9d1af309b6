// ABOUTME: Tests for the research backend HTTP client
// ABOUTME: Covers JSON and streamed clarification, research stream handoff, and status errors

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-research/internal/frame"
)

func TestClarify_JSON(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, feedbackPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ClarifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotQuery = req.Query

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ClarifyResponse{Questions: []string{"Which era?", "How deep?"}})
	}))
	defer srv.Close()

	questions, err := New(srv.URL + "/").Clarify(context.Background(), "history of tea")
	require.NoError(t, err)
	assert.Equal(t, []string{"Which era?", "How deep?"}, questions)
	assert.Equal(t, "history of tea", gotQuery)
}

func TestClarify_EventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		frame.Write(w, frame.TypeProgress, "thinking")
		io.WriteString(w, "data: garbage\n\n")
		frame.Write(w, frame.TypeFinal, ClarifyResponse{Questions: []string{"Scope?"}})
	}))
	defer srv.Close()

	questions, err := New(srv.URL).Clarify(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"Scope?"}, questions)
}

func TestClarify_EventStreamErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frame.Write(w, frame.TypeError, "model unavailable")
	}))
	defer srv.Close()

	_, err := New(srv.URL).Clarify(context.Background(), "q")
	require.ErrorIs(t, err, ErrClarification)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestClarify_EventStreamWithoutFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frame.Write(w, frame.TypeProgress, "thinking")
	}))
	defer srv.Close()

	_, err := New(srv.URL).Clarify(context.Background(), "q")
	assert.ErrorIs(t, err, ErrStreamEnded)
}

func TestClarify_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"detail": "llm exploded"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Clarify(context.Background(), "q")
	require.ErrorIs(t, err, ErrUnexpectedStatus)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "llm exploded", se.Message)
}

func TestClarify_PlainTextStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Clarify(context.Background(), "q")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "bad gateway", se.Message)
}

func TestClarify_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, WithClarifyTimeout(20*time.Millisecond)).Clarify(context.Background(), "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClarify_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Clarify(context.Background(), "q")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedStatus)
}

func TestResearch_ReturnsUnreadStream(t *testing.T) {
	var got ResearchRequest
	var key, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, researchPath, r.URL.Path)
		key = r.Header.Get(IdempotencyHeader)
		accept = r.Header.Get("Accept")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		frame.Write(w, frame.TypeFinal, map[string]string{"final_report": "done"})
	}))
	defer srv.Close()

	body, err := New(srv.URL).Research(context.Background(), ResearchRequest{
		Query:       "Initial Query: P",
		Breadth:     5,
		Depth:       3,
		Concurrency: 2,
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"final\",\"data\":{\"final_report\":\"done\"}}\n\n", string(raw))

	assert.Equal(t, ResearchRequest{Query: "Initial Query: P", Breadth: 5, Depth: 3, Concurrency: 2}, got)
	assert.NotEmpty(t, key)
	assert.Equal(t, "text/event-stream", accept)
}

func TestResearch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "busy"})
	}))
	defer srv.Close()

	body, err := New(srv.URL).Research(context.Background(), ResearchRequest{Query: "q"})
	assert.Nil(t, body)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "busy")
}

func TestIsEventStream(t *testing.T) {
	assert.True(t, isEventStream("text/event-stream"))
	assert.True(t, isEventStream("text/event-stream; charset=utf-8"))
	assert.False(t, isEventStream("application/json"))
	assert.False(t, isEventStream(""))
}
