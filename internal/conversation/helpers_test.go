// ABOUTME: Shared fakes for conversation tests: scripted backend, recording archiver
// ABOUTME: Also hosts TestMain so every test proves its stream goroutines exit

package conversation

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/coven-research/internal/backend"
	"github.com/2389/coven-research/internal/frame"
	"github.com/2389/coven-research/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend implements Backend from canned responses.
type fakeBackend struct {
	questions  []string
	clarifyErr error

	stream      string
	body        func(ctx context.Context) io.ReadCloser
	researchErr error
	onResearch  func()

	clarifyCalls  atomic.Int32
	researchCalls atomic.Int32

	mu       sync.Mutex
	requests []backend.ResearchRequest
}

func (f *fakeBackend) Clarify(ctx context.Context, query string) ([]string, error) {
	f.clarifyCalls.Add(1)
	if f.clarifyErr != nil {
		return nil, f.clarifyErr
	}
	return f.questions, nil
}

func (f *fakeBackend) Research(ctx context.Context, req backend.ResearchRequest) (io.ReadCloser, error) {
	f.researchCalls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.onResearch != nil {
		f.onResearch()
	}
	if f.researchErr != nil {
		return nil, f.researchErr
	}
	if f.body != nil {
		return f.body(ctx), nil
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

func (f *fakeBackend) lastRequest(t *testing.T) backend.ResearchRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no research request was sent")
	return f.requests[len(f.requests)-1]
}

// recordingArchiver captures archived sessions.
type recordingArchiver struct {
	mu       sync.Mutex
	sessions []*store.Session
	err      error
}

func (a *recordingArchiver) SaveSession(ctx context.Context, sess *store.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, sess)
	return a.err
}

// blockingBody blocks reads until ctx ends, after an optional prefix.
type blockingBody struct {
	ctx    context.Context
	prefix *strings.Reader
}

func (b *blockingBody) Read(p []byte) (int, error) {
	if b.prefix != nil && b.prefix.Len() > 0 {
		return b.prefix.Read(p)
	}
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func (b *blockingBody) Close() error { return nil }

// scriptedReader returns each chunk on its own Read, then err, then rest.
// It models a transport that keeps producing bytes after a failure.
type scriptedReader struct {
	chunks []string
	err    error
	rest   string
	failed bool
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.chunks) > 0 {
		n := copy(p, r.chunks[0])
		r.chunks[0] = r.chunks[0][n:]
		if r.chunks[0] == "" {
			r.chunks = r.chunks[1:]
		}
		return n, nil
	}
	if !r.failed {
		r.failed = true
		return 0, r.err
	}
	if r.rest != "" {
		n := copy(p, r.rest)
		r.rest = r.rest[n:]
		return n, nil
	}
	return 0, io.EOF
}

func (r *scriptedReader) Close() error { return nil }

func encode(t *testing.T, typ frame.Type, data any) string {
	t.Helper()
	b, err := frame.Encode(typ, data)
	require.NoError(t, err)
	return string(b)
}

func finalFrame(t *testing.T, report string) string {
	return encode(t, frame.TypeFinal, map[string]any{"final_report": report})
}

func newTestSession(t *testing.T, fb *fakeBackend, opts Options) *Session {
	t.Helper()
	opts.Backend = fb
	if opts.Prompt == "" {
		opts.Prompt = "P"
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx), "session did not finish")
}
