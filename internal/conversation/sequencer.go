// ABOUTME: Ordered clarifying-question queue paired with the user's answers
// ABOUTME: Signals exhaustion exactly once through a dedicated one-shot flag

package conversation

import (
	"sync"
	"sync/atomic"
)

// Step is what the caller should do after an answer is recorded.
type Step int

const (
	// StepAsk means another question should be shown.
	StepAsk Step = iota
	// StepExhausted means every question is answered and research should start.
	// It is returned at most once per Sequencer.
	StepExhausted
	// StepIgnored means exhaustion was already signaled; the answer was dropped.
	StepIgnored
)

// Pair is one question with the answer given to it.
type Pair struct {
	Question string
	Answer   string
}

// Sequencer tracks clarifying questions and answers. It is safe for
// concurrent use; Advance never reports StepExhausted twice even under
// racing callers.
type Sequencer struct {
	mu        sync.Mutex
	questions []string
	answers   []string
	loaded    bool

	exhausted atomic.Bool
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Load sets the question queue. It returns the first question, or reports
// exhaustion immediately when there are none. Only the first Load counts.
func (s *Sequencer) Load(questions []string) (first string, exhausted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return "", false
	}
	s.loaded = true
	s.questions = append([]string(nil), questions...)

	if len(s.questions) == 0 {
		return "", s.exhausted.CompareAndSwap(false, true)
	}
	return s.questions[0], false
}

// LoadFailed marks the queue as known but empty without signaling
// exhaustion. The next Advance will report StepExhausted.
func (s *Sequencer) LoadFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
}

// Advance records answer against the next unanswered question.
func (s *Sequencer) Advance(answer string) (Step, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted.Load() {
		return StepIgnored, ""
	}

	if len(s.answers) < len(s.questions) {
		s.answers = append(s.answers, answer)
	}
	if len(s.answers) < len(s.questions) {
		return StepAsk, s.questions[len(s.answers)]
	}

	if !s.exhausted.CompareAndSwap(false, true) {
		return StepIgnored, ""
	}
	return StepExhausted, ""
}

// Exhausted reports whether exhaustion has been signaled.
func (s *Sequencer) Exhausted() bool {
	return s.exhausted.Load()
}

// Questions returns a copy of the loaded queue.
func (s *Sequencer) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}

// Pairs returns the answered questions in queue order.
func (s *Sequencer) Pairs() []Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pair, len(s.answers))
	for i, a := range s.answers {
		out[i] = Pair{Question: s.questions[i], Answer: a}
	}
	return out
}
