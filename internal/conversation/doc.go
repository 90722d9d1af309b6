// Package conversation drives a research conversation from the first prompt
// to the final report.
//
// # Overview
//
// A Session sits between the presentation layer and the research backend.
// It owns the transcript, asks the clarifying questions, builds the research
// query, and consumes the research event stream:
//
//	sess, err := conversation.New(conversation.Options{
//		Prompt:  "history of tea",
//		Effort:  conversation.LevelMedium,
//		Backend: backend.New(baseURL),
//	})
//	sess.Start(ctx)
//	sess.Answer(ctx, "focus on China")
//	sess.Wait(ctx)
//
// # Phases
//
// A session moves through these phases, never backwards:
//
//  1. Idle: created, clarification not yet known
//  2. CollectingAnswers: questions are asked one at a time
//  3. Researching: the research stream is being consumed
//  4. Complete or Failed: terminal, answers are rejected
//
// Failed is reachable from any active phase.
//
// # One-shot gates
//
// Three atomic flags are each flipped exactly once with CompareAndSwap:
//
//   - initialized: Start issues the clarification request once
//   - researchStarted: research begins once even under racing answers
//   - terminated: only the first final frame or failure is honored
//
// # Question Sequencer
//
// The Sequencer pairs questions with answers by index. An empty question
// list starts research as soon as it is known. When clarification fails
// the queue is empty but research waits for the user's next message.
//
// # Research Stream
//
// Frames are decoded lazily from the response body and routed one at a
// time under the session lock:
//
//   - progress: rewrites the single open live entry
//   - error: rewrites the live entry with "Error: ..." and continues
//   - final: closes the live entry, appends the report and "Done"
//
// A request error, non-2xx status, read error, or a stream that ends
// without a final frame fails the session with a fixed report entry.
//
// # Effort
//
// Effort levels map to research breadth and depth:
//
//	low     breadth 2,  depth 1
//	medium  breadth 5,  depth 3
//	high    breadth 10, depth 5
package conversation
