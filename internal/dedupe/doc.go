// Package dedupe tracks idempotency keys so a retried request is recognized
// within a configurable window.
//
// A Guard is a TTL- and size-bounded set. Claim reports whether the caller
// is the first to present a key; Release gives a key back when the work it
// guarded never started, so the client may retry with the same key.
package dedupe
