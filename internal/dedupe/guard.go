// ABOUTME: Thread-safe TTL set of idempotency keys with oldest-first eviction
// ABOUTME: The fake research backend uses it to reject replayed research requests

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often expired keys are swept.
const DefaultCleanupInterval = time.Minute

// claim stores when a key was claimed and its position in the eviction list.
type claim struct {
	at      time.Time
	element *list.Element
}

// Guard remembers claimed keys for ttl, holding at most maxSize of them.
// A linked list keeps claim order so eviction is O(1).
type Guard struct {
	mu      sync.Mutex
	claims  map[string]*claim
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	interval time.Duration
	done     chan struct{}
	closed   bool
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithCleanupInterval sets how often expired keys are swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.interval = d
		}
	}
}

// New creates a guard and starts its background sweeper. Call Close to stop it.
func New(ttl time.Duration, maxSize int, opts ...Option) *Guard {
	g := &Guard{
		claims:   make(map[string]*claim),
		order:    list.New(),
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
		interval: DefaultCleanupInterval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	go g.sweep()
	return g
}

// Seen reports whether key is currently claimed.
func (g *Guard) Seen(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.claims[key]
	return ok && g.live(c)
}

// Claim atomically claims key. It returns true if the caller is the first
// to present it within the TTL, false for a duplicate.
func (g *Guard) Claim(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.claims[key]; ok {
		if g.live(c) {
			return false
		}
		g.removeLocked(key, c)
	}

	if g.maxSize > 0 && len(g.claims) >= g.maxSize {
		g.evictOldestLocked()
	}

	g.claims[key] = &claim{
		at:      g.now(),
		element: g.order.PushBack(key),
	}
	return true
}

// Release forgets key so it can be claimed again.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.claims[key]; ok {
		g.removeLocked(key, c)
	}
}

// Len returns the number of keys held, including expired ones not yet swept.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}

func (g *Guard) live(c *claim) bool {
	return g.now().Sub(c.at) < g.ttl
}

func (g *Guard) removeLocked(key string, c *claim) {
	g.order.Remove(c.element)
	delete(g.claims, key)
}

func (g *Guard) evictOldestLocked() {
	front := g.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	g.order.Remove(front)
	delete(g.claims, key)
}

func (g *Guard) sweep() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Sweep()
		case <-g.done:
			return
		}
	}
}

// Sweep drops expired keys. Claims are time-ordered, so it stops at the
// first live one.
func (g *Guard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for e := g.order.Front(); e != nil; {
		key, _ := e.Value.(string)
		c := g.claims[key]
		if g.live(c) {
			return
		}
		next := e.Next()
		g.removeLocked(key, c)
		e = next
	}
}

// Close stops the background sweeper. It is safe to call multiple times.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
