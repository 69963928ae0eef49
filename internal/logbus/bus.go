// Package logbus implements the process-wide, multi-producer,
// multi-consumer log broadcast described by the supervisor's log
// contract: publish is non-blocking and never fails, subscribers observe
// a strictly increasing id sequence, and a bounded per-service ring
// buffer backs history replay.
//
// The fan-out-with-drop-on-lag shape is the same one the teacher's
// websocket hub uses for live client broadcast: each subscriber gets its
// own bounded channel, and a full channel means that subscriber is
// dropped rather than the publisher being made to wait.
package logbus

import (
	"context"
	"sync"
	"time"

	"github.com/a3s-lab/dev/internal/logging"
)

// Entry is one immutable log record. IDs are assigned in strict
// publication order and are globally unique across every service.
type Entry struct {
	ID      uint64
	Service string
	Line    string
	Time    time.Time
}

// subscriberBacklog is the per-subscriber channel depth before a slow
// reader is dropped. Mirrors the teacher hub's 256-deep client send
// buffer.
const subscriberBacklog = 256

// DefaultRingSize is the number of entries retained per service when the
// caller does not specify one explicitly.
const DefaultRingSize = 500

type ring struct {
	entries []Entry
	size    int
}

func newRing(size int) *ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &ring{entries: make([]Entry, 0, size), size: size}
}

func (r *ring) push(e Entry) {
	r.entries = append(r.entries, e)
	if len(r.entries) > r.size {
		r.entries = r.entries[len(r.entries)-r.size:]
	}
}

func (r *ring) snapshot() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Subscription is a live tap into the bus, filtered to one service (or
// every service, when Service is empty).
type Subscription struct {
	Service string

	bus    *Bus
	ch     chan Entry
	lagged chan struct{}
	once   sync.Once
}

// C returns the channel entries are delivered on. It is closed when the
// subscription is dropped for falling behind, or when Close is called.
func (s *Subscription) C() <-chan Entry { return s.ch }

// Lagged reports (without blocking) whether this subscription has been
// dropped for falling behind a slow consumer's channel filling up. The
// caller should resynchronize via History.
func (s *Subscription) Lagged() bool {
	select {
	case <-s.lagged:
		return true
	default:
		return false
	}
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.once.Do(func() { close(s.ch) })
}

// Bus is the process-wide log broadcast. The zero value is not usable;
// construct with New.
type Bus struct {
	mu       sync.Mutex
	rings    map[string]*ring
	ringSize int
	nextID   uint64
	subs     map[*Subscription]struct{}
}

// New constructs a Bus whose per-service rings hold ringSize entries.
func New(ringSize int) *Bus {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	return &Bus{
		rings:    make(map[string]*ring),
		ringSize: ringSize,
		subs:     make(map[*Subscription]struct{}),
	}
}

// String satisfies suture.Service for use in the outer resilience tree.
func (b *Bus) String() string { return "logbus" }

// Serve blocks until ctx is done, then closes every live subscription.
// The bus has no long-running work of its own — Publish and Subscribe do
// their work synchronously under b.mu — so Serve exists only to give the
// bus a lifecycle the supervisor's suture tree can manage and to
// guarantee subscribers are released on shutdown.
func (b *Bus) Serve(ctx context.Context) error {
	<-ctx.Done()

	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for _, s := range subs {
		s.once.Do(func() { close(s.ch) })
	}
	return ctx.Err()
}

// Publish appends line to service's ring and fans it out to every live
// subscriber whose filter matches. It never blocks: a subscriber whose
// channel is full is dropped instead of slowing the publisher down.
func (b *Bus) Publish(service, line string) {
	b.mu.Lock()
	b.nextID++
	entry := Entry{ID: b.nextID, Service: service, Line: line, Time: time.Now()}

	r, ok := b.rings[service]
	if !ok {
		r = newRing(b.ringSize)
		b.rings[service] = r
	}
	r.push(entry)

	var dropped []*Subscription
	for s := range b.subs {
		if s.Service != "" && s.Service != service {
			continue
		}
		select {
		case s.ch <- entry:
		default:
			dropped = append(dropped, s)
		}
	}
	for _, s := range dropped {
		delete(b.subs, s)
	}
	b.mu.Unlock()

	for _, s := range dropped {
		select {
		case <-s.lagged:
		default:
			close(s.lagged)
		}
		s.once.Do(func() { close(s.ch) })
		logging.Warn().Str("service", service).Msg("logbus: subscriber fell behind, dropping")
	}
}

// Subscribe returns a live tap filtered to service ("" for every
// service). Callers should call History first if they need a
// gap-free view, since entries published between History and Subscribe
// are not replayed automatically.
func (b *Bus) Subscribe(service string) *Subscription {
	s := &Subscription{
		Service: service,
		bus:     b,
		ch:      make(chan Entry, subscriberBacklog),
		lagged:  make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// History returns the current contents of service's ring, oldest first.
// An empty service name is not a wildcard here — history is always
// per-service, matching the control API's `?service=` semantics.
func (b *Bus) History(service string) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rings[service]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Services returns the names of every service that has published at
// least one line, in no particular order.
func (b *Bus) Services() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.rings))
	for name := range b.rings {
		names = append(names, name)
	}
	return names
}
