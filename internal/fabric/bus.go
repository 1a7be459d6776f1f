package fabric

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aegisflux/obsfabric/internal/metrics"
)

// DefaultBufferSize is the per-subscriber queue capacity used when a caller
// does not configure bus.buffer_size explicitly.
const DefaultBufferSize = 10000

// Metrics is the snapshot returned by Bus.Metrics().
type Metrics struct {
	TotalPublished        uint64
	TotalDropped          uint64
	SubscriberCount       int
	PerSubscriberQueue    map[string]int
	PerSubscriberDropped  map[string]uint64
}

// subscriberEntry owns one subscriber's bounded FIFO queue. It is the only
// place mutable state for that subscriber lives; the Bus's subscriber table
// is single-writer (Subscribe/Unsubscribe), but each entry's queue is
// accessed concurrently by the publisher (enqueue) and the subscriber's own
// goroutine (Receive), so it carries its own mutex.
type subscriberEntry struct {
	id       string
	filter   map[EventType]struct{}
	capacity int

	mu      sync.Mutex
	queue   []Record
	dropped uint64

	signal  chan struct{} // capacity 1, non-blocking wakeup for Receive
	closeCh chan struct{}
	closed  bool
}

func newSubscriberEntry(id string, filter []EventType, capacity int) *subscriberEntry {
	set := make(map[EventType]struct{}, len(filter))
	for _, t := range filter {
		set[t] = struct{}{}
	}
	return &subscriberEntry{
		id:       id,
		filter:   set,
		capacity: capacity,
		signal:   make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
}

func (e *subscriberEntry) accepts(t EventType) bool {
	if len(e.filter) == 0 {
		return true
	}
	_, ok := e.filter[t]
	return ok
}

// enqueue appends a record, evicting the oldest on overflow. It never
// blocks on the consumer: it takes only this entry's own mutex, for O(1)
// work (Publish holds the table's read lock around the call).
func (e *subscriberEntry) enqueue(r Record) (dropped bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	if len(e.queue) >= e.capacity {
		e.queue = e.queue[1:]
		e.dropped++
		dropped = true
	}
	e.queue = append(e.queue, r)
	e.mu.Unlock()

	select {
	case e.signal <- struct{}{}:
	default:
	}
	return dropped
}

func (e *subscriberEntry) dequeue() (Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return Record{}, false
	}
	r := e.queue[0]
	e.queue = e.queue[1:]
	return r, true
}

func (e *subscriberEntry) depth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *subscriberEntry) droppedCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

func (e *subscriberEntry) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.queue = nil
	e.mu.Unlock()
	close(e.closeCh)
}

// Handle is the opaque receive-side reference returned by Subscribe.
type Handle struct {
	entry *subscriberEntry
}

func (h *Handle) ID() string { return h.entry.id }

// Receive blocks until a record survives eviction and is delivered, the
// subscriber is unsubscribed, the bus shuts down, or ctx is cancelled.
func (h *Handle) Receive(ctx context.Context) (Record, error) {
	for {
		if r, ok := h.entry.dequeue(); ok {
			return r, nil
		}
		select {
		case <-h.entry.signal:
			continue
		case <-h.entry.closeCh:
			return Record{}, ErrBusClosed
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
}

// Bus is the in-process pub/sub broker described in §4.1: it routes
// published records to subscribers whose filter matches, never blocks a
// publisher on a slow subscriber, and evicts oldest-first on overflow.
type Bus struct {
	defaultBufferSize int
	metrics           *metrics.Metrics

	mu          sync.RWMutex // single-writer discipline: only Subscribe/Unsubscribe mutate
	subscribers map[string]*subscriberEntry

	totalPublished atomic.Uint64
	totalDropped   atomic.Uint64

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewBus constructs an Event Bus. defaultBufferSize is used by Subscribe
// when a caller does not specify a per-subscriber capacity (see
// SubscribeWithCapacity).
func NewBus(defaultBufferSize int) *Bus {
	return NewBusWithMetrics(defaultBufferSize, nil)
}

// NewBusWithMetrics constructs an Event Bus that reports publish/drop
// counts on m, grounded on the correlator's NewOverrideManagerWithMetrics
// constructor-injection style. m may be nil, in which case metrics
// reporting is a no-op.
func NewBusWithMetrics(defaultBufferSize int, m *metrics.Metrics) *Bus {
	if defaultBufferSize <= 0 {
		defaultBufferSize = DefaultBufferSize
	}
	return &Bus{
		defaultBufferSize: defaultBufferSize,
		metrics:           m,
		subscribers:       make(map[string]*subscriberEntry),
		closeCh:           make(chan struct{}),
	}
}

// Subscribe registers a new subscriber with the bus's default buffer size.
func (b *Bus) Subscribe(id string, filter []EventType) (*Handle, error) {
	return b.SubscribeWithCapacity(id, filter, b.defaultBufferSize)
}

// SubscribeWithCapacity registers a subscriber with an explicit queue
// capacity. Capacity 0 is rejected: a zero-length queue can never hold a
// delivered record.
func (b *Bus) SubscribeWithCapacity(id string, filter []EventType, capacity int) (*Handle, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("fabric: subscriber %q: capacity must be positive", id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.subscribers[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSubscriberConflict, id)
	}
	entry := newSubscriberEntry(id, filter, capacity)
	b.subscribers[id] = entry
	return &Handle{entry: entry}, nil
}

// Unsubscribe removes a subscriber and drops its queue. Safe to call
// concurrently with Publish: in-flight records for that subscriber are
// simply discarded once the entry is removed from the table.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	entry, exists := b.subscribers[id]
	if !exists {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSubscriberUnknown, id)
	}
	delete(b.subscribers, id)
	b.mu.Unlock()

	entry.close()
	return nil
}

// Publish routes a record to every subscriber whose filter accepts its
// event type. It never blocks: enqueue is O(1) and eviction is synchronous.
// Publish to a bus with no matching subscribers, or after Unsubscribe has
// raced ahead of this call, is a silent no-op for that subscriber.
func (b *Bus) Publish(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	b.totalPublished.Add(1)
	b.metrics.IncBusPublished()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, entry := range b.subscribers {
		if !entry.accepts(r.EventType) {
			continue
		}
		if entry.enqueue(r) {
			b.totalDropped.Add(1)
			b.metrics.IncBusDropped()
		}
	}
	return nil
}

// Metrics returns the point-in-time snapshot described in §4.1.
func (b *Bus) Metrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m := Metrics{
		TotalPublished:       b.totalPublished.Load(),
		TotalDropped:         b.totalDropped.Load(),
		SubscriberCount:      len(b.subscribers),
		PerSubscriberQueue:   make(map[string]int, len(b.subscribers)),
		PerSubscriberDropped: make(map[string]uint64, len(b.subscribers)),
	}
	for id, entry := range b.subscribers {
		m.PerSubscriberQueue[id] = entry.depth()
		m.PerSubscriberDropped[id] = entry.droppedCount()
	}
	return m
}

// Drain waits for every subscriber queue to empty, polling at a short
// interval, up to grace before giving up and closing anyway. It mirrors
// the correlator's subscription Drain() step taken before a hard
// unsubscribe on shutdown.
func (b *Bus) Drain(grace time.Duration) {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if b.queuesEmpty() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	b.Shutdown()
}

func (b *Bus) queuesEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, entry := range b.subscribers {
		if entry.depth() > 0 {
			return false
		}
	}
	return true
}

// Shutdown signals every current and future Receive call to return
// ErrBusClosed and closes all subscriber queues. It does not remove
// subscribers from the table; Unsubscribe remains valid afterward for
// cleanup bookkeeping.
func (b *Bus) Shutdown() {
	b.closeOnce.Do(func() { close(b.closeCh) })

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, entry := range b.subscribers {
		entry.close()
	}
}
