package progress

import (
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/mediafetch/mediafetch/server/internal"
)

// Topic on which every reporter publishes (id, event) pairs.
const Topic = "acquisition:progress"

// Sink receives coarse progress updates. It is always invoked from the
// reporter's single consumer goroutine, never from the worker producing the
// raw byte counts, so implementations need no synchronization of their own.
type Sink func(internal.ProgressEvent)

// Reporter bridges low-level byte-count callbacks coming from a worker
// thread to a caller-supplied sink. Updates are throttled: at most one event
// per interval, except the terminal one which is always delivered.
// Intermediate events inside the window are dropped, not queued.
type Reporter struct {
	id       string
	interval time.Duration
	sink     Sink
	bus      EventBus.Bus

	events chan internal.ProgressEvent

	mu   sync.Mutex
	last time.Time
	now  func() time.Time

	closeOnce sync.Once
	drained   chan struct{}
}

func NewReporter(id string, bus EventBus.Bus, sink Sink, interval time.Duration) *Reporter {
	r := &Reporter{
		id:       id,
		interval: interval,
		sink:     sink,
		bus:      bus,
		events:   make(chan internal.ProgressEvent, 16),
		now:      time.Now,
		drained:  make(chan struct{}),
	}

	go r.consume()
	return r
}

// Report is safe to call from any goroutine. Returns true when the event
// passed the throttle window and was handed to the consumer.
func (r *Reporter) Report(ev internal.ProgressEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	terminal := ev.Phase == internal.PhaseFinished ||
		(ev.TotalBytes > 0 && ev.DownloadedBytes == ev.TotalBytes)

	if !terminal && r.now().Sub(r.last) < r.interval {
		return false
	}

	select {
	case r.events <- ev:
		// the window is only consumed by a delivered event; a drop must
		// not silence the next update for a whole interval
		r.last = r.now()
		return true
	default:
		// consumer is behind, coalesce by dropping
		return false
	}
}

// Close stops the consumer once every accepted event has been delivered.
func (r *Reporter) Close() {
	r.closeOnce.Do(func() {
		close(r.events)
		<-r.drained
	})
}

func (r *Reporter) consume() {
	defer close(r.drained)

	for ev := range r.events {
		if r.sink != nil {
			r.sink(ev)
		}
		if r.bus != nil {
			r.bus.Publish(Topic, r.id, ev)
		}
	}
}
