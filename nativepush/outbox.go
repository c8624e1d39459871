package nativepush

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Change is the kind of interest mutation queued in the Outbox.
type Change int

const (
	Subscribe Change = iota
	Unsubscribe
)

// DefaultMaxFailures is the fixed retry ceiling from spec §6: once this many
// consecutive failures have occurred the outbox pauses until Resume is called.
const DefaultMaxFailures = 6

type item struct {
	id       uuid.UUID
	interest string
	change   Change
}

// Outbox is the ordered queue of (interest, subscribe|unsubscribe) requests
// described in spec §9. It queues items until the device id is known, sends
// them to the gateway strictly in order, and on failure reinserts the
// failed item at the head rather than the tail. There is deliberately no
// deduplication: a rapid subscribe/unsubscribe pair sends both requests,
// matching the documented (if surprising) source behavior.
type Outbox struct {
	mu sync.Mutex

	client      *Client
	deviceID    string
	maxFailures int

	queue    []item
	failures int
	paused   bool

	onFailure func(interest string, change Change, err error)
}

// NewOutbox builds an Outbox bound to client, pausing after maxFailures
// consecutive failures (DefaultMaxFailures if maxFailures <= 0).
func NewOutbox(client *Client, maxFailures int) *Outbox {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	return &Outbox{client: client, maxFailures: maxFailures}
}

// OnFailure registers a callback invoked each time a queued request fails.
func (o *Outbox) OnFailure(cb func(interest string, change Change, err error)) {
	o.mu.Lock()
	o.onFailure = cb
	o.mu.Unlock()
}

// Enqueue appends a new interest change to the tail of the queue.
func (o *Outbox) Enqueue(interest string, change Change) {
	o.mu.Lock()
	o.queue = append(o.queue, item{id: uuid.New(), interest: interest, change: change})
	o.mu.Unlock()
}

// SetDeviceID supplies the gateway-assigned device id once Register
// completes, unblocking delivery of anything queued before it was known.
func (o *Outbox) SetDeviceID(deviceID string) {
	o.mu.Lock()
	o.deviceID = deviceID
	o.mu.Unlock()
}

// Resume clears the paused flag and resets the failure counter, allowing
// Drain to make progress again after hitting the retry ceiling.
func (o *Outbox) Resume() {
	o.mu.Lock()
	o.paused = false
	o.failures = 0
	o.mu.Unlock()
}

// Paused reports whether the outbox has hit its failure ceiling.
func (o *Outbox) Paused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// Len reports the number of items still queued.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Drain processes queued items strictly in order until the queue empties,
// the device id is not yet known, or the outbox pauses on the failure
// ceiling. Call it again (e.g. on a timer, or after SetDeviceID/Resume) to
// continue making progress; it is not a background loop itself, matching
// the single-executor concurrency model the rest of this module follows.
func (o *Outbox) Drain(ctx context.Context) {
	for {
		o.mu.Lock()
		if o.paused || len(o.queue) == 0 || o.deviceID == "" {
			o.mu.Unlock()
			return
		}
		next := o.queue[0]
		o.queue = o.queue[1:]
		deviceID := o.deviceID
		o.mu.Unlock()

		err := o.send(ctx, deviceID, next)
		if err == nil {
			o.mu.Lock()
			o.failures = 0
			o.mu.Unlock()
			continue
		}

		o.mu.Lock()
		// Reinsert at the head: the failed request is retried before any
		// later-queued request is attempted, per spec §9.
		o.queue = append([]item{next}, o.queue...)
		o.failures++
		paused := o.failures >= o.maxFailures
		o.paused = paused
		cb := o.onFailure
		o.mu.Unlock()

		if cb != nil {
			cb(next.interest, next.change, err)
		}
		if paused {
			return
		}
	}
}

func (o *Outbox) send(ctx context.Context, deviceID string, it item) error {
	switch it.change {
	case Subscribe:
		return o.client.SubscribeInterest(ctx, deviceID, it.interest)
	default:
		return o.client.UnsubscribeInterest(ctx, deviceID, it.interest)
	}
}
