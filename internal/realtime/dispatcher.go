package realtime

import (
	"context"
	"sync"
	"time"
)

// Table names carried on change-feed messages.
const (
	TableActivities = "team_activities"
	TableCheckIns   = "daily_check_ins"
)

// Message describes a single row insert observed on a conference-scoped table.
type Message struct {
	ConferenceID string
	Table        string
	RowID        string
	Seq          int64
	OccurredAt   time.Time
}

// Dispatcher fans out change-feed messages to per-conference subscribers.
// Delivery is best-effort: a subscriber whose buffer is full misses the
// message rather than blocking the publisher.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	nextSeq     int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Message
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener for the conference and returns its stream
// plus a cancel function. The stream is also released when ctx is done.
func (d *Dispatcher) Subscribe(ctx context.Context, conferenceID string) (<-chan Message, func()) {
	if conferenceID == "" {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSubscriberID(),
		stream: make(chan Message, d.bufferSize),
	}
	d.register(conferenceID, sub)
	cleanup := func() {
		d.unregister(conferenceID, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish stamps the message with a monotonic sequence and delivers it to
// every subscriber of the message's conference.
func (d *Dispatcher) Publish(message Message) {
	if message.ConferenceID == "" || message.Table == "" {
		return
	}
	message.Seq = d.nextSequence()

	d.mu.RLock()
	subscribers := d.subscribers[message.ConferenceID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()

	for _, sub := range copies {
		select {
		case sub.stream <- message:
		default:
		}
	}
}

func (d *Dispatcher) nextSubscriberID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSeq++
	return d.nextSeq
}

func (d *Dispatcher) register(conferenceID string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[conferenceID]; !ok {
		d.subscribers[conferenceID] = make(map[int64]*subscriber)
	}
	d.subscribers[conferenceID][sub.id] = sub
}

func (d *Dispatcher) unregister(conferenceID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[conferenceID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, conferenceID)
		}
	}
	d.mu.Unlock()
}
