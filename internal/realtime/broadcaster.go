package realtime

import (
	"context"
	"sync"
	"time"
)

// Event type names, matching what connected clients listen for.
const (
	EventQuestionUpdate     = "questionUpdate"
	EventAnswerUpdate       = "answerUpdate"
	EventViewsUpdate        = "viewsUpdate"
	EventVoteUpdate         = "voteUpdate"
	EventAnswerVoteUpdate   = "answerVoteUpdate"
	EventCommentUpdate      = "commentUpdate"
	EventNotificationUpdate = "notificationUpdate"
	EventProfileUpdate      = "profileUpdate"
)

// Event is one committed state change fanned out to every connected client.
// Payload is the transport-agnostic body serialized by whichever transport
// carries the event.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Broadcaster is the process-wide publish channel shared by all clients.
// There is no per-room partitioning: every subscriber receives every event
// and filters client-side. Delivery is best effort, at most once; a slow
// subscriber's events are dropped rather than blocking the publisher.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Event
}

// NewBroadcaster constructs a Broadcaster with a per-subscriber buffer.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[int64]*subscriber),
		bufferSize:  32,
	}
}

// Subscribe registers a new stream. The returned cleanup is idempotent and
// also runs when the context is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Event, func()) {
	sub := &subscriber{
		id:     b.nextSequence(),
		stream: make(chan Event, b.bufferSize),
	}
	b.register(sub)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.unregister(sub.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish fans the event out to every current subscriber without blocking.
func (b *Broadcaster) Publish(event Event) {
	if event.Type == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	copies := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		copies = append(copies, sub)
	}
	b.mu.RUnlock()

	for _, sub := range copies {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

// SubscriberCount reports how many streams are currently registered.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broadcaster) nextSequence() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return b.nextID
}

func (b *Broadcaster) register(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sub.id] = sub
}

func (b *Broadcaster) unregister(subscriberID int64) {
	b.mu.Lock()
	delete(b.subscribers, subscriberID)
	b.mu.Unlock()
}
