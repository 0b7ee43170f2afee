// Package realtime fans recorded activity out to live subscribers.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/activity"
	"go.uber.org/zap"
)

const (
	EventActivity  = "activity"
	EventHeartbeat = "heartbeat"

	defaultBufferSize = 16
)

// Message is one event delivered to a subscriber.
type Message struct {
	EventType string          `json:"event_type"`
	Activity  *activity.Entry `json:"activity,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Dispatcher broadcasts messages to every subscriber. Delivery is
// non-blocking: a subscriber whose buffer is full misses the message.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber
	nextID      int64
	bufferSize  int
	logger      *zap.Logger
}

type subscriber struct {
	id     int64
	userID string
	stream chan Message
}

// NewDispatcher constructs a Dispatcher. bufferSize <= 0 uses the default.
func NewDispatcher(bufferSize int, logger *zap.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		subscribers: make(map[int64]*subscriber),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers a stream for userID until ctx is done or the returned
// cleanup runs. An empty userID yields a closed stream.
func (d *Dispatcher) Subscribe(ctx context.Context, userID string) (<-chan Message, func()) {
	if userID == "" {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}

	d.mu.Lock()
	d.nextID++
	sub := &subscriber{
		id:     d.nextID,
		userID: userID,
		stream: make(chan Message, d.bufferSize),
	}
	d.subscribers[sub.id] = sub
	d.mu.Unlock()

	var once sync.Once
	unregister := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, sub.id)
			d.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, unregister)
	return sub.stream, func() {
		stop()
		unregister()
	}
}

// Publish delivers message to every current subscriber.
func (d *Dispatcher) Publish(message Message) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	targets := make([]*subscriber, 0, len(d.subscribers))
	for _, sub := range d.subscribers {
		targets = append(targets, sub)
	}
	d.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.stream <- message:
		default:
			d.logger.Debug("realtime message dropped",
				zap.String("event_type", message.EventType),
				zap.String("user_id", sub.userID))
		}
	}
}

// PublishActivity broadcasts a recorded audit entry.
func (d *Dispatcher) PublishActivity(entry activity.Entry) {
	d.Publish(Message{
		EventType: EventActivity,
		Activity:  &entry,
		Timestamp: entry.Timestamp,
	})
}

// SubscriberCount reports the number of live subscriptions.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
