package queue

import (
	"context"
	"sync"

	"github.com/skylark/aviary/common/logger"
)

// TopicMediaIngested carries ingestion events from the upload pipeline to
// subscription fan-out.
const TopicMediaIngested = "media.ingested"

// Queue interface for message passing between the ingestion path and
// fire-and-continue consumers
type Queue interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler processes messages. Handler errors are logged by the
// queue, never returned to the publisher.
type MessageHandler func(ctx context.Context, key string, value []byte) error

// MemoryQueue is an in-process queue. Fan-out must never fail or roll back
// the ingestion that triggered it, so delivery is buffered and handler
// errors stay on the consumer side.
type MemoryQueue struct {
	topics map[string]chan *Message
	mu     sync.RWMutex
	log    *logger.Logger
}

// Message represents a queue message
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(log *logger.Logger) *MemoryQueue {
	return &MemoryQueue{
		topics: make(map[string]chan *Message),
		log:    log,
	}
}

// Publish publishes a message to a topic
func (q *MemoryQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	q.mu.Lock()
	ch, exists := q.topics[topic]
	if !exists {
		ch = make(chan *Message, 1000)
		q.topics[topic] = ch
	}
	q.mu.Unlock()

	msg := &Message{
		Topic: topic,
		Key:   key,
		Value: message,
	}

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Buffer full; the event is dropped rather than blocking ingestion.
		q.log.Warn("queue full, dropping message", "topic", topic, "key", key)
		return nil
	}
}

// Subscribe subscribes to a topic and processes messages until ctx ends
func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	q.mu.Lock()
	ch, exists := q.topics[topic]
	if !exists {
		ch = make(chan *Message, 1000)
		q.topics[topic] = ch
	}
	q.mu.Unlock()

	q.log.Info("subscribing to topic", "topic", topic)

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.log.Info("subscription cancelled", "topic", topic)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(ctx, msg.Key, msg.Value); err != nil {
					q.log.Error("message handler error", "topic", topic, "key", msg.Key, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close closes the queue
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for topic, ch := range q.topics {
		close(ch)
		q.log.Info("closed topic", "topic", topic)
	}
	q.topics = make(map[string]chan *Message)

	return nil
}
