package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/riftlabs/taskforge/internal/models"
)

// EventType is a task lifecycle event kind published by the dispatcher
// and bridge.
type EventType string

const (
	EventSubmitted  EventType = "task.submitted"
	EventPromoted   EventType = "task.promoted"
	EventDispatched EventType = "task.dispatched"
	EventCompleted  EventType = "task.completed"
	EventFailed     EventType = "task.failed"
	EventCancelled  EventType = "task.cancelled"
)

// Event is the payload published for each lifecycle transition.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id"`
	TaskType  string    `json:"task_type,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(eventType EventType, taskID string, kind models.Kind) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TaskID:    taskID,
		TaskType:  string(kind),
		Timestamp: time.Now().UTC(),
	}
}

// Notifier publishes task lifecycle events to an external subscriber.
// TaskMaster treats a nil Notifier as "notifications disabled."
type Notifier interface {
	Publish(event Event)
	Start()
	Stop()
}

// RedisNotifier publishes events to a Redis Pub/Sub channel. Publishing
// is asynchronous and best-effort: a full buffer drops the event
// rather than blocking the dispatcher, and a publish error is logged,
// never propagated, matching the engine's "notifications never break
// task execution" stance.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *logrus.Logger

	buffer chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRedisNotifier constructs a notifier publishing to channel. bufferSize
// bounds how many events may be queued before publishes start dropping.
func NewRedisNotifier(client *redis.Client, channel string, bufferSize int, logger *logrus.Logger) *RedisNotifier {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  logger,
		buffer:  make(chan Event, bufferSize),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the async publish loop.
func (n *RedisNotifier) Start() {
	n.wg.Add(1)
	go n.loop()
}

// Stop drains the buffer and returns once every queued event has been
// published or the notifier has given up on it.
func (n *RedisNotifier) Stop() {
	close(n.stopCh)
	close(n.buffer)
	n.wg.Wait()
}

func (n *RedisNotifier) loop() {
	defer n.wg.Done()
	for event := range n.buffer {
		n.publish(event)
	}
}

// Publish enqueues event for async delivery. Never blocks: a full
// buffer drops the event and logs a warning.
func (n *RedisNotifier) Publish(event Event) {
	select {
	case n.buffer <- event:
	default:
		n.logger.WithField("task_id", event.TaskID).Warn("engine: notification buffer full, dropping event")
	}
}

func (n *RedisNotifier) publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		n.logger.WithError(err).Warn("engine: failed to marshal task event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		n.logger.WithError(err).WithField("task_id", event.TaskID).Debug("engine: failed to publish task event")
	}
}
