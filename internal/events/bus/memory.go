package bus

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/logger"
)

// MemoryEventBus implements EventBus in-process. It is the default when no
// NATS URL is configured.
type MemoryEventBus struct {
	mu   sync.RWMutex
	subs []*memorySubscription

	// queueMu guards the round-robin counters; Publish only holds the read
	// lock, so concurrent publishes may hit the same queue key.
	queueMu sync.Mutex
	queues  map[string]int // queueKey -> next round-robin index

	logger *logger.Logger
	closed bool
}

type memorySubscription struct {
	bus     *MemoryEventBus
	subject string
	pattern *regexp.Regexp // nil for exact-match subjects
	handler EventHandler
	queue   string // empty for regular subscriptions

	mu     sync.Mutex
	active bool
}

// NewMemoryEventBus creates a new in-memory event bus
func NewMemoryEventBus(log *logger.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		queues: make(map[string]int),
		logger: log,
	}
}

// Publish delivers the event to every matching subscriber. Queue groups
// receive one delivery per group, round-robin across members.
func (b *MemoryEventBus) Publish(ctx context.Context, subject string, event *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	deliveredQueues := make(map[string]bool)
	for _, sub := range b.subs {
		if !sub.IsValid() || !sub.matches(subject) {
			continue
		}

		if sub.queue != "" {
			queueKey := sub.queue + ":" + sub.subject
			if deliveredQueues[queueKey] {
				continue
			}
			deliveredQueues[queueKey] = true
			b.deliverToQueue(ctx, queueKey, subject, event)
			continue
		}

		b.deliver(ctx, sub, subject, event)
	}

	b.logger.Debug("Published event",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))

	return nil
}

func (b *MemoryEventBus) deliver(ctx context.Context, sub *memorySubscription, subject string, event *Event) {
	go func() {
		if err := sub.handler(ctx, event); err != nil {
			b.logger.Error("Event handler error",
				zap.String("subject", subject),
				zap.Error(err))
		}
	}()
}

// deliverToQueue picks one active member of the queue group, round-robin.
// Caller holds at least the read lock.
func (b *MemoryEventBus) deliverToQueue(ctx context.Context, queueKey, subject string, event *Event) {
	var members []*memorySubscription
	for _, sub := range b.subs {
		if sub.queue != "" && sub.queue+":"+sub.subject == queueKey && sub.IsValid() {
			members = append(members, sub)
		}
	}
	if len(members) == 0 {
		return
	}

	b.queueMu.Lock()
	idx := b.queues[queueKey] % len(members)
	b.queues[queueKey] = idx + 1
	b.queueMu.Unlock()

	b.deliver(ctx, members[idx], subject, event)
}

// Subscribe creates a subscription to a subject pattern
func (b *MemoryEventBus) Subscribe(subject string, handler EventHandler) (Subscription, error) {
	return b.subscribe(subject, "", handler)
}

// QueueSubscribe creates a queue subscription for load balancing
func (b *MemoryEventBus) QueueSubscribe(subject, queue string, handler EventHandler) (Subscription, error) {
	return b.subscribe(subject, queue, handler)
}

func (b *MemoryEventBus) subscribe(subject, queue string, handler EventHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	sub := &memorySubscription{
		bus:     b,
		subject: subject,
		pattern: compilePattern(subject),
		handler: handler,
		queue:   queue,
		active:  true,
	}
	b.subs = append(b.subs, sub)

	b.logger.Debug("Subscribed to subject",
		zap.String("subject", subject),
		zap.String("queue", queue))
	return sub, nil
}

// Close closes the event bus
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, sub := range b.subs {
		sub.mu.Lock()
		sub.active = false
		sub.mu.Unlock()
	}
	b.subs = nil

	b.queueMu.Lock()
	b.queues = make(map[string]int)
	b.queueMu.Unlock()

	b.logger.Info("Memory event bus closed")
}

// IsConnected returns true until the bus is closed
func (b *MemoryEventBus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// Unsubscribe removes the subscription
func (s *memorySubscription) Unsubscribe() error {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}
	return nil
}

// IsValid returns whether the subscription is still active
func (s *memorySubscription) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// matches checks the subject against the subscription's pattern.
// Supports NATS-style wildcards: * (single token) and > (remaining tokens).
func (s *memorySubscription) matches(subject string) bool {
	if s.pattern == nil {
		return subject == s.subject
	}
	return s.pattern.MatchString(subject)
}

// compilePattern converts a NATS-style pattern to a regex. Returns nil for
// patterns without wildcards, which use exact matching instead.
func compilePattern(pattern string) *regexp.Regexp {
	if !strings.Contains(pattern, "*") && !strings.Contains(pattern, ">") {
		return nil
	}

	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `[^.]+`)
	escaped = strings.ReplaceAll(escaped, `>`, `.+`)

	regex, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil
	}
	return regex
}
