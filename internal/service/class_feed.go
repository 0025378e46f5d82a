package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
)

// FeedHandler receives the refreshed upcoming-class list for a course.
type FeedHandler func(classes []models.ScheduledClass)

// FeedLoader fetches the current upcoming classes for a course. The feed
// calls it on every notification so subscribers always see fresh state.
type FeedLoader func(ctx context.Context, courseID string) ([]models.ScheduledClass, error)

type feedSubscriber struct {
	mu      sync.Mutex
	closed  bool
	handler FeedHandler
}

// deliver invokes the handler unless the subscription is closed. The mutex
// is held across the call so Unsubscribe can block until in-flight delivery
// drains, which is what makes the no-callbacks-after-return guarantee hold.
func (s *feedSubscriber) deliver(classes []models.ScheduledClass) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.handler(classes)
}

func (s *feedSubscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// ClassFeed fans schedule changes out to per-course subscribers. Writes call
// Notify with the touched course id; the feed reloads that course's upcoming
// classes and delivers them to every subscriber of the course.
//
// With a Redis client the notification travels through a pub/sub channel, so
// a write on one instance reaches subscribers on every instance. Without one
// the fanout stays in-process.
type ClassFeed struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*feedSubscriber

	loader   FeedLoader
	client   *redis.Client
	channel  string
	logger   *zap.Logger
	metrics  *MetricsService
	onChange func(ctx context.Context, courseID string)
}

// NewClassFeed constructs the feed. client may be nil.
func NewClassFeed(loader FeedLoader, client *redis.Client, channel string, logger *zap.Logger) *ClassFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = "class_feed"
	}
	return &ClassFeed{
		subscribers: make(map[string]map[string]*feedSubscriber),
		loader:      loader,
		client:      client,
		channel:     channel,
		logger:      logger,
	}
}

// SetMetrics attaches Prometheus instrumentation. Optional.
func (f *ClassFeed) SetMetrics(metrics *MetricsService) {
	f.metrics = metrics
}

// OnChange registers a hook invoked once per notification before fanout,
// on every instance. Used to drop cached projections that embed the
// course's classes.
func (f *ClassFeed) OnChange(hook func(ctx context.Context, courseID string)) {
	f.onChange = hook
}

// Subscribe registers a handler for one course and returns an unsubscribe
// function. The handler is invoked once right away with the course's current
// upcoming classes, then once per subsequent change. Once the unsubscribe
// function returns, the handler will not be invoked again.
func (f *ClassFeed) Subscribe(ctx context.Context, courseID string, handler FeedHandler) func() {
	sub := &feedSubscriber{handler: handler}
	id := uuid.NewString()

	f.mu.Lock()
	if f.subscribers[courseID] == nil {
		f.subscribers[courseID] = make(map[string]*feedSubscriber)
	}
	f.subscribers[courseID][id] = sub
	f.metrics.SetFeedSubscribers(f.countLocked())
	f.mu.Unlock()

	f.deliverCurrent(ctx, courseID, sub)

	return func() {
		f.mu.Lock()
		if subs, ok := f.subscribers[courseID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(f.subscribers, courseID)
			}
		}
		f.metrics.SetFeedSubscribers(f.countLocked())
		f.mu.Unlock()
		// Blocks until any in-flight delivery to this subscriber finishes.
		sub.close()
	}
}

// deliverCurrent loads the course's current upcoming classes and hands them
// to a single subscriber. A load failure only costs the initial snapshot;
// the subscription itself stays registered.
func (f *ClassFeed) deliverCurrent(ctx context.Context, courseID string, sub *feedSubscriber) {
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	classes, err := f.loader(loadCtx, courseID)
	cancel()
	if err != nil {
		f.logger.Error("load upcoming classes for new subscriber failed",
			zap.String("course_id", courseID), zap.Error(err))
		return
	}
	sub.deliver(classes)
	f.metrics.ObserveFeedDelivery()
}

// countLocked assumes f.mu is held.
func (f *ClassFeed) countLocked() int {
	total := 0
	for _, subs := range f.subscribers {
		total += len(subs)
	}
	return total
}

// Notify signals that the course's schedule changed. With Redis the signal is
// published so every instance refreshes; otherwise local subscribers are
// refreshed directly.
func (f *ClassFeed) Notify(ctx context.Context, courseID string) {
	if f.client != nil {
		if err := f.client.Publish(ctx, f.channel, courseID).Err(); err != nil {
			f.logger.Warn("publish class feed notification failed, falling back to local fanout",
				zap.String("course_id", courseID), zap.Error(err))
			f.fanout(ctx, courseID)
		}
		return
	}
	f.fanout(ctx, courseID)
}

// Run consumes the Redis notification channel until ctx is cancelled. It is
// a no-op without a Redis client.
func (f *ClassFeed) Run(ctx context.Context) {
	if f.client == nil {
		return
	}
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			f.fanout(ctx, msg.Payload)
		}
	}
}

func (f *ClassFeed) fanout(ctx context.Context, courseID string) {
	if f.onChange != nil {
		f.onChange(ctx, courseID)
	}

	f.mu.RLock()
	subs := make([]*feedSubscriber, 0, len(f.subscribers[courseID]))
	for _, sub := range f.subscribers[courseID] {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	classes, err := f.loader(loadCtx, courseID)
	cancel()
	if err != nil {
		f.logger.Error("load upcoming classes for feed failed",
			zap.String("course_id", courseID), zap.Error(err))
		return
	}

	for _, sub := range subs {
		sub.deliver(classes)
		f.metrics.ObserveFeedDelivery()
	}
}
