package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
)

func staticLoader(classes []models.ScheduledClass) FeedLoader {
	return func(ctx context.Context, courseID string) ([]models.ScheduledClass, error) {
		return classes, nil
	}
}

func TestClassFeedSubscribeDeliversCurrentState(t *testing.T) {
	classes := []models.ScheduledClass{{ID: "class-1", CourseID: "course-1"}}
	feed := NewClassFeed(staticLoader(classes), nil, "", nil)

	var got [][]models.ScheduledClass
	unsubscribe := feed.Subscribe(context.Background(), "course-1", func(classes []models.ScheduledClass) {
		got = append(got, classes)
	})
	defer unsubscribe()

	require.Len(t, got, 1, "handler must fire once immediately on subscribe")
	require.Len(t, got[0], 1)
	assert.Equal(t, "class-1", got[0][0].ID)
}

func TestClassFeedDeliversToCourseSubscribers(t *testing.T) {
	classes := []models.ScheduledClass{{ID: "class-1", CourseID: "course-1"}}
	feed := NewClassFeed(staticLoader(classes), nil, "", nil)

	var got []models.ScheduledClass
	var calls int
	var mu sync.Mutex
	unsubscribe := feed.Subscribe(context.Background(), "course-1", func(classes []models.ScheduledClass) {
		mu.Lock()
		got = classes
		calls++
		mu.Unlock()
	})
	defer unsubscribe()

	otherCalls := 0
	defer feed.Subscribe(context.Background(), "course-2", func([]models.ScheduledClass) {
		mu.Lock()
		otherCalls++
		mu.Unlock()
	})()

	feed.Notify(context.Background(), "course-1")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "class-1", got[0].ID)
	assert.Equal(t, 2, calls, "initial delivery plus one per change")
	assert.Equal(t, 1, otherCalls, "subscriber of another course only sees its own snapshot")
}

func TestClassFeedUnsubscribeStopsDelivery(t *testing.T) {
	feed := NewClassFeed(staticLoader([]models.ScheduledClass{{ID: "class-1"}}), nil, "", nil)

	var calls int64
	unsubscribe := feed.Subscribe(context.Background(), "course-1", func([]models.ScheduledClass) {
		atomic.AddInt64(&calls, 1)
	})

	feed.Notify(context.Background(), "course-1")
	require.Equal(t, int64(2), atomic.LoadInt64(&calls))

	unsubscribe()
	feed.Notify(context.Background(), "course-1")
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls), "no callbacks after unsubscribe returns")
}

func TestClassFeedUnsubscribeDuringConcurrentNotify(t *testing.T) {
	feed := NewClassFeed(staticLoader([]models.ScheduledClass{{ID: "class-1"}}), nil, "", nil)

	var after int64
	done := make(chan struct{})
	unsubscribed := int64(0)
	unsubscribe := feed.Subscribe(context.Background(), "course-1", func([]models.ScheduledClass) {
		if atomic.LoadInt64(&unsubscribed) == 1 {
			atomic.AddInt64(&after, 1)
		}
	})

	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			feed.Notify(context.Background(), "course-1")
		}
	}()

	time.Sleep(time.Millisecond)
	unsubscribe()
	atomic.StoreInt64(&unsubscribed, 1)
	<-done

	assert.Zero(t, atomic.LoadInt64(&after), "delivery observed after unsubscribe returned")
}

func TestClassFeedOnChangeHookRunsBeforeFanout(t *testing.T) {
	feed := NewClassFeed(staticLoader(nil), nil, "", nil)

	var order []string
	feed.OnChange(func(ctx context.Context, courseID string) {
		order = append(order, "hook:"+courseID)
	})
	defer feed.Subscribe(context.Background(), "course-1", func([]models.ScheduledClass) {
		order = append(order, "deliver")
	})()
	order = nil // the subscribe-time snapshot is not a change notification

	feed.Notify(context.Background(), "course-1")
	require.Equal(t, []string{"hook:course-1", "deliver"}, order)
}
