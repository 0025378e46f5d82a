package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
)

type mockPromoter struct {
	calls    int
	failures int
	failWith error
	courses  []string
}

func (m *mockPromoter) PromoteDue(ctx context.Context, now time.Time) ([]string, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, m.failWith
	}
	return m.courses, nil
}

func TestReconcileNotifiesTouchedCourses(t *testing.T) {
	promoter := &mockPromoter{courses: []string{"course-1", "course-2"}}
	feed := &mockFeed{}
	rec := NewStatusReconciler(promoter, feed, nil)

	require.NoError(t, rec.Reconcile(context.Background()))
	assert.Equal(t, []string{"course-1", "course-2"}, feed.notified)
}

func TestReconcileRetriesTransientFailure(t *testing.T) {
	promoter := &mockPromoter{
		failures: 2,
		failWith: appErrors.ErrStoreUnavailable,
		courses:  []string{"course-1"},
	}
	feed := &mockFeed{}
	rec := NewStatusReconciler(promoter, feed, nil)

	require.NoError(t, rec.Reconcile(context.Background()))
	assert.Equal(t, 3, promoter.calls)
	assert.Equal(t, []string{"course-1"}, feed.notified)
}

func TestReconcileGivesUpOnPermanentFailure(t *testing.T) {
	permanent := errors.New("constraint violated")
	promoter := &mockPromoter{failures: 10, failWith: permanent}
	feed := &mockFeed{}
	rec := NewStatusReconciler(promoter, feed, nil)

	err := rec.Reconcile(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, promoter.calls, "non-retryable errors are not retried")
	assert.Empty(t, feed.notified)
}
