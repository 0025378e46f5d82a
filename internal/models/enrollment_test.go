package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	cases := []struct {
		name                          string
		lessonsDone, lessonsTotal     int
		classesAttended, classesTotal int
		want                          float64
	}{
		{"nothing done", 0, 10, 0, 4, 0},
		{"half lessons only", 5, 10, 0, 0, 50},
		{"both dimensions", 5, 10, 2, 4, 50},
		{"uneven dimensions", 10, 10, 1, 4, 62.5},
		{"complete", 10, 10, 4, 4, 100},
		{"no totals at all", 0, 0, 0, 0, 0},
		{"overshoot capped", 12, 10, 6, 4, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeProgress(tc.lessonsDone, tc.lessonsTotal, tc.classesAttended, tc.classesTotal)
			assert.InDelta(t, tc.want, got.OverallProgress, 0.001)
		})
	}
}

func TestComputeProgressExcludesZeroTotalDimension(t *testing.T) {
	// A course with no scheduled classes must not hold progress at 50%.
	got := ComputeProgress(10, 10, 0, 0)
	assert.InDelta(t, 100, got.OverallProgress, 0.001)
	assert.True(t, got.Complete())
}

func TestProgressEventKindValid(t *testing.T) {
	assert.True(t, ProgressLessonCompleted.Valid())
	assert.True(t, ProgressClassAttended.Valid())
	assert.False(t, ProgressEventKind("QUIZ_PASSED").Valid())
}
