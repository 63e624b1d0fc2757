package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pld/internal/models"
)

func streakTracker() StreakTrackerInterface {
	return NewStreakTrackerIn(time.UTC)
}

func dayMillis(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC).UnixMilli()
}

func TestStreakTracker_FirstEventStartsStreak(t *testing.T) {
	tracker := streakTracker()

	streak, changed := tracker.Advance(nil, dayMillis(2025, 3, 10))

	assert.True(t, changed)
	require.NotNil(t, streak)
	assert.Equal(t, "2025-03-10", streak.LastListenDate)
	assert.Equal(t, 1, streak.CurrentStreak)
}

func TestStreakTracker_SameDayIsNoOp(t *testing.T) {
	tracker := streakTracker()
	current := &models.Streak{LastListenDate: "2025-03-10", CurrentStreak: 3}

	streak, changed := tracker.Advance(current, dayMillis(2025, 3, 10))

	assert.False(t, changed)
	assert.Same(t, current, streak)
}

func TestStreakTracker_NextDayIncrements(t *testing.T) {
	tracker := streakTracker()
	current := &models.Streak{LastListenDate: "2025-03-10", CurrentStreak: 3}

	streak, changed := tracker.Advance(current, dayMillis(2025, 3, 11))

	assert.True(t, changed)
	assert.Equal(t, "2025-03-11", streak.LastListenDate)
	assert.Equal(t, 4, streak.CurrentStreak)
}

func TestStreakTracker_GapResets(t *testing.T) {
	tracker := streakTracker()
	current := &models.Streak{LastListenDate: "2025-03-10", CurrentStreak: 7}

	streak, changed := tracker.Advance(current, dayMillis(2025, 3, 13))

	assert.True(t, changed)
	assert.Equal(t, "2025-03-13", streak.LastListenDate)
	assert.Equal(t, 1, streak.CurrentStreak)
}

func TestStreakTracker_OlderEventIsNoOp(t *testing.T) {
	tracker := streakTracker()
	current := &models.Streak{LastListenDate: "2025-03-10", CurrentStreak: 7}

	streak, changed := tracker.Advance(current, dayMillis(2025, 3, 8))

	assert.False(t, changed)
	assert.Same(t, current, streak)
}

func TestStreakTracker_Sequence(t *testing.T) {
	tracker := streakTracker()

	var streak *models.Streak
	var values []int
	for _, ts := range []int64{
		dayMillis(2025, 3, 10),
		dayMillis(2025, 3, 10),
		dayMillis(2025, 3, 11),
		dayMillis(2025, 3, 14),
	} {
		streak, _ = tracker.Advance(streak, ts)
		values = append(values, streak.CurrentStreak)
	}

	assert.Equal(t, []int{1, 1, 2, 1}, values)
}

func TestStreakTracker_MonthAndYearBoundaries(t *testing.T) {
	tracker := streakTracker()

	streak, changed := tracker.Advance(
		&models.Streak{LastListenDate: "2025-02-28", CurrentStreak: 5},
		dayMillis(2025, 3, 1),
	)
	assert.True(t, changed)
	assert.Equal(t, 6, streak.CurrentStreak)

	streak, changed = tracker.Advance(
		&models.Streak{LastListenDate: "2024-12-31", CurrentStreak: 12},
		dayMillis(2025, 1, 1),
	)
	assert.True(t, changed)
	assert.Equal(t, 13, streak.CurrentStreak)
}

func TestStreakTracker_CorruptDateRestarts(t *testing.T) {
	tracker := streakTracker()
	current := &models.Streak{LastListenDate: "not a date", CurrentStreak: 9}

	streak, changed := tracker.Advance(current, dayMillis(2025, 3, 10))

	assert.True(t, changed)
	assert.Equal(t, "2025-03-10", streak.LastListenDate)
	assert.Equal(t, 1, streak.CurrentStreak)
}

func TestStreakTracker_DayBoundaryUsesLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	tracker := NewStreakTrackerIn(berlin)

	current := &models.Streak{LastListenDate: "2025-03-10", CurrentStreak: 2}
	// 23:30 UTC on the 10th is already the 11th in Berlin.
	streak, changed := tracker.Advance(current, time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC).UnixMilli())

	assert.True(t, changed)
	assert.Equal(t, "2025-03-11", streak.LastListenDate)
	assert.Equal(t, 3, streak.CurrentStreak)
}
