package services

import (
	"time"

	"pld/internal/models"
)

const streakDateLayout = "2006-01-02"

type StreakTrackerInterface interface {
	Advance(current *models.Streak, tsMillis int64) (*models.Streak, bool)
}

// StreakTracker maintains the consecutive-listening-days counter. Day
// boundaries follow the configured location; the day difference itself is
// computed on the date strings so it is immune to DST offsets.
type StreakTracker struct {
	loc *time.Location
}

func NewStreakTracker() StreakTrackerInterface {
	return NewStreakTrackerIn(time.Local)
}

func NewStreakTrackerIn(loc *time.Location) StreakTrackerInterface {
	return &StreakTracker{loc: loc}
}

// Advance applies one listening event to the streak. It returns the streak
// that should be stored and whether it differs from the current one. Events
// on the already-recorded day and events older than it leave the streak
// untouched.
func (t *StreakTracker) Advance(current *models.Streak, tsMillis int64) (*models.Streak, bool) {
	day := time.UnixMilli(tsMillis).In(t.loc).Format(streakDateLayout)

	if current == nil || current.LastListenDate == "" {
		return &models.Streak{LastListenDate: day, CurrentStreak: 1}, true
	}

	last, err := time.Parse(streakDateLayout, current.LastListenDate)
	if err != nil {
		// Unparseable persisted date, start over from this event.
		return &models.Streak{LastListenDate: day, CurrentStreak: 1}, true
	}
	event, _ := time.Parse(streakDateLayout, day)
	diffDays := int(event.Sub(last).Hours() / 24)

	switch {
	case diffDays == 1:
		return &models.Streak{LastListenDate: day, CurrentStreak: current.CurrentStreak + 1}, true
	case diffDays > 1:
		return &models.Streak{LastListenDate: day, CurrentStreak: 1}, true
	default:
		// Same day or an out-of-order historical event.
		return current, false
	}
}
