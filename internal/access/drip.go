package access

import (
	"fmt"
	"time"
)

// Scheduler computes drip unlocks. Calendar days are taken in Location.
type Scheduler struct {
	Location *time.Location
}

// NewScheduler returns a scheduler evaluating days in loc (UTC when nil).
func NewScheduler(loc *time.Location) Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return Scheduler{Location: loc}
}

// UnlockedCount evaluates the drip policy in UTC.
func UnlockedCount(course Course, enrolledAt, now time.Time) (int, error) {
	return NewScheduler(time.UTC).UnlockedCount(course, enrolledAt, now)
}

// UnlockedCount returns how many lessons, counted from index 0, are available
// at now for an enrollment created at enrolledAt.
func (s Scheduler) UnlockedCount(course Course, enrolledAt, now time.Time) (int, error) {
	if !course.DripFeed.Valid() {
		return 0, fmt.Errorf("%w: %q on course %s", ErrInvalidPolicy, course.DripFeed, course.ID)
	}

	total := course.TotalLessons()
	if total == 0 {
		return 0, nil
	}

	start := s.civilDate(enrolledAt)
	end := s.civilDate(now)

	var count int
	switch course.DripFeed {
	case DripOff:
		return total, nil
	case DripDaily:
		count = weekdayCount(start, end)
	case DripWeekly:
		count = weeksElapsed(start, end) + 1
	}

	// an enrolled learner always has the first lesson, even on a weekend or under clock skew
	if count < 1 {
		count = 1
	}
	if count > total {
		count = total
	}
	return count, nil
}

// civilDate maps t to midnight UTC of its calendar date in the scheduler's
// location so day arithmetic is free of DST shifts.
func (s Scheduler) civilDate(t time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}

// weekdayCount counts Monday-Friday dates in [start, end].
func weekdayCount(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}

	days := daysBetween(start, end) + 1
	weeks := days / 7
	count := weeks * 5

	cursor := start.AddDate(0, 0, weeks*7)
	for i := 0; i < days%7; i++ {
		switch cursor.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			count++
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return count
}

// weeksElapsed counts full rolling seven-day periods since start.
func weeksElapsed(start, end time.Time) int {
	days := daysBetween(start, end)
	if days < 0 {
		return 0
	}
	return days / 7
}
