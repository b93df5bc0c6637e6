// Package access holds the pure rules deciding which lessons a learner may see,
// how course progress is derived and when the exam and certificate unlock.
// Nothing in here performs I/O; callers pass in the course snapshot, the
// enrollment and the current time.
package access

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DripPolicy controls how quickly lessons are revealed after enrollment.
type DripPolicy string

const (
	DripOff    DripPolicy = "off"
	DripDaily  DripPolicy = "daily"
	DripWeekly DripPolicy = "weekly"
)

// Valid reports whether p is a recognised policy.
func (p DripPolicy) Valid() bool {
	switch p {
	case DripOff, DripDaily, DripWeekly:
		return true
	default:
		return false
	}
}

// ParseDripPolicy normalises user input into a DripPolicy. An empty value means off.
func ParseDripPolicy(value string) (DripPolicy, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return DripOff, nil
	}
	policy := DripPolicy(trimmed)
	if !policy.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, value)
	}
	return policy, nil
}

// Lesson is the part of a lesson the access rules care about.
type Lesson struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// Module groups lessons in curriculum order.
type Module struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Lessons []Lesson  `json:"lessons"`
}

// Course is an immutable curriculum snapshot. Lesson index is the position in
// the flattened modules[*].lessons sequence.
type Course struct {
	ID       uuid.UUID  `json:"id"`
	DripFeed DripPolicy `json:"dripFeed"`
	Modules  []Module   `json:"modules"`
}

// TotalLessons counts lessons across all modules.
func (c Course) TotalLessons() int {
	total := 0
	for _, m := range c.Modules {
		total += len(m.Lessons)
	}
	return total
}

// Lessons returns the flattened curriculum.
func (c Course) Lessons() []Lesson {
	lessons := make([]Lesson, 0, c.TotalLessons())
	for _, m := range c.Modules {
		lessons = append(lessons, m.Lessons...)
	}
	return lessons
}

// LessonIndex returns the zero-based flattened index of a lesson.
func (c Course) LessonIndex(id uuid.UUID) (int, bool) {
	idx := 0
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			if l.ID == id {
				return idx, true
			}
			idx++
		}
	}
	return -1, false
}

// LessonIDs returns the set of lesson ids currently in the curriculum.
func (c Course) LessonIDs() LessonSet {
	set := make(LessonSet, c.TotalLessons())
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			set.Add(l.ID)
		}
	}
	return set
}
