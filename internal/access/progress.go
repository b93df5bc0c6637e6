package access

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// LessonSet is a set of lesson ids.
type LessonSet map[uuid.UUID]struct{}

// NewLessonSet builds a set from ids.
func NewLessonSet(ids ...uuid.UUID) LessonSet {
	set := make(LessonSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Add inserts id and reports whether it was new.
func (s LessonSet) Add(id uuid.UUID) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Has reports membership.
func (s LessonSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids in the set.
func (s LessonSet) Len() int { return len(s) }

// Clone copies the set.
func (s LessonSet) Clone() LessonSet {
	out := make(LessonSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Slice returns the ids in a stable order.
func (s LessonSet) Slice() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Progress is the derived completion state of an enrollment.
type Progress struct {
	Percent   int  `json:"progress"`
	Completed bool `json:"completed"`
}

// ComputeProgress derives progress from the completed set. Ids that are no
// longer part of the course are ignored.
func ComputeProgress(completed LessonSet, course Course) Progress {
	total := course.TotalLessons()
	if total == 0 {
		return Progress{}
	}

	done := 0
	for id := range course.LessonIDs() {
		if completed.Has(id) {
			done++
		}
	}

	percent := int(math.Round(100 * float64(done) / float64(total)))
	return Progress{Percent: percent, Completed: percent == 100}
}
