package access

import (
	"time"

	"github.com/google/uuid"
)

// newCourse builds a course with one module per entry in sizes.
func newCourse(policy DripPolicy, sizes ...int) Course {
	c := Course{ID: uuid.New(), DripFeed: policy}
	for _, size := range sizes {
		m := Module{ID: uuid.New(), Title: "Module"}
		for li := 0; li < size; li++ {
			m.Lessons = append(m.Lessons, Lesson{ID: uuid.New(), Title: "Lesson"})
		}
		c.Modules = append(c.Modules, m)
	}
	return c
}

func day(year int, month time.Month, d, hour int) time.Time {
	return time.Date(year, month, d, hour, 0, 0, 0, time.UTC)
}

// 2024-01-01 is a Monday.
var monday = day(2024, time.January, 1, 9)
