package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/features/certificate"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/enrollment"
	"github.com/mo-amir99/lms-progress-server/internal/features/exam"
	"github.com/mo-amir99/lms-progress-server/internal/features/lesson"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// LessonStat is how many enrolled learners finished a lesson.
type LessonStat struct {
	LessonID    uuid.UUID `json:"lessonId"`
	ModuleID    uuid.UUID `json:"moduleId"`
	Title       string    `json:"title"`
	Index       int       `json:"index"`
	Completions int64     `json:"completions"`
}

// CourseStats summarises learner progress in one course.
type CourseStats struct {
	CourseID        uuid.UUID    `json:"courseId"`
	Title           string       `json:"title"`
	Enrollments     int64        `json:"enrollments"`
	Completed       int64        `json:"completed"`
	CompletionRate  float64      `json:"completionRate"`
	AverageProgress float64      `json:"averageProgress"`
	ExamAttempts    int64        `json:"examAttempts"`
	ExamPasses      int64        `json:"examPasses"`
	Certificates    int64        `json:"certificates"`
	Lessons         []LessonStat `json:"lessons"`
}

// Overview is the admin-wide summary.
type Overview struct {
	Users             int64 `json:"usersCount"`
	Instructors       int64 `json:"instructorsCount"`
	Courses           int64 `json:"coursesCount"`
	Lessons           int64 `json:"lessonsCount"`
	Enrollments       int64 `json:"enrollmentsCount"`
	RecentEnrollments int64 `json:"recentEnrollments"`
	Completions       int64 `json:"completedEnrollments"`
	Certificates      int64 `json:"certificatesCount"`
}

type lessonCount struct {
	LessonID uuid.UUID
	Total    int64
}

// LoadCourseStats aggregates enrollments, completions and exam results for a course.
func LoadCourseStats(db *gorm.DB, crs course.Course) (CourseStats, error) {
	stats := CourseStats{CourseID: crs.ID, Title: crs.Title, Lessons: []LessonStat{}}

	enrollments := db.Model(&enrollment.Enrollment{}).Where("course_id = ?", crs.ID)
	if err := enrollments.Session(&gorm.Session{}).Count(&stats.Enrollments).Error; err != nil {
		return stats, err
	}
	if err := enrollments.Session(&gorm.Session{}).Where("is_completed = ?", true).Count(&stats.Completed).Error; err != nil {
		return stats, err
	}
	if err := enrollments.Session(&gorm.Session{}).Select("COALESCE(AVG(progress), 0)").Scan(&stats.AverageProgress).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&exam.Attempt{}).Where("course_id = ? AND submitted_at IS NOT NULL", crs.ID).Count(&stats.ExamAttempts).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&exam.Attempt{}).Where("course_id = ? AND is_passed = ?", crs.ID, true).Count(&stats.ExamPasses).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&certificate.Certificate{}).Where("course_id = ?", crs.ID).Count(&stats.Certificates).Error; err != nil {
		return stats, err
	}

	var counts []lessonCount
	if err := db.Model(&enrollment.LessonCompletion{}).
		Select("lesson_completions.lesson_id AS lesson_id, COUNT(*) AS total").
		Joins("JOIN enrollments ON enrollments.id = lesson_completions.enrollment_id").
		Where("enrollments.course_id = ?", crs.ID).
		Group("lesson_completions.lesson_id").
		Scan(&counts).Error; err != nil {
		return stats, err
	}
	byLesson := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byLesson[c.LessonID] = c.Total
	}

	index := 0
	for _, m := range crs.Modules {
		for _, l := range m.Lessons {
			stats.Lessons = append(stats.Lessons, LessonStat{
				LessonID:    l.ID,
				ModuleID:    m.ID,
				Title:       l.Title,
				Index:       index,
				Completions: byLesson[l.ID],
			})
			index++
		}
	}

	if stats.Enrollments > 0 {
		stats.CompletionRate = round1(100 * float64(stats.Completed) / float64(stats.Enrollments))
	}
	stats.AverageProgress = round1(stats.AverageProgress)
	return stats, nil
}

// LoadOverview runs the admin counters concurrently.
func LoadOverview(ctx context.Context, db *gorm.DB, now time.Time) (Overview, error) {
	var o Overview
	g, gctx := errgroup.WithContext(ctx)

	count := func(dst *int64, model interface{}, query string, args ...interface{}) {
		g.Go(func() error {
			q := db.WithContext(gctx).Model(model)
			if query != "" {
				q = q.Where(query, args...)
			}
			return q.Count(dst).Error
		})
	}

	count(&o.Users, &user.User{}, "")
	count(&o.Instructors, &user.User{}, "user_type = ?", types.UserTypeInstructor)
	count(&o.Courses, &course.Course{}, "")
	count(&o.Lessons, &lesson.Lesson{}, "")
	count(&o.Enrollments, &enrollment.Enrollment{}, "")
	count(&o.RecentEnrollments, &enrollment.Enrollment{}, "enrolled_at >= ?", now.AddDate(0, 0, -7))
	count(&o.Completions, &enrollment.Enrollment{}, "is_completed = ?", true)
	count(&o.Certificates, &certificate.Certificate{}, "")

	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return o, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
