package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/pkg/apperrors"
	"github.com/mo-amir99/lms-progress-server/pkg/cache"
	"github.com/mo-amir99/lms-progress-server/pkg/metrics"
)

// Catalog serves read-only curriculum snapshots. Snapshots are cached and
// concurrent misses for the same course share one database load.
type Catalog struct {
	db     *gorm.DB
	store  cache.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCatalog builds a catalog. A nil store disables caching.
func NewCatalog(db *gorm.DB, store cache.Client, ttl time.Duration, logger *slog.Logger) *Catalog {
	return &Catalog{db: db, store: store, ttl: ttl, logger: logger}
}

func snapshotKey(courseID uuid.UUID, generation string) string {
	return "course:snapshot:" + courseID.String() + ":" + generation
}

func generationKey(courseID uuid.UUID) string {
	return "course:snapshot:gen:" + courseID.String()
}

// CourseSnapshot returns the curriculum of a course in lesson-index order.
func (c *Catalog) CourseSnapshot(ctx context.Context, courseID uuid.UUID) (access.Course, error) {
	if c.store == nil {
		return c.load(ctx, courseID, "")
	}

	generation, err := c.generation(ctx, courseID)
	if err != nil {
		c.logger.WarnContext(ctx, "course snapshot generation read failed",
			slog.String("courseId", courseID.String()),
			slog.String("error", err.Error()))
		return c.load(ctx, courseID, "")
	}
	key := snapshotKey(courseID, generation)

	var snapshot access.Course
	err = cache.GetJSON(ctx, c.store, key, &snapshot)
	switch {
	case err == nil:
		metrics.RecordCacheLookup(true)
		return snapshot, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.WarnContext(ctx, "course snapshot cache read failed",
			slog.String("courseId", courseID.String()),
			slog.String("error", err.Error()))
	}
	metrics.RecordCacheLookup(false)

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.load(context.WithoutCancel(ctx), courseID, key)
	})
	if err != nil {
		return access.Course{}, err
	}
	return value.(access.Course), nil
}

// Invalidate drops the cached snapshot after a curriculum or drip change by
// moving the course to a new generation. A load that started earlier writes
// under the old generation, which is never read again.
func (c *Catalog) Invalidate(ctx context.Context, courseID uuid.UUID) error {
	if c.store == nil {
		return nil
	}
	key := generationKey(courseID)
	if _, err := c.store.Increment(ctx, key); err != nil {
		return fmt.Errorf("bump snapshot generation: %w", err)
	}
	// The generation must outlive every snapshot written under an older one.
	lifetime := 24 * time.Hour
	if 2*c.ttl > lifetime {
		lifetime = 2 * c.ttl
	}
	return c.store.Expire(ctx, key, lifetime)
}

func (c *Catalog) generation(ctx context.Context, courseID uuid.UUID) (string, error) {
	generation, err := c.store.Get(ctx, generationKey(courseID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return "0", nil
	}
	return generation, err
}

// load reads the curriculum and, when key is set, caches it under key.
func (c *Catalog) load(ctx context.Context, courseID uuid.UUID, key string) (access.Course, error) {
	course, err := GetWithCurriculum(c.db.WithContext(ctx), courseID)
	if err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			return access.Course{}, apperrors.NotFound("Course not found", err)
		}
		return access.Course{}, fmt.Errorf("load course %s: %w", courseID, err)
	}

	snapshot := course.Snapshot()
	if key != "" {
		if err := cache.SetJSON(ctx, c.store, key, snapshot, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "course snapshot cache write failed",
				slog.String("courseId", courseID.String()),
				slog.String("error", err.Error()))
		}
	}
	return snapshot, nil
}
