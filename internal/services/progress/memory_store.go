package progress

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mo-amir99/lms-progress-server/internal/access"
)

type enrollmentKey struct {
	userID   uuid.UUID
	courseID uuid.UUID
}

// MemoryStore is an EnrollmentStore kept in process memory. It backs tests
// and single-node development runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[enrollmentKey]access.Enrollment
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[enrollmentKey]access.Enrollment)}
}

// GetEnrollment returns a copy of the stored record.
func (m *MemoryStore) GetEnrollment(_ context.Context, userID, courseID uuid.UUID) (access.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[enrollmentKey{userID, courseID}]
	if !ok {
		return access.Enrollment{}, ErrEnrollmentNotFound
	}
	return clone(rec), nil
}

// CreateEnrollment inserts a record with an empty completion set.
func (m *MemoryStore) CreateEnrollment(_ context.Context, req EnrollRequest) (access.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := enrollmentKey{req.UserID, req.CourseID}
	if _, exists := m.records[key]; exists {
		return access.Enrollment{}, ErrAlreadyEnrolled
	}

	rec := access.Enrollment{
		UserID:           req.UserID,
		CourseID:         req.CourseID,
		EnrolledAt:       req.EnrolledAt,
		CompletedLessons: access.NewLessonSet(),
		PaymentMethod:    string(req.PaymentMethod),
	}
	m.records[key] = rec
	return clone(rec), nil
}

// MergeEnrollment unions the patch into the stored set and recomputes progress.
func (m *MemoryStore) MergeEnrollment(_ context.Context, userID, courseID uuid.UUID, patch access.MergePatch) (access.MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := enrollmentKey{userID, courseID}
	rec, ok := m.records[key]
	if !ok {
		return access.MergeResult{}, ErrEnrollmentNotFound
	}

	wasCompleted := rec.Completed
	merged := rec.CompletedLessons.Clone()
	for _, id := range patch.AddLessons {
		merged.Add(id)
	}

	progress := patch.Recompute(merged)
	rec.CompletedLessons = merged
	rec.Progress = progress.Percent
	rec.Completed = progress.Completed
	m.records[key] = rec

	return access.MergeResult{
		Enrollment:      clone(rec),
		BecameCompleted: !wasCompleted && rec.Completed,
	}, nil
}

// Delete removes a record; it is the only way to shrink a completion set.
func (m *MemoryStore) Delete(userID, courseID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := enrollmentKey{userID, courseID}
	if _, ok := m.records[key]; !ok {
		return false
	}
	delete(m.records, key)
	return true
}

func clone(rec access.Enrollment) access.Enrollment {
	rec.CompletedLessons = rec.CompletedLessons.Clone()
	return rec
}
