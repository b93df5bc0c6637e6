package socketio

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-progress-server/pkg/logger"
)

func TestNewServerRequiresAuthenticator(t *testing.T) {
	_, err := NewServer(nil, logger.Discard())
	require.Error(t, err)
}

func TestRoomsAreNamespacedByKind(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "user_11111111-1111-1111-1111-111111111111", string(userRoom(id)))
	assert.Equal(t, "course_11111111-1111-1111-1111-111111111111", string(courseRoom(id)))
}

func TestBearer(t *testing.T) {
	assert.Equal(t, "abc", bearer("Bearer abc"))
	assert.Empty(t, bearer("Basic abc"))
	assert.Empty(t, bearer(""))
}

func TestStringArg(t *testing.T) {
	assert.Equal(t, "x", stringArg([]any{"x"}))
	assert.Equal(t, "y", stringArg([]any{map[string]any{"courseId": "y"}}))
	assert.Empty(t, stringArg(nil))
	assert.Empty(t, stringArg([]any{42}))
}

func TestServerLifecycle(t *testing.T) {
	auth := func(context.Context, string) (Identity, error) { return Identity{UserID: uuid.New()}, nil }
	s, err := NewServer(auth, logger.Discard())
	require.NoError(t, err)
	assert.NotNil(t, s.GetHandler())
	assert.Zero(t, s.ConnectionCount())
	require.NoError(t, s.PublishProgress(context.Background(), uuid.New(), uuid.New(), map[string]int{"progress": 50}))
	require.NoError(t, s.Close())
}
