package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesErrorsToSeparateFile(t *testing.T) {
	dir := t.TempDir()

	log, err := New("info", dir)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("lesson completed", "lessonId", "abc")
	log.Error("drip policy invalid", "courseId", "c1")

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(info)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "lesson completed", first["msg"])

	errs, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errs), "drip policy invalid")
	assert.NotContains(t, string(errs), "lesson completed")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "")
	assert.Error(t, err)
}
