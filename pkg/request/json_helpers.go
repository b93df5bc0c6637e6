package request

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mo-amir99/lms-progress-server/pkg/apperrors"
)

// ParamUUID reads a path parameter as a UUID.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Validation(fmt.Sprintf("Invalid %s.", name), err).
			WithFields(map[string]string{name: "must be a UUID"})
	}
	return id, nil
}

// ParseUUIDs converts a list of strings into UUIDs, reporting the first bad entry.
func ParseUUIDs(field string, values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for i, raw := range values {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("Invalid %s.", field), err).
				WithFields(map[string]string{fmt.Sprintf("%s[%d]", field, i): "must be a UUID"})
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReadString trims the input if it is a string and returns an error otherwise.
func ReadString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", fmt.Errorf("string is empty")
		}
		return trimmed, nil
	default:
		return "", fmt.Errorf("value is not a string")
	}
}

// ReadInt converts JSON numbers (float64) to int when possible.
func ReadInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("value is not an integer")
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("value is not a number")
	}
}

// ReadBool asserts that the value is a boolean.
func ReadBool(value interface{}) (bool, error) {
	v, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("value is not a boolean")
	}
	return v, nil
}
