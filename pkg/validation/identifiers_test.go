package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSerial(t *testing.T) {
	serial, err := NormalizeSerial("  cert-00ff00ff00ff00ff ")
	require.NoError(t, err)
	assert.Equal(t, "CERT-00FF00FF00FF00FF", serial)

	for _, bad := range []string{"", "CERT-", "CERT-00FF", "CERT-00FF00FF00FF00FG", "00FF00FF00FF00FF"} {
		_, err := NormalizeSerial(bad)
		assert.Error(t, err, bad)
	}
}
