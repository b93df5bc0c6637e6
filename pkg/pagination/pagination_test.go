package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClamps(t *testing.T) {
	assert.Equal(t, Params{Page: 1, Limit: 20, Skip: 0}, New(0, 0))
	assert.Equal(t, Params{Page: 3, Limit: 100, Skip: 200}, New(3, 500))
}

func TestMetadataFrom(t *testing.T) {
	meta := MetadataFrom(45, New(2, 20))

	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNextPage)
	assert.True(t, meta.HasPrevPage)

	last := MetadataFrom(45, New(3, 20))
	assert.False(t, last.HasNextPage)
}
