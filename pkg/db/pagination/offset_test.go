package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffsetNormalize(t *testing.T) {
	assert.Equal(t, Offset{Limit: 50, Offset: 0}, Offset{Limit: 0, Offset: -3}.Normalize(0, 0))
	assert.Equal(t, Offset{Limit: 250, Offset: 10}, Offset{Limit: 1000, Offset: 10}.Normalize(50, 250))
	assert.Equal(t, Offset{Limit: 20, Offset: 5}, Offset{Limit: 20, Offset: 5}.Normalize(50, 250))
	assert.Equal(t, Offset{Limit: 10}, Offset{}.Normalize(10, 100))
}

func TestTrimOffsetPage(t *testing.T) {
	page := Offset{Limit: 2, Offset: 4}

	rows, info := TrimOffsetPage([]int{1, 2, 3}, page)
	assert.Equal(t, []int{1, 2}, rows)
	assert.True(t, info.HasMore)
	assert.Equal(t, 4, info.Offset)

	rows, info = TrimOffsetPage([]int{1}, page)
	assert.Equal(t, []int{1}, rows)
	assert.False(t, info.HasMore)
}
