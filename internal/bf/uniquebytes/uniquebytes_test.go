package uniquebytes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTouch(t *testing.T) {
	tests := []struct {
		name    string
		touches [][2]uint64
		added   []uint64
		count   uint64
		pages   int
	}{
		{
			name:    "single word",
			touches: [][2]uint64{{0x100, 8}},
			added:   []uint64{8},
			count:   8,
			pages:   1,
		},
		{
			name:    "repeat adds nothing",
			touches: [][2]uint64{{0x100, 8}, {0x100, 8}},
			added:   []uint64{8, 0},
			count:   8,
			pages:   1,
		},
		{
			name:    "overlap counts the new part",
			touches: [][2]uint64{{0x100, 8}, {0x104, 8}},
			added:   []uint64{8, 4},
			count:   12,
			pages:   1,
		},
		{
			name:    "crosses word boundary",
			touches: [][2]uint64{{60, 8}},
			added:   []uint64{8},
			count:   8,
			pages:   1,
		},
		{
			name:    "crosses page boundary",
			touches: [][2]uint64{{pageSize - 4, 8}},
			added:   []uint64{8},
			count:   8,
			pages:   2,
		},
		{
			name:    "large span",
			touches: [][2]uint64{{0, 3 * pageSize}, {pageSize, 16}},
			added:   []uint64{3 * pageSize, 0},
			count:   3 * pageSize,
			pages:   3,
		},
		{
			name:    "zero length",
			touches: [][2]uint64{{0x40, 0}},
			added:   []uint64{0},
			count:   0,
			pages:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			for i, tc := range tt.touches {
				assert.Equal(t, tt.added[i], s.Touch(tc[0], tc[1]), "touch %d", i)
			}
			assert.Equal(t, tt.count, s.Count())
			assert.Equal(t, tt.pages, s.Pages())
		})
	}
}

func TestContainsAndReset(t *testing.T) {
	s := New()
	s.Touch(0x2000, 4)
	assert.True(t, s.Contains(0x2000))
	assert.True(t, s.Contains(0x2003))
	assert.False(t, s.Contains(0x2004))
	assert.False(t, s.Contains(0x9000))

	s.Reset()
	assert.False(t, s.Contains(0x2000))
	assert.Zero(t, s.Count())
}

func TestTouchStopsAtTopOfAddressSpace(t *testing.T) {
	s := New()
	top := ^uint64(0)
	assert.Equal(t, uint64(8), s.Touch(top-7, top))
	assert.True(t, s.Contains(top))
	assert.Equal(t, uint64(8), s.Count())
}
