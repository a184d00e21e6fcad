package reusedist

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrA = 0x1000
	addrB = 0x1008
	addrC = 0x1010
	addrD = 0x1018
)

type access struct {
	addr    uint64
	dist    uint64
	outcome Outcome
}

func TestTrackerSequences(t *testing.T) {
	tests := []struct {
		name  string
		max   uint64
		steps []access
	}{
		{
			name: "single access is a first touch",
			steps: []access{
				{addrA, 0, FirstTouch},
			},
		},
		{
			name: "ABA gives distance one",
			steps: []access{
				{addrA, 0, FirstTouch},
				{addrB, 0, FirstTouch},
				{addrA, 1, Distance},
			},
		},
		{
			name: "immediate reuse is distance zero",
			steps: []access{
				{addrA, 0, FirstTouch},
				{addrA, 0, Distance},
			},
		},
		{
			name: "repeats count once",
			steps: []access{
				{addrA, 0, FirstTouch},
				{addrB, 0, FirstTouch},
				{addrB, 0, Distance},
				{addrC, 0, FirstTouch},
				{addrB, 1, Distance},
				{addrA, 2, Distance},
			},
		},
		{
			name: "max two clamps ABCDA",
			max:  2,
			steps: []access{
				{addrA, 0, FirstTouch},
				{addrB, 0, FirstTouch},
				{addrC, 0, FirstTouch},
				{addrD, 0, FirstTouch},
				{addrA, 0, ExceedsMax},
			},
		},
		{
			name: "distance equal to max is exact",
			max:  2,
			steps: []access{
				{addrA, 0, FirstTouch},
				{addrB, 0, FirstTouch},
				{addrC, 0, FirstTouch},
				{addrA, 2, Distance},
			},
		},
		{
			name: "evicted address tracked again after overflow",
			max:  1,
			steps: []access{
				{addrA, 0, FirstTouch},
				{addrB, 0, FirstTouch},
				{addrC, 0, FirstTouch},
				{addrA, 0, ExceedsMax},
				{addrA, 0, Distance},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(tt.max)
			for i, st := range tt.steps {
				dist, outcome := tr.Access(st.addr)
				assert.Equal(t, st.outcome, outcome, "step %d", i)
				if st.outcome == Distance {
					assert.Equal(t, st.dist, dist, "step %d", i)
				}
				if tt.max > 0 {
					assert.LessOrEqual(t, uint64(tr.WindowLen()), tt.max+1)
				}
			}
		})
	}
}

func TestTrackerMatchesBruteForce(t *testing.T) {
	addrs := make([]uint64, 0, 2000)
	x := uint64(7)
	for i := 0; i < cap(addrs); i++ {
		x = x*6364136223846793005 + 1442695040888963407
		addrs = append(addrs, (x>>33)%97)
	}

	for _, max := range []uint64{0, 5, 40} {
		tr := New(max)
		for i, a := range addrs {
			dist, outcome := tr.Access(a)

			want, first := bruteForce(addrs[:i], a)
			switch {
			case first:
				require.Equal(t, FirstTouch, outcome, "max %d step %d", max, i)
			case max > 0 && want > max:
				require.Equal(t, ExceedsMax, outcome, "max %d step %d", max, i)
			default:
				require.Equal(t, Distance, outcome, "max %d step %d", max, i)
				require.Equal(t, want, dist, "max %d step %d", max, i)
			}
		}
	}
}

// bruteForce counts distinct addresses since the last access to a.
func bruteForce(history []uint64, a uint64) (uint64, bool) {
	distinct := make(map[uint64]struct{})
	for i := len(history) - 1; i >= 0; i-- {
		if history[i] == a {
			return uint64(len(distinct)), false
		}
		distinct[history[i]] = struct{}{}
	}
	return 0, true
}

func TestHistogram(t *testing.T) {
	tr := New(0)
	for _, a := range []uint64{addrA, addrB, addrA, addrB, addrA, addrA} {
		tr.Access(a)
	}
	h := tr.Histogram()
	assert.Equal(t, uint64(2), h.FirstTouches())
	assert.Equal(t, uint64(3), h.Count(1))
	assert.Equal(t, uint64(1), h.Count(0))
	assert.Equal(t, []Bucket{{0, 1}, {1, 3}}, h.Buckets())
	assert.Equal(t, 1.0, h.Median())
	assert.InDelta(t, 0.75, h.Mean(), 1e-9)

	s := h.Summary()
	assert.Equal(t, uint64(2), s.FirstTouch)
	assert.Equal(t, 1.0, s.Median)
}

func TestHistogramEmpty(t *testing.T) {
	h := NewHistogram()
	assert.True(t, math.IsNaN(h.Median()))
	assert.True(t, math.IsNaN(h.Mean()))
	s := h.Summary()
	assert.Zero(t, s.Median)
	assert.Empty(t, s.Buckets)
}

func TestTreap(t *testing.T) {
	tr := newTreap()
	for _, k := range []uint64{5, 1, 9, 3, 7} {
		tr.Insert(k)
	}
	assert.Equal(t, 5, tr.Len())
	assert.Equal(t, 2, tr.CountGreater(5))
	assert.Equal(t, 5, tr.CountGreater(0))
	assert.Equal(t, 0, tr.CountGreater(9))

	assert.True(t, tr.Delete(5))
	assert.False(t, tr.Delete(5))
	assert.Equal(t, 4, tr.Len())

	m, ok := tr.Min()
	require.True(t, ok)
	assert.Equal(t, uint64(1), m)
}

func TestReset(t *testing.T) {
	tr := New(3)
	tr.Access(addrA)
	tr.Reset()
	_, outcome := tr.Access(addrA)
	assert.Equal(t, FirstTouch, outcome)
	assert.Equal(t, uint64(3), tr.Max())
	assert.Equal(t, uint64(1), tr.Histogram().FirstTouches())
}

func TestWindowStaysBoundedWhileEvictedAreRemembered(t *testing.T) {
	tr := New(2)
	for a := uint64(0); a < 100; a++ {
		_, out := tr.Access(a)
		require.Equal(t, FirstTouch, out)
		assert.LessOrEqual(t, tr.WindowLen(), 3)
	}
	assert.Len(t, tr.last, 3)
	assert.Len(t, tr.byTime, 3)
	assert.Len(t, tr.seen, 97)

	_, out := tr.Access(0)
	assert.Equal(t, ExceedsMax, out)
	assert.LessOrEqual(t, tr.WindowLen(), 3)
}
