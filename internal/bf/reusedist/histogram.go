package reusedist

import (
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"
)

// Histogram counts accesses by reuse distance.
type Histogram struct {
	counts     map[uint64]uint64
	firstTouch uint64
	exceedsMax uint64
}

// Bucket is one exact-distance bin.
type Bucket struct {
	Distance uint64 `json:"distance"`
	Count    uint64 `json:"count"`
}

// Summary is a serializable view of a histogram.
type Summary struct {
	Buckets    []Bucket `json:"buckets"`
	FirstTouch uint64   `json:"first_touch"`
	ExceedsMax uint64   `json:"exceeds_max"`
	Median     float64  `json:"median"`
	Mean       float64  `json:"mean"`
}

// NewHistogram returns an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{counts: make(map[uint64]uint64)}
}

// Record adds one access.
func (h *Histogram) Record(dist uint64, o Outcome) {
	switch o {
	case FirstTouch:
		h.firstTouch++
	case ExceedsMax:
		h.exceedsMax++
	default:
		h.counts[dist]++
	}
}

// Count returns how many accesses had exactly dist.
func (h *Histogram) Count(dist uint64) uint64 {
	return h.counts[dist]
}

// FirstTouches returns the number of first accesses.
func (h *Histogram) FirstTouches() uint64 { return h.firstTouch }

// Overflows returns the number of accesses beyond the maximum distance.
func (h *Histogram) Overflows() uint64 { return h.exceedsMax }

// Buckets returns the exact-distance bins in ascending distance order.
func (h *Histogram) Buckets() []Bucket {
	out := make([]Bucket, 0, len(h.counts))
	for d, c := range h.counts {
		out = append(out, Bucket{Distance: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

func (h *Histogram) sample() stats.Sample {
	buckets := h.Buckets()
	s := stats.Sample{
		Xs:      make([]float64, len(buckets)),
		Weights: make([]float64, len(buckets)),
		Sorted:  true,
	}
	for i, b := range buckets {
		s.Xs[i] = float64(b.Distance)
		s.Weights[i] = float64(b.Count)
	}
	return s
}

// Median returns the weighted median of the exact distances, or NaN when
// none were recorded. First touches and overflows are not distances and
// do not take part.
func (h *Histogram) Median() float64 {
	return h.sample().Quantile(0.5)
}

// Mean returns the weighted mean of the exact distances, or NaN.
func (h *Histogram) Mean() float64 {
	if len(h.counts) == 0 {
		return math.NaN()
	}
	return h.sample().Mean()
}

// Summary returns a copy suitable for JSON encoding. NaN statistics are
// reported as zero.
func (h *Histogram) Summary() Summary {
	s := Summary{
		Buckets:    h.Buckets(),
		FirstTouch: h.firstTouch,
		ExceedsMax: h.exceedsMax,
	}
	if len(h.counts) > 0 {
		s.Median = h.Median()
		s.Mean = h.Mean()
	}
	return s
}
