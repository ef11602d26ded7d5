// Package match finds the closest known identity for a probe embedding.
package match

import (
	"math"

	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
)

// DefaultTolerance is the largest distance still considered the same face.
const DefaultTolerance = 0.6

// Result is the best gallery entry for one probe.
type Result struct {
	Index    int
	Distance float64
	// IsMatch is Distance <= tolerance.
	IsMatch bool
}

// Confidence is 1 - Distance. It is negative once Distance exceeds 1.
func (r Result) Confidence() float64 { return 1 - r.Distance }

type Matcher struct {
	tolerance float64
}

func New(tolerance float64) Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return Matcher{tolerance: tolerance}
}

func (m Matcher) Tolerance() float64 { return m.tolerance }

// Match scans the whole gallery for the minimum Euclidean distance. Ties keep
// the lowest index. ok is false for an empty gallery.
func (m Matcher) Match(probe []float64, g *gallery.Gallery) (res Result, ok bool) {
	if g.Len() == 0 {
		return Result{}, false
	}

	best := Result{Index: -1, Distance: math.Inf(1)}
	for i := 0; i < g.Len(); i++ {
		d := EuclideanDistance(probe, g.Embedding(i))
		if best.Index < 0 || d < best.Distance {
			best.Index = i
			best.Distance = d
		}
	}
	best.IsMatch = best.Distance <= m.tolerance
	return best, true
}

// EuclideanDistance returns +Inf when the vectors differ in length.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
