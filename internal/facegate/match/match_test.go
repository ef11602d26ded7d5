package match_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/match"
)

func mustGallery(t *testing.T, emb [][]float64, keys []string) *gallery.Gallery {
	t.Helper()
	g, err := gallery.New(emb, keys)
	require.NoError(t, err)
	return g
}

func TestMatch_EmptyGallery(t *testing.T) {
	m := match.New(match.DefaultTolerance)

	_, ok := m.Match([]float64{1, 2, 3}, gallery.Empty)
	assert.False(t, ok)

	_, ok = m.Match([]float64{1, 2, 3}, nil)
	assert.False(t, ok)
}

func TestMatch_ExactEmbedding(t *testing.T) {
	g := mustGallery(t, [][]float64{{1, 0, 0}, {0, 1, 0}}, []string{"alice", "bob"})

	res, ok := match.New(0.6).Match([]float64{0, 1, 0}, g)
	require.True(t, ok)
	assert.Equal(t, 1, res.Index)
	assert.Zero(t, res.Distance)
	assert.True(t, res.IsMatch)
	assert.Equal(t, 1.0, res.Confidence())
}

func TestMatch_PicksMinimumDistance(t *testing.T) {
	g := mustGallery(t,
		[][]float64{{0, 0}, {3, 4}, {0.3, 0.4}},
		[]string{"far", "farther", "near"},
	)

	res, ok := match.New(0.6).Match([]float64{0.6, 0.8}, g)
	require.True(t, ok)
	assert.Equal(t, 2, res.Index)
	assert.InDelta(t, 0.5, res.Distance, 1e-12)
	assert.True(t, res.IsMatch)
	assert.InDelta(t, 0.5, res.Confidence(), 1e-12)
}

func TestMatch_ToleranceIsInclusive(t *testing.T) {
	g := mustGallery(t, [][]float64{{0, 0}}, []string{"alice"})

	res, _ := match.New(5).Match([]float64{3, 4}, g)
	assert.True(t, res.IsMatch, "distance == tolerance is a match")

	res, _ = match.New(4.99).Match([]float64{3, 4}, g)
	assert.False(t, res.IsMatch)
}

func TestMatch_TieKeepsLowestIndex(t *testing.T) {
	g := mustGallery(t,
		[][]float64{{5, 5}, {1, 0}, {-1, 0}, {0, 1}},
		[]string{"x", "first", "second", "third"},
	)

	for i := 0; i < 100; i++ {
		res, ok := match.New(2).Match([]float64{0, 0}, g)
		require.True(t, ok)
		require.Equal(t, 1, res.Index)
		require.Equal(t, 1.0, res.Distance)
	}
}

func TestMatch_FarProbeHasNegativeConfidence(t *testing.T) {
	g := mustGallery(t, [][]float64{{0, 0}}, []string{"alice"})

	res, ok := match.New(0.6).Match([]float64{3, 4}, g)
	require.True(t, ok)
	assert.False(t, res.IsMatch)
	assert.Equal(t, -4.0, res.Confidence())
}

func TestEuclideanDistance_DimensionMismatch(t *testing.T) {
	assert.True(t, math.IsInf(match.EuclideanDistance([]float64{1}, []float64{1, 2}), 1))
}

func TestNew_NonPositiveToleranceUsesDefault(t *testing.T) {
	assert.Equal(t, match.DefaultTolerance, match.New(0).Tolerance())
}
