package decision_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/facegate/internal/apperrors"
	"github.com/BrandonDHaskell/facegate/internal/facegate/decision"
	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/match"
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

type lookupMap map[string]types.Identity

func (m lookupMap) LookupIdentity(_ context.Context, key string) (types.Identity, error) {
	ident, ok := m[key]
	if !ok {
		return types.Identity{}, apperrors.ErrNotFound
	}
	return ident, nil
}

type failingLookup struct{ err error }

func (f failingLookup) LookupIdentity(context.Context, string) (types.Identity, error) {
	return types.Identity{}, f.err
}

var people = lookupMap{
	"alice": {Key: "alice", Name: "Alice Smith", Status: types.StatusActive},
	"bob":   {Key: "bob", Name: "Bob Jones", Status: types.StatusInactive},
}

func twoPeople(t *testing.T) *gallery.Gallery {
	t.Helper()
	g, err := gallery.New([][]float64{{0, 0}, {10, 10}}, []string{"alice", "bob"})
	require.NoError(t, err)
	return g
}

func TestDecide_EmptyGalleryIsUnknown(t *testing.T) {
	eng := decision.NewEngine(decision.DefaultThreshold)
	res, ok := match.New(match.DefaultTolerance).Match([]float64{0, 0}, gallery.Empty)

	v, err := eng.Decide(context.Background(), res, ok, gallery.Empty, people)
	require.NoError(t, err)
	assert.Equal(t, decision.DeniedUnknown, v.Kind)
	assert.Equal(t, types.UnknownIdentity, v.EventKey())
	assert.Equal(t, "UNKNOWN", v.Label())
}

func TestDecide_ExactMatchActiveIsGranted(t *testing.T) {
	g := twoPeople(t)
	res, ok := match.New(match.DefaultTolerance).Match([]float64{0, 0}, g)

	v, err := decision.NewEngine(decision.DefaultThreshold).Decide(context.Background(), res, ok, g, people)
	require.NoError(t, err)
	assert.Equal(t, decision.Granted, v.Kind)
	assert.Equal(t, "alice", v.IdentityKey)
	assert.Equal(t, "Alice Smith", v.Name)
	assert.Equal(t, 1.0, v.Confidence)
	assert.Equal(t, "alice", v.EventKey())
	assert.Equal(t, "Alice Smith", v.Label())
}

func TestDecide_ThresholdIsStrict(t *testing.T) {
	g := twoPeople(t)
	eng := decision.NewEngine(0.6)

	// Confidence exactly 0.6 (distance 0.4) is not granted.
	atThreshold := match.Result{Index: 0, Distance: 1 - 0.6, IsMatch: true}
	require.Equal(t, 0.6, atThreshold.Confidence())
	v, err := eng.Decide(context.Background(), atThreshold, true, g, people)
	require.NoError(t, err)
	assert.Equal(t, decision.DeniedUnknown, v.Kind)

	above := match.Result{Index: 0, Distance: 1 - 0.600001, IsMatch: true}
	v, err = eng.Decide(context.Background(), above, true, g, people)
	require.NoError(t, err)
	assert.Equal(t, decision.Granted, v.Kind)
}

func TestDecide_ToleranceFlagIsRequired(t *testing.T) {
	g := twoPeople(t)
	res := match.Result{Index: 0, Distance: 0.1, IsMatch: false}

	v, err := decision.NewEngine(0.6).Decide(context.Background(), res, true, g, people)
	require.NoError(t, err)
	assert.Equal(t, decision.DeniedUnknown, v.Kind)
}

func TestDecide_NegativeConfidenceIsUnknown(t *testing.T) {
	g := twoPeople(t)
	res := match.Result{Index: 0, Distance: 1.7, IsMatch: true}

	v, err := decision.NewEngine(0.1).Decide(context.Background(), res, true, g, people)
	require.NoError(t, err)
	assert.Equal(t, decision.DeniedUnknown, v.Kind)
}

func TestDecide_InactiveIdentityIsNeverGranted(t *testing.T) {
	g := twoPeople(t)
	res, ok := match.New(match.DefaultTolerance).Match([]float64{10, 10}, g)

	v, err := decision.NewEngine(decision.DefaultThreshold).Decide(context.Background(), res, ok, g, people)
	require.NoError(t, err)
	assert.Equal(t, decision.DeniedInactive, v.Kind)
	assert.False(t, v.Granted())
	assert.Equal(t, "bob", v.IdentityKey)
	assert.Equal(t, "bob", v.EventKey())
	assert.Equal(t, "INACTIVE", v.Label())
}

func TestDecide_OrphanedGalleryKeyIsUnknown(t *testing.T) {
	g, err := gallery.New([][]float64{{0, 0}}, []string{"ghost"})
	require.NoError(t, err)
	res, ok := match.New(match.DefaultTolerance).Match([]float64{0, 0}, g)

	v, err := decision.NewEngine(decision.DefaultThreshold).Decide(context.Background(), res, ok, g, people)
	require.NoError(t, err)
	assert.Equal(t, decision.DeniedUnknown, v.Kind)
}

func TestDecide_LookupFailureIsUnknownWithError(t *testing.T) {
	g := twoPeople(t)
	res, ok := match.New(match.DefaultTolerance).Match([]float64{0, 0}, g)
	boom := errors.New("database is locked")

	v, err := decision.NewEngine(decision.DefaultThreshold).Decide(context.Background(), res, ok, g, failingLookup{boom})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, decision.DeniedUnknown, v.Kind)
}
