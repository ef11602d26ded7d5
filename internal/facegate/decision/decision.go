// Package decision turns a match result into an admit/deny verdict.
package decision

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/facegate/internal/apperrors"
	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/match"
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

// DefaultThreshold is the confidence a match must strictly exceed.
const DefaultThreshold = 0.6

type Kind int

const (
	DeniedUnknown Kind = iota
	Granted
	DeniedInactive
)

func (k Kind) String() string {
	switch k {
	case Granted:
		return "granted"
	case DeniedInactive:
		return "denied_inactive"
	default:
		return "denied_unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Verdict is the outcome for one probe. IdentityKey and Name are empty for
// DeniedUnknown; Confidence is only set for Granted.
type Verdict struct {
	Kind        Kind    `json:"kind"`
	IdentityKey string  `json:"identity_key,omitempty"`
	Name        string  `json:"name,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

func (v Verdict) Granted() bool { return v.Kind == Granted }

// EventKey is the identity recorded in the access log.
func (v Verdict) EventKey() string {
	if v.Kind == DeniedUnknown || v.IdentityKey == "" {
		return types.UnknownIdentity
	}
	return v.IdentityKey
}

// Label is the overlay text drawn next to the face box.
func (v Verdict) Label() string {
	switch v.Kind {
	case Granted:
		return v.Name
	case DeniedInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// IdentityLookup resolves a gallery key to its identity record. A missing
// record must be reported as apperrors.ErrNotFound.
type IdentityLookup interface {
	LookupIdentity(ctx context.Context, key string) (types.Identity, error)
}

type Engine struct {
	threshold float64
}

func NewEngine(threshold float64) *Engine {
	return &Engine{threshold: threshold}
}

func (e *Engine) Threshold() float64 { return e.threshold }

// Decide requires both gates: the matcher's tolerance flag and a confidence
// strictly above the threshold. A key with no identity record is unknown.
// The returned error is non-nil only when the lookup itself failed; the
// verdict is still DeniedUnknown in that case.
func (e *Engine) Decide(
	ctx context.Context,
	res match.Result,
	ok bool,
	g *gallery.Gallery,
	lookup IdentityLookup,
) (Verdict, error) {
	if !ok || !res.IsMatch || !(res.Confidence() > e.threshold) {
		return Verdict{Kind: DeniedUnknown}, nil
	}
	if res.Index < 0 || res.Index >= g.Len() {
		return Verdict{Kind: DeniedUnknown}, nil
	}

	key := g.Key(res.Index)
	ident, err := lookup.LookupIdentity(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return Verdict{Kind: DeniedUnknown}, nil
	}
	if err != nil {
		return Verdict{Kind: DeniedUnknown}, fmt.Errorf("lookup identity %s: %w", key, err)
	}

	if !ident.Active() {
		return Verdict{Kind: DeniedInactive, IdentityKey: key, Name: ident.Name}, nil
	}
	return Verdict{
		Kind:        Granted,
		IdentityKey: key,
		Name:        ident.Name,
		Confidence:  res.Confidence(),
	}, nil
}
