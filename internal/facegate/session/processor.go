package session

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/facegate/cooldown"
	"github.com/BrandonDHaskell/facegate/internal/facegate/decision"
	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/match"
	"github.com/BrandonDHaskell/facegate/internal/imaging"
	"github.com/BrandonDHaskell/facegate/internal/oracle"
)

// AccessRecorder persists access events. It owns timestamping and must not
// fail the frame: write errors are its own to log.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, sessionID, identityKey string, granted bool)
}

// GallerySource hands out the current gallery snapshot.
type GallerySource interface {
	Current() *gallery.Gallery
}

// ProcessorDeps holds the collaborators for NewProcessor.
type ProcessorDeps struct {
	Detector oracle.Detector
	Gallery  GallerySource
	Matcher  match.Matcher
	Engine   *decision.Engine
	Lookup   decision.IdentityLookup
	Gate     *cooldown.Gate
	Recorder AccessRecorder
	Logger   *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Processor runs one frame through detection, matching, decision and the
// cooldown gate, and renders the overlay.
type Processor struct {
	detector oracle.Detector
	gallery  GallerySource
	matcher  match.Matcher
	engine   *decision.Engine
	lookup   decision.IdentityLookup
	gate     *cooldown.Gate
	recorder AccessRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewProcessor(d ProcessorDeps) *Processor {
	p := &Processor{
		detector: d.Detector,
		gallery:  d.Gallery,
		matcher:  d.Matcher,
		engine:   d.Engine,
		lookup:   d.Lookup,
		gate:     d.Gate,
		recorder: d.Recorder,
		logger:   d.Logger,
		now:      d.Now,
	}
	if p.matcher.Tolerance() == 0 {
		p.matcher = match.New(match.DefaultTolerance)
	}
	if p.engine == nil {
		p.engine = decision.NewEngine(decision.DefaultThreshold)
	}
	if p.gate == nil {
		p.gate = cooldown.NewGate(cooldown.DefaultWindow)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// FaceResult is the outcome for one detected face.
type FaceResult struct {
	Box      image.Rectangle  `json:"box"`
	Verdict  decision.Verdict `json:"verdict"`
	Distance float64          `json:"distance"`
	// Logged is true only when the event reached the access recorder.
	Logged bool `json:"logged"`
}

type FrameResult struct {
	Faces       []FaceResult `json:"faces"`
	Granted     int          `json:"granted"`
	ProcessedAt time.Time    `json:"processed_at"`
	Annotated   *image.RGBA  `json:"-"`
	// Frame is the camera frame as read, without boxes or banner.
	Frame image.Image `json:"-"`
}

// Banner is the status line for the frame.
func (r FrameResult) Banner() imaging.Banner {
	if r.Granted > 0 {
		return imaging.Banner{
			Text:    fmt.Sprintf("ACCESS GRANTED - %d user(s) recognized", r.Granted),
			Granted: true,
		}
	}
	return imaging.Banner{Text: "ACCESS DENIED - No authorized users detected"}
}

// ProcessFrame analyses a downscaled copy of frame and draws the results on
// a full-resolution copy. An oracle error fails only this frame.
func (p *Processor) ProcessFrame(ctx context.Context, sessionID string, frame image.Image) (FrameResult, error) {
	now := p.now()
	g := p.gallery.Current()

	small := imaging.Downscale(frame, imaging.DetectionScale)
	faces, err := p.detector.Detect(ctx, small)
	if err != nil {
		return FrameResult{}, fmt.Errorf("detect faces: %w", err)
	}

	res := FrameResult{ProcessedAt: now, Faces: make([]FaceResult, 0, len(faces)), Frame: frame}
	boxes := make([]imaging.Box, 0, len(faces))

	for _, f := range faces {
		m, ok := p.matcher.Match(f.Embedding, g)
		verdict, err := p.engine.Decide(ctx, m, ok, g, p.lookup)
		if err != nil {
			p.logger.Warn("identity lookup failed", zap.Error(err))
		}

		fr := FaceResult{
			Box:      imaging.ScaleRect(f.Box, imaging.DetectionScale),
			Verdict:  verdict,
			Distance: m.Distance,
		}
		if verdict.Granted() {
			res.Granted++
		}

		switch {
		case p.recorder == nil:
			// No audit sink: leave the cooldown window to the session.
		case p.gate.TryEmit(now):
			fr.Logged = true
			p.recorder.RecordAccess(ctx, sessionID, verdict.EventKey(), verdict.Granted())
		default:
			p.logger.Debug("access event suppressed by cooldown",
				zap.String("identity", verdict.EventKey()), zap.Stringer("verdict", verdict.Kind))
		}

		res.Faces = append(res.Faces, fr)
		boxes = append(boxes, imaging.Box{Rect: fr.Box, Label: verdict.Label(), Granted: verdict.Granted()})
	}

	banner := res.Banner()
	res.Annotated = imaging.Annotate(frame, boxes, &banner)
	return res, nil
}
