package session

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/camera"
	"github.com/BrandonDHaskell/facegate/internal/imaging"
)

// Status is a snapshot of the controller.
type Status struct {
	State      State      `json:"state"`
	SessionID  string     `json:"session_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	Frames     int        `json:"frames"`
	Granted    int        `json:"granted"`
	StopReason StopReason `json:"stop_reason,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// SourceOpener opens the camera for a new session.
type SourceOpener func() (camera.Source, error)

// ControllerConfig holds the parameters for NewController.
type ControllerConfig struct {
	Open      SourceOpener
	Processor *Processor
	Gallery   Reloader
	Logger    *zap.Logger

	// OnStateChange is called after every Start and every stop, outside
	// the controller lock.
	OnStateChange func(Status)

	// FrameQuality is the JPEG quality of LatestFrame. Defaults to 80.
	FrameQuality int
}

type running struct {
	id     string
	cmds   chan Command
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller runs at most one session at a time. Start, Stop and Reload
// are messages to the session goroutine; nothing polls shared flags.
type Controller struct {
	cfg    ControllerConfig
	logger *zap.Logger

	mu      sync.Mutex
	cur     *running
	status  Status
	lastErr error
	latest  []byte
	raw     image.Image
}

// captureQuality keeps enrollment captures close to the camera image.
const captureQuality = 95

func NewController(cfg ControllerConfig) *Controller {
	if cfg.FrameQuality <= 0 {
		cfg.FrameQuality = 80
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{cfg: cfg, logger: logger}
}

// Start opens the camera and launches a session. The session outlives ctx;
// use Stop or Close to end it. Failing to open the camera is ErrCameraRead.
func (c *Controller) Start(ctx context.Context) (Status, error) {
	c.mu.Lock()
	if c.cur != nil {
		st := c.status
		c.mu.Unlock()
		return st, ErrAlreadyRunning
	}

	src, err := c.cfg.Open()
	if err != nil {
		c.mu.Unlock()
		return Status{}, fmt.Errorf("%w: open camera: %v", ErrCameraRead, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &running{
		id:     uuid.NewString(),
		cmds:   make(chan Command, 4),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	now := time.Now().UTC()
	c.cur = r
	c.latest = nil
	c.raw = nil
	c.lastErr = nil
	c.status = Status{State: Running, SessionID: r.id, StartedAt: &now}
	st := c.status
	c.mu.Unlock()

	loop := &Loop{
		ID:      r.id,
		Source:  src,
		Proc:    c.cfg.Processor,
		Gallery: c.cfg.Gallery,
		Logger:  c.logger,
		OnFrame: c.onFrame,
	}
	c.logger.Info("session started", zap.String("session", r.id))
	c.notify(st)

	go c.run(runCtx, r, loop)
	return st, nil
}

func (c *Controller) run(ctx context.Context, r *running, loop *Loop) {
	defer close(r.done)
	defer r.cancel()

	sum, err := loop.Run(ctx, r.cmds)
	if cerr := loop.Source.Close(); cerr != nil {
		c.logger.Warn("camera close failed", zap.Error(cerr))
	}

	now := time.Now().UTC()
	c.mu.Lock()
	c.cur = nil
	c.status.State = Stopped
	c.status.StoppedAt = &now
	c.status.StopReason = sum.Reason
	if err != nil {
		c.status.LastError = err.Error()
	}
	c.lastErr = err
	st := c.status
	c.mu.Unlock()

	fields := []zap.Field{
		zap.String("session", r.id),
		zap.String("reason", string(sum.Reason)),
		zap.Int("frames", sum.Frames),
	}
	if err != nil {
		c.logger.Error("session stopped", append(fields, zap.Error(err))...)
	} else {
		c.logger.Info("session stopped", fields...)
	}
	c.notify(st)
}

func (c *Controller) onFrame(res FrameResult) {
	jpg, err := imaging.EncodeJPEG(res.Annotated, c.cfg.FrameQuality)
	if err != nil {
		c.logger.Warn("encode preview frame failed", zap.Error(err))
	}

	c.mu.Lock()
	c.status.Frames++
	c.status.Granted += res.Granted
	if jpg != nil {
		c.latest = jpg
	}
	if res.Frame != nil {
		c.raw = res.Frame
	}
	c.mu.Unlock()
}

// Stop sends Quit and waits for the session to end or ctx to expire.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	r := c.cur
	c.mu.Unlock()
	if r == nil {
		return ErrNotRunning
	}

	select {
	case r.cmds <- Command{Kind: Quit}:
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload asks the running session to reload the gallery between frames and
// returns the reload outcome. A failed reload does not stop the session.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	r := c.cur
	c.mu.Unlock()
	if r == nil {
		return ErrNotRunning
	}

	replyCh := make(chan error, 1)
	select {
	case r.cmds <- Command{Kind: Reload, Reply: replyCh}:
	case <-r.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-replyCh:
		return err
	case <-r.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the current session, if any, has ended.
func (c *Controller) Wait(ctx context.Context) (Status, error) {
	c.mu.Lock()
	r := c.cur
	c.mu.Unlock()
	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return c.Status(), ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.lastErr
}

// Close cancels any running session without waiting for a frame boundary.
func (c *Controller) Close() {
	c.mu.Lock()
	r := c.cur
	c.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LatestFrame returns the most recent annotated frame as JPEG.
func (c *Controller) LatestFrame() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.latest != nil
}

// CaptureFrame returns the last unannotated camera frame as JPEG. It
// outlives the session that read it, so a user can be enrolled right after
// stopping. ErrNoFrame means no frame was processed since the last Start.
func (c *Controller) CaptureFrame() ([]byte, error) {
	c.mu.Lock()
	raw := c.raw
	c.mu.Unlock()
	if raw == nil {
		return nil, ErrNoFrame
	}
	return imaging.EncodeJPEG(raw, captureQuality)
}

func (c *Controller) notify(st Status) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(st)
	}
}
