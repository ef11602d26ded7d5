// Package session drives the recognition pipeline over a stream of camera
// frames.
//
// A Loop processes one frame at a time and reacts to commands between
// frames. The Controller owns at most one running Loop and is the only
// thing the HTTP and CLI layers talk to.
package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/camera"
)

var (
	// ErrCameraRead ends a session: camera failures are not retried.
	ErrCameraRead     = errors.New("camera read failed")
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("no session running")
	ErrNoFrame        = errors.New("no camera frame captured yet")
)

type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type CommandKind int

const (
	Quit CommandKind = iota
	Reload
)

// Command is a control message into a running Loop. Reply, when set, gets
// exactly one value; it should be buffered.
type Command struct {
	Kind  CommandKind
	Reply chan error
}

// StopReason explains why Run returned.
type StopReason string

const (
	ReasonQuit          StopReason = "quit"
	ReasonCameraFailure StopReason = "camera_failure"
	ReasonExhausted     StopReason = "source_exhausted"
	ReasonCancelled     StopReason = "cancelled"
)

// Reloader replaces the active gallery, leaving it untouched on failure.
type Reloader interface {
	Reload() error
}

// Summary is returned by Run.
type Summary struct {
	Frames  int
	Granted int
	Reason  StopReason
}

// Loop binds a frame source to a processor for one session.
type Loop struct {
	ID      string
	Source  camera.Source
	Proc    *Processor
	Gallery Reloader
	Logger  *zap.Logger
	OnFrame func(FrameResult)
}

// Run pulls frames until a Quit command, context cancellation, the end of
// a finite source, or a camera failure. Only a camera failure is returned
// as an error, wrapping ErrCameraRead.
func (l *Loop) Run(ctx context.Context, cmds <-chan Command) (Summary, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session", l.ID))

	var sum Summary
	for {
		// Drain pending commands before each frame.
	commands:
		for {
			select {
			case cmd := <-cmds:
				if cmd.Kind == Quit {
					reply(cmd, nil)
					sum.Reason = ReasonQuit
					return sum, nil
				}
				err := l.reload(logger)
				reply(cmd, err)
			default:
				break commands
			}
		}

		if ctx.Err() != nil {
			sum.Reason = ReasonCancelled
			return sum, nil
		}

		frame, err := l.Source.Read(ctx)
		switch {
		case err == nil:
		case errors.Is(err, camera.ErrExhausted):
			sum.Reason = ReasonExhausted
			return sum, nil
		case ctx.Err() != nil:
			sum.Reason = ReasonCancelled
			return sum, nil
		default:
			logger.Error("camera read failed, stopping session", zap.Error(err))
			sum.Reason = ReasonCameraFailure
			return sum, fmt.Errorf("%w: %v", ErrCameraRead, err)
		}

		res, err := l.Proc.ProcessFrame(ctx, l.ID, frame)
		if err != nil {
			logger.Warn("frame processing failed", zap.Int("frame", sum.Frames), zap.Error(err))
			continue
		}
		sum.Frames++
		sum.Granted += res.Granted
		if l.OnFrame != nil {
			l.OnFrame(res)
		}
	}
}

func (l *Loop) reload(logger *zap.Logger) error {
	if l.Gallery == nil {
		return errors.New("gallery reload not configured")
	}
	if err := l.Gallery.Reload(); err != nil {
		logger.Warn("gallery reload failed, session continues", zap.Error(err))
		return err
	}
	return nil
}

func reply(cmd Command, err error) {
	if cmd.Reply == nil {
		return
	}
	select {
	case cmd.Reply <- err:
	default:
	}
}
