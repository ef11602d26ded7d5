package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/camera"
	"github.com/BrandonDHaskell/facegate/internal/facegate/session"
	"github.com/BrandonDHaskell/facegate/internal/imaging"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run a recognition session in the foreground",
	Long: `Run a recognition session against the configured camera. Type "q" and
Enter to quit or "r" and Enter to reload the gallery between frames.

With --once, a single image is recognised instead of reading the camera.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)

	sessionCmd.Flags().String("once", "", "Recognise a single image file and exit")
	sessionCmd.Flags().String("frame-out", "", "Write the latest annotated frame to this JPEG file")
	sessionCmd.Flags().Bool("quiet", false, "Only print frames that contain faces")
}

func runSession(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	gs, err := a.openGallery(ctx, false)
	if err != nil {
		return err
	}
	identities := a.identityService(gs)

	var src camera.Source
	if once := mustGetString(cmd, "once"); once != "" {
		src, err = camera.NewFileSource(once)
	} else {
		src, err = a.openCamera()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrCameraRead, err)
	}
	defer src.Close()

	out := cmd.OutOrStdout()
	frameOut := mustGetString(cmd, "frame-out")
	quiet := mustGetBool(cmd, "quiet")

	loop := &session.Loop{
		ID:      uuid.NewString(),
		Source:  src,
		Proc:    a.processor(gs, identities, a.access),
		Gallery: gs,
		Logger:  a.logger,
		OnFrame: func(res session.FrameResult) {
			if !quiet || len(res.Faces) > 0 {
				printFrame(out, res)
			}
			if frameOut != "" {
				writeFrame(a.logger, frameOut, res)
			}
		},
	}

	cmds := make(chan session.Command, 1)
	ended := make(chan struct{})
	defer close(ended)
	if mustGetString(cmd, "once") == "" {
		go readCommands(cmd.InOrStdin(), out, cmds, ended)
	}

	a.logger.Info("session started", zap.String("session", loop.ID), zap.Int("gallery_entries", gs.Current().Len()))
	sum, err := loop.Run(ctx, cmds)
	a.logger.Info("session stopped", zap.String("session", loop.ID),
		zap.String("reason", string(sum.Reason)), zap.Int("frames", sum.Frames), zap.Int("granted", sum.Granted))
	return err
}

func printFrame(w io.Writer, res session.FrameResult) {
	fmt.Fprintf(w, "%s  %s\n", res.ProcessedAt.Local().Format("15:04:05.000"), res.Banner().Text)
	for _, f := range res.Faces {
		fmt.Fprintf(w, "  %-8s %-24s dist=%.3f box=%v\n",
			f.Verdict.Kind, f.Verdict.Label(), f.Distance, f.Box)
	}
}

func writeFrame(logger *zap.Logger, path string, res session.FrameResult) {
	data, err := imaging.EncodeJPEG(res.Annotated, 85)
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		logger.Warn("write annotated frame", zap.String("path", path), zap.Error(err))
	}
}

// readCommands turns "q" and "r" lines on r into session commands. It never
// closes cmds; the loop ends on Quit or when ctx is cancelled. Once ended is
// closed nobody serves cmds any more and readCommands returns.
func readCommands(r io.Reader, w io.Writer, cmds chan<- session.Command, ended <-chan struct{}) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "q", "quit":
			select {
			case cmds <- session.Command{Kind: session.Quit}:
			case <-ended:
			}
			return
		case "r", "reload":
			reply := make(chan error, 1)
			select {
			case cmds <- session.Command{Kind: session.Reload, Reply: reply}:
			case <-ended:
				return
			}
			select {
			case err := <-reply:
				if err != nil {
					fmt.Fprintf(w, "reload failed, keeping current gallery: %v\n", err)
				} else {
					fmt.Fprintln(w, "gallery reloaded")
				}
			case <-ended:
				return
			}
		}
	}
}
