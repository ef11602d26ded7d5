package cli

import (
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Regenerate the gallery from the faces directory",
	Long: `Encode every reference image in the faces directory (<identity_key>.jpg or
.png) with the embedding server and write the gallery blob. The first face
found in each image is used; images without a face are reported and skipped.`,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := gallery.NewBuilder(a.cfg.FacesDir, a.detector, a.logger).ReferenceImages()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No reference images in %s; writing an empty gallery\n", a.cfg.FacesDir)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Encoding faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	gs := gallery.NewStore(a.cfg.GalleryPath, gallery.Empty, a.logger)
	report, err := a.identityService(gs).RebuildGallery(ctx, func(file string) {
		bar.Describe("Encoding " + filepath.Base(file))
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, sk := range report.Skipped {
		fmt.Fprintf(out, "  skipped %s: %s\n", filepath.Base(sk.File), sk.Reason)
	}
	fmt.Fprintf(out, "Gallery written to %s: %d of %d images encoded\n",
		a.cfg.GalleryPath, report.Encoded, report.Scanned)
	return nil
}
