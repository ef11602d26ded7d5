package gallery_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/oracle"
)

// ── Construction ─────────────────────────────────────────────────────────────

func TestNew_RejectsUnequalSequences(t *testing.T) {
	_, err := gallery.New([][]float64{{1, 2}}, []string{"alice", "bob"})
	require.ErrorIs(t, err, gallery.ErrCorruptData)
}

func TestNew_RejectsMixedDimensions(t *testing.T) {
	_, err := gallery.New([][]float64{{1, 2}, {1, 2, 3}}, []string{"alice", "bob"})
	require.ErrorIs(t, err, gallery.ErrCorruptData)
}

func TestNew_CopiesInputs(t *testing.T) {
	emb := [][]float64{{1, 2}}
	keys := []string{"alice"}
	g, err := gallery.New(emb, keys)
	require.NoError(t, err)

	emb[0][0] = 99
	keys[0] = "mallory"

	assert.Equal(t, []float64{1, 2}, g.Embedding(0))
	assert.Equal(t, "alice", g.Key(0))
}

// ── Blob codec ───────────────────────────────────────────────────────────────

func TestUnmarshal_EmptyBlobIsEmptyGallery(t *testing.T) {
	g, err := gallery.Unmarshal(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
}

func TestMarshal_PreservesOrderAndValues(t *testing.T) {
	in, err := gallery.New(
		[][]float64{{0.5, -0.25, 1e-9}, {3, 2, 1}},
		[]string{"bob", "alice"},
	)
	require.NoError(t, err)

	out, err := gallery.Unmarshal(gallery.Marshal(in))
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"bob", "alice"}, out.Keys())
	assert.Equal(t, []float64{0.5, -0.25, 1e-9}, out.Embedding(0))
	assert.Equal(t, 3, out.Dim())
}

func TestUnmarshal_UnequalSequencesIsCorrupt(t *testing.T) {
	// One embedding, two keys.
	var emb []byte
	emb = protowire.AppendTag(emb, 1, protowire.BytesType)
	emb = protowire.AppendBytes(emb, protowire.AppendFixed64(nil, 0))

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, emb)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, "alice")
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, "bob")

	_, err := gallery.Unmarshal(b)
	require.ErrorIs(t, err, gallery.ErrCorruptData)
}

func TestUnmarshal_TruncatedIsCorrupt(t *testing.T) {
	g, err := gallery.New([][]float64{{1, 2, 3}}, []string{"alice"})
	require.NoError(t, err)
	b := gallery.Marshal(g)

	_, err = gallery.Unmarshal(b[:len(b)-3])
	require.ErrorIs(t, err, gallery.ErrCorruptData)
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	g, err := gallery.New([][]float64{{1}}, []string{"alice"})
	require.NoError(t, err)

	b := protowire.AppendTag(nil, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = append(b, gallery.Marshal(g)...)

	out, err := gallery.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, out.Keys())
}

// ── Load / Save ──────────────────────────────────────────────────────────────

func TestLoad_MissingBlob(t *testing.T) {
	_, err := gallery.Load(filepath.Join(t.TempDir(), "nope.pb"))
	require.ErrorIs(t, err, gallery.ErrNotFound)
}

func TestLoad_GarbageBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.pb")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xff, 0xff}, 0o644))

	_, err := gallery.Load(path)
	require.ErrorIs(t, err, gallery.ErrCorruptData)
}

func TestOpen_FailsWithoutBlob(t *testing.T) {
	_, err := gallery.Open(filepath.Join(t.TempDir(), "gallery.pb"), zap.NewNop())
	require.ErrorIs(t, err, gallery.ErrNotFound)
}

// ── Reload ───────────────────────────────────────────────────────────────────

func TestReload_FailureKeepsPreviousGallery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.pb")
	g, err := gallery.New([][]float64{{1, 1}}, []string{"alice"})
	require.NoError(t, err)
	require.NoError(t, gallery.Save(path, g))

	s, err := gallery.Open(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte{0x0a, 0x05, 0x01}, 0o644))
	require.ErrorIs(t, s.Reload(), gallery.ErrCorruptData)
	assert.Equal(t, []string{"alice"}, s.Current().Keys())

	require.NoError(t, os.Remove(path))
	require.ErrorIs(t, s.Reload(), gallery.ErrNotFound)
	assert.Equal(t, []string{"alice"}, s.Current().Keys())
}

func TestReload_ConcurrentReadersNeverSeeTornGallery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.pb")

	small, err := gallery.New([][]float64{{1, 1}}, []string{"a"})
	require.NoError(t, err)
	large, err := gallery.New([][]float64{{1, 1}, {2, 2}, {3, 3}}, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.NoError(t, gallery.Save(path, small))

	s, err := gallery.Open(path, zap.NewNop())
	require.NoError(t, err)

	var (
		stop atomic.Bool
		torn atomic.Int64
		wg   sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				g := s.Current()
				if len(g.Keys()) != g.Len() || (g.Len() != 1 && g.Len() != 3) {
					torn.Add(1)
				}
				for j := 0; j < g.Len(); j++ {
					if len(g.Embedding(j)) != g.Dim() {
						torn.Add(1)
					}
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		next := small
		if i%2 == 0 {
			next = large
		}
		require.NoError(t, gallery.Save(path, next))
		require.NoError(t, s.Reload())
	}
	stop.Store(true)
	wg.Wait()

	assert.Zero(t, torn.Load())
}

// ── Builder ──────────────────────────────────────────────────────────────────

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// shadeDetector reports one face whose embedding is the image's top-left
// gray value, and no face for pure black images.
func shadeDetector() oracle.Detector {
	return oracle.DetectorFunc(func(_ context.Context, img image.Image) ([]oracle.Face, error) {
		v := color.GrayModel.Convert(img.At(0, 0)).(color.Gray).Y
		if v == 0 {
			return nil, nil
		}
		return []oracle.Face{
			{Box: image.Rect(0, 0, 2, 2), Embedding: []float64{float64(v), 0}},
			{Box: image.Rect(2, 2, 4, 4), Embedding: []float64{-1, -1}},
		}, nil
	})
}

func TestBuilder_EncodesFirstFacePerImage(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "bob.png"), 20)
	writePNG(t, filepath.Join(dir, "alice.png"), 10)
	writePNG(t, filepath.Join(dir, "nobody.png"), 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not an image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	var visited []string
	b := gallery.NewBuilder(dir, shadeDetector(), zap.NewNop())
	g, report, err := b.Build(context.Background(), func(f string) { visited = append(visited, f) })
	require.NoError(t, err)

	assert.Equal(t, []string{"alice.png", "bob.png", "broken.jpg", "nobody.png"}, visited)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.Encoded)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, gallery.SkipUnreadable, report.Skipped[0].Reason)
	assert.Equal(t, gallery.SkipNoFace, report.Skipped[1].Reason)

	assert.Equal(t, []string{"alice", "bob"}, g.Keys())
	assert.Equal(t, []float64{10, 0}, g.Embedding(0))
	assert.Equal(t, []float64{20, 0}, g.Embedding(1))
}

func TestBuilder_MissingDirIsEmptyGallery(t *testing.T) {
	b := gallery.NewBuilder(filepath.Join(t.TempDir(), "missing"), shadeDetector(), zap.NewNop())
	g, report, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
	assert.Zero(t, report.Scanned)
}
