package oracle_test

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/facegate/internal/oracle"
)

func TestHTTPClient_Detect_ParsesFaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/face", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		_, hdr, err := r.FormFile("file")
		if assert.NoError(t, err) {
			assert.Equal(t, "image/jpeg", hdr.Header.Get("Content-Type"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"faces_count": 3,
			"model": "buffalo_l",
			"faces": [
				{"face_index": 0, "dim": 3, "embedding": [0.1, 0.2, 0.3], "bbox": [10, 20, 30, 40], "det_score": 0.98},
				{"face_index": 1, "dim": 3, "embedding": [0.4, 0.5, 0.6], "bbox": [1, 2], "det_score": 0.9},
				{"face_index": 2, "dim": 0, "embedding": [], "bbox": [1, 2, 3, 4], "det_score": 0.5}
			]
		}`))
	}))
	defer ts.Close()

	c := oracle.NewHTTPClient(ts.URL+"/", time.Second)
	faces, err := c.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	require.Len(t, faces, 1)

	assert.Equal(t, image.Rect(10, 20, 30, 40), faces[0].Box)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, faces[0].Embedding)
	assert.InDelta(t, 0.98, faces[0].Score, 1e-9)
}

func TestHTTPClient_Detect_NoFaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces_count": 0, "faces": []}`))
	}))
	defer ts.Close()

	faces, err := oracle.NewHTTPClient(ts.URL, time.Second).
		Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestHTTPClient_Detect_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := oracle.NewHTTPClient(ts.URL, time.Second).
		Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
