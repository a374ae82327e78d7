package assets_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"registrar/internal/assets"
	"registrar/internal/config"
	"registrar/internal/logging"
	"registrar/internal/records"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newStore(t *testing.T, photoDir string, opts ...assets.Option) *assets.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.PhotoDir = photoDir
	return assets.NewStore(&cfg, logging.NewNop(), opts...)
}

func TestPhotoFromLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AU21UG-006.png"), pngBytes(t, 300, 200), 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	store := newStore(t, dir)

	data, ok := store.Photo(context.Background(), records.StudentIdentity{RegNo: "AU21UG-006"})
	if !ok {
		t.Fatal("expected photo to be found")
	}
	w, h, err := assets.Dimensions(data)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 68 || h != 85 {
		t.Fatalf("expected 68x85 box, got %dx%d", w, h)
	}
}

func TestPhotoPrefersURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes(t, 40, 40))
	}))
	defer srv.Close()

	store := newStore(t, t.TempDir(), assets.WithHTTPClient(srv.Client()))
	_, ok := store.Photo(context.Background(), records.StudentIdentity{RegNo: "R1", PhotoRef: srv.URL + "/R1.png"})
	if !ok {
		t.Fatal("expected photo from url")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one download, got %d", hits.Load())
	}
}

func TestPhotoFallsBackWhenURLFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "R1.jpg"), pngBytes(t, 10, 10), 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	store := newStore(t, dir, assets.WithHTTPClient(srv.Client()))
	if _, ok := store.Photo(context.Background(), records.StudentIdentity{RegNo: "R1", PhotoRef: srv.URL}); !ok {
		t.Fatal("expected local fallback")
	}
}

func TestPhotoAbsentOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "BAD.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	store := newStore(t, dir)
	ctx := context.Background()

	if _, ok := store.Photo(ctx, records.StudentIdentity{RegNo: "MISSING"}); ok {
		t.Fatal("expected absent photo")
	}
	if _, ok := store.Photo(ctx, records.StudentIdentity{RegNo: "BAD"}); ok {
		t.Fatal("expected corrupt photo to be reported absent")
	}
	if _, ok := store.Photo(ctx, records.StudentIdentity{RegNo: "../etc/passwd"}); ok {
		t.Fatal("expected path-like registration number to be rejected")
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := pngBytes(t, 120, 90)
	a, err := assets.Normalize(raw, 68, 85)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	b, err := assets.Normalize(raw, 68, 85)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("expected identical output for identical input")
	}
	if _, err := assets.Normalize(raw, 0, 10); err == nil {
		t.Fatal("expected error for empty box")
	}
}

func TestPlaceholder(t *testing.T) {
	w, h, err := assets.Dimensions(assets.Placeholder(63, 78))
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 63 || h != 78 {
		t.Fatalf("unexpected placeholder size %dx%d", w, h)
	}
}
