package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/incuview/viewer/internal/config"
	"github.com/incuview/viewer/internal/data/tiffio"
	"github.com/incuview/viewer/internal/index"
)

func writeWellTIFF(t *testing.T, dir, name string, level uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeWellTIFF(t, dir, "MEM1003_plate01_A1_1_0d12h0m.tif", 60)
	writeWellTIFF(t, dir, "MEM1003_plate01_A1_1_GFP_0d12h0m.tif", 200)
	writeWellTIFF(t, dir, "MEM1003_plate01_A2_1_0d12h0m.tif", 90)
	return dir
}

func TestNew(t *testing.T) {
	folder := newTestFolder(t)

	sess, err := New(config.DefaultConfig(), folder, tiffio.NewDecoder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sess.Close()

	if sess.Folder != folder {
		t.Errorf("expected folder %s, got %s", folder, sess.Folder)
	}

	pos, err := sess.View.Position()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Plate != "01" || pos.Well.String() != "A1" {
		t.Errorf("expected default well 01/A1, got %s/%s", pos.Plate, pos.Well)
	}

	data, err := sess.View.CurrentImage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected valid png: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("expected 8x8 view, got %v", img.Bounds())
	}
	r, _, _, _ := img.At(4, 4).RGBA()
	if uint8(r>>8) != 60 {
		t.Errorf("expected brightfield level 60, got %d", uint8(r>>8))
	}
}

func TestNew_SkipsUnparseableFiles(t *testing.T) {
	folder := newTestFolder(t)
	writeWellTIFF(t, folder, "calibration.tif", 10)

	sess, err := New(config.DefaultConfig(), folder, tiffio.NewDecoder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sess.Close()

	if got := len(sess.Index.Diagnostics()); got != 1 {
		t.Errorf("expected 1 diagnostic, got %d", got)
	}
	if got := sess.Index.Plates(); len(got) != 1 || got[0] != "01" {
		t.Errorf("expected plate 01 only, got %v", got)
	}
}

func TestNew_EmptyFolder(t *testing.T) {
	if _, err := New(config.DefaultConfig(), t.TempDir(), tiffio.NewDecoder()); !errors.Is(err, index.ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestNew_MissingFolder(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if _, err := New(config.DefaultConfig(), missing, tiffio.NewDecoder()); err == nil {
		t.Error("expected error for missing folder")
	}
}
