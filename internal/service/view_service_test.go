package service

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/incuview/viewer/internal/annotation"
	"github.com/incuview/viewer/internal/cache"
	"github.com/incuview/viewer/internal/index"
	"github.com/incuview/viewer/internal/plate"
	"github.com/incuview/viewer/internal/render"
	"github.com/incuview/viewer/internal/viewport"
)

type stubDecoder struct {
	width, height int
}

func (d *stubDecoder) Decode(path string) (*plate.Image, error) {
	img := &plate.Image{Width: d.width, Height: d.height, Pix: make([]uint8, d.width*d.height)}
	// Make GFP frames non-black so overlay compositing is visible.
	if strings.Contains(path, "GFP") {
		for i := range img.Pix {
			img.Pix[i] = 200
		}
	}
	return img, nil
}

func newTestService(t *testing.T) *ViewService {
	t.Helper()

	paths := []string{
		"run/MEM1003_plate01_A1_1_0d12h0m.tif",
		"run/MEM1003_plate01_A1_1_GFP_0d12h0m.tif",
		"run/MEM1003_plate01_A1_1_1d0h0m.tif",
		"run/MEM1003_plate01_A2_1_0d12h0m.tif",
		"run/MEM1003_plate02_B3_1_0d12h0m.tif",
	}
	idx, err := index.Build(paths)
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}

	images, err := cache.NewManager(cache.Config{MaxImages: 8, Workers: 2}, &stubDecoder{width: 16, height: 12})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(images.Close)

	svc, err := NewViewService(ViewServiceConfig{
		Index:       idx,
		Cache:       images,
		Viewports:   viewport.NewStore(),
		Annotations: annotation.NewStore(idx.Plates()),
		Renderer:    render.NewRenderer(render.Config{ThumbnailSize: 24}),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestOpenDefault(t *testing.T) {
	svc := newTestService(t)

	if err := svc.OpenDefault(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, err := svc.Position()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Plate != "01" || pos.Well.String() != "A1" {
		t.Errorf("expected 01/A1, got %s/%s", pos.Plate, pos.Well)
	}
	if pos.Timepoint != plate.NewTimepoint(0, 12, 0) {
		t.Errorf("expected earliest timepoint, got %s", pos.Timepoint)
	}
	if pos.Overlay {
		t.Error("expected overlay off after open")
	}
}

func TestPosition_BeforeOpen(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Position(); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWellNavigation(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}

	if err := svc.NextWell(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, _ := svc.Position()
	if pos.Well.String() != "A2" {
		t.Errorf("expected A2, got %s", pos.Well)
	}

	// A2 is the last well on plate 01; stepping further stays put.
	if err := svc.NextWell(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, _ = svc.Position()
	if pos.Well.String() != "A2" {
		t.Errorf("expected clamp at A2, got %s", pos.Well)
	}

	if err := svc.PrevWell(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, _ = svc.Position()
	if pos.Well.String() != "A1" {
		t.Errorf("expected A1, got %s", pos.Well)
	}
}

func TestWellSwitchResetsTimepointAndOverlay(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}
	if err := svc.NextTimepoint(); err != nil {
		t.Fatal(err)
	}
	if err := svc.NextWell(); err != nil {
		t.Fatal(err)
	}

	pos, _ := svc.Position()
	if pos.Timepoint != plate.NewTimepoint(0, 12, 0) {
		t.Errorf("expected earliest timepoint after well switch, got %s", pos.Timepoint)
	}
	if pos.Overlay {
		t.Error("expected overlay off after well switch")
	}
}

func TestTimepointNavigation(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}

	if err := svc.NextTimepoint(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, _ := svc.Position()
	if pos.Timepoint != plate.NewTimepoint(1, 0, 0) {
		t.Errorf("expected 1d0h0m, got %s", pos.Timepoint)
	}

	// Last timepoint clamps.
	if err := svc.NextTimepoint(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, _ = svc.Position()
	if pos.Timepoint != plate.NewTimepoint(1, 0, 0) {
		t.Errorf("expected clamp at 1d0h0m, got %s", pos.Timepoint)
	}

	if err := svc.PrevTimepoint(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, _ = svc.Position()
	if pos.Timepoint != plate.NewTimepoint(0, 12, 0) {
		t.Errorf("expected 0d12h0m, got %s", pos.Timepoint)
	}
}

func TestOverlayRequiresGFP(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}

	// A1 at 0d12h0m has a GFP frame.
	if err := svc.SetOverlay(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, _ := svc.Position()
	if !pos.Overlay {
		t.Error("expected overlay on")
	}

	// A1 at 1d0h0m has no GFP frame.
	if err := svc.SetOverlay(false); err != nil {
		t.Fatal(err)
	}
	if err := svc.NextTimepoint(); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetOverlay(true); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	pos, _ = svc.Position()
	if pos.Overlay {
		t.Error("expected overlay to stay off")
	}
}

func TestToggleOverlay(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}

	on, err := svc.ToggleOverlay()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !on {
		t.Error("expected toggle to turn overlay on")
	}
	on, err = svc.ToggleOverlay()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if on {
		t.Error("expected toggle to turn overlay off")
	}
}

func TestViewportSurvivesTimepointSwitch(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}

	want := viewport.State{Zoom: 2.5, PanX: 10, PanY: -4}
	if err := svc.UpdateViewport(want); err != nil {
		t.Fatal(err)
	}
	if err := svc.NextTimepoint(); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Viewport()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestViewportIsPerWell(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdateViewport(viewport.State{Zoom: 3, PanX: 7, PanY: 7}); err != nil {
		t.Fatal(err)
	}
	if err := svc.NextWell(); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Viewport()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != viewport.Default() {
		t.Errorf("expected default viewport for fresh well, got %+v", got)
	}
}

func TestAnnotateAndExport(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}

	if err := svc.Annotate(annotation.Singlet); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.CurrentAnnotation()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != annotation.Singlet {
		t.Errorf("expected singlet, got %v", got)
	}

	if err := svc.OpenWell("02", plate.Well{Row: 'B', Col: 3}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Annotate(annotation.Doublet); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "notes.csv")
	if err := svc.ExportAnnotations(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "clone,incucyteNote\n1A1,singlet\n2B3,doublet\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, string(data))
	}
}

func TestCurrentImage(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}

	base, err := svc.CurrentImage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(base))
	if err != nil {
		t.Fatalf("expected valid png: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 12 {
		t.Errorf("expected 16x12 view, got %v", img.Bounds())
	}

	// Repeated calls hit the render cache and return identical bytes.
	again, err := svc.CurrentImage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(base, again) {
		t.Error("expected cached render to match")
	}

	if err := svc.SetOverlay(true); err != nil {
		t.Fatal(err)
	}
	composited, err := svc.CurrentImage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal(base, composited) {
		t.Error("expected overlay to change the rendered view")
	}
}

func TestThumbnail(t *testing.T) {
	svc := newTestService(t)
	if err := svc.OpenDefault(); err != nil {
		t.Fatal(err)
	}

	w := plate.Well{Row: 'A', Col: 1}
	plain, err := svc.Thumbnail(context.Background(), "01", w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(plain))
	if err != nil {
		t.Fatalf("expected valid png: %v", err)
	}
	if img.Bounds().Dx() != 24 || img.Bounds().Dy() != 24 {
		t.Errorf("expected 24x24 thumbnail, got %v", img.Bounds())
	}

	// Labeling the well changes the thumbnail cache key and the border.
	if err := svc.Annotate(annotation.Doublet); err != nil {
		t.Fatal(err)
	}
	labeled, err := svc.Thumbnail(context.Background(), "01", w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal(plain, labeled) {
		t.Error("expected labeled thumbnail to differ")
	}
}

func TestThumbnail_UnknownWell(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Thumbnail(context.Background(), "01", plate.Well{Row: 'H', Col: 12}); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
