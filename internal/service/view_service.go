// Package service provides the viewing logic that the display layer binds
// its keyboard commands to.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/incuview/viewer/internal/annotation"
	"github.com/incuview/viewer/internal/cache"
	"github.com/incuview/viewer/internal/export"
	"github.com/incuview/viewer/internal/index"
	"github.com/incuview/viewer/internal/plate"
	"github.com/incuview/viewer/internal/render"
	"github.com/incuview/viewer/internal/viewport"
)

// ViewServiceConfig contains view service configuration.
type ViewServiceConfig struct {
	Index       *index.Index
	Cache       *cache.Manager
	Viewports   *viewport.Store
	Annotations *annotation.Store
	Renderer    *render.Renderer

	RenderCacheMB int
	RenderTTL     time.Duration
}

// Position is the service's current cursor: which image is being displayed.
type Position struct {
	Plate     string
	Well      plate.Well
	Timepoint plate.Timepoint
	Overlay   bool
}

// ViewService tracks the active plate/well/timepoint cursor and serves
// composited views through the render cache. All cursor mutations are
// synchronous and non-blocking; image decodes are the only suspension
// points.
type ViewService struct {
	idx         *index.Index
	images      *cache.Manager
	viewports   *viewport.Store
	annotations *annotation.Store
	renderer    *render.Renderer
	renders     *bigcache.BigCache

	mu  sync.Mutex
	cur Position
}

// NewViewService creates the view service and its render byte cache.
func NewViewService(cfg ViewServiceConfig) (*ViewService, error) {
	if cfg.RenderCacheMB <= 0 {
		cfg.RenderCacheMB = 128
	}
	if cfg.RenderTTL <= 0 {
		cfg.RenderTTL = 10 * time.Minute
	}

	renderCacheConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         cfg.RenderTTL,
		CleanWindow:        cfg.RenderTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       512 * 1024,
		HardMaxCacheSize:   cfg.RenderCacheMB,
		Verbose:            false,
	}
	renders, err := bigcache.New(context.Background(), renderCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create render cache: %w", err)
	}

	return &ViewService{
		idx:         cfg.Index,
		images:      cfg.Cache,
		viewports:   cfg.Viewports,
		annotations: cfg.Annotations,
		renderer:    cfg.Renderer,
		renders:     renders,
	}, nil
}

// OpenDefault opens the first well of the first plate.
func (s *ViewService) OpenDefault() error {
	plateID, w, err := s.idx.DefaultWell()
	if err != nil {
		return err
	}
	return s.OpenWell(plateID, w)
}

// OpenWell moves the cursor to a well, starting at its earliest timepoint
// with the overlay off, and pre-warms the well's images in the background.
// The well's viewport state is untouched: it belongs to the well, not to the
// visit.
func (s *ViewService) OpenWell(plateID string, w plate.Well) error {
	tps := s.idx.Timepoints(plateID, w)
	if len(tps) == 0 {
		return index.ErrNotFound
	}

	s.mu.Lock()
	s.cur = Position{Plate: plateID, Well: w, Timepoint: tps[0]}
	s.mu.Unlock()

	s.images.Prefetch(s.idx.WellRecords(plateID, w))
	return nil
}

// Position returns the current cursor.
func (s *ViewService) Position() (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur.Plate == "" {
		return Position{}, index.ErrNotFound
	}
	return s.cur, nil
}

// NextWell moves to the row-major successor well; a no-op at the last well.
func (s *ViewService) NextWell() error { return s.stepWell(s.idx.NextWell) }

// PrevWell moves to the row-major predecessor well; a no-op at the first.
func (s *ViewService) PrevWell() error { return s.stepWell(s.idx.PrevWell) }

func (s *ViewService) stepWell(step func(string, plate.Well) (plate.Well, error)) error {
	pos, err := s.Position()
	if err != nil {
		return err
	}
	next, err := step(pos.Plate, pos.Well)
	if err != nil {
		return err
	}
	if next == pos.Well {
		return nil
	}
	return s.OpenWell(pos.Plate, next)
}

// NextTimepoint advances the cursor's timepoint; a no-op at the last one.
// Viewport state is per-well and survives the switch.
func (s *ViewService) NextTimepoint() error { return s.stepTimepoint(s.idx.NextTimepoint) }

// PrevTimepoint rewinds the cursor's timepoint; a no-op at the first one.
func (s *ViewService) PrevTimepoint() error { return s.stepTimepoint(s.idx.PrevTimepoint) }

func (s *ViewService) stepTimepoint(step func(string, plate.Well, plate.Timepoint) (plate.Timepoint, error)) error {
	pos, err := s.Position()
	if err != nil {
		return err
	}
	next, err := step(pos.Plate, pos.Well, pos.Timepoint)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur.Timepoint = next
	s.mu.Unlock()
	return nil
}

// SetOverlay switches the GFP overlay on or off. Enabling it requires a GFP
// record at the current timepoint.
func (s *ViewService) SetOverlay(on bool) error {
	pos, err := s.Position()
	if err != nil {
		return err
	}
	if on && !s.idx.HasChannel(pos.Plate, pos.Well, pos.Timepoint, plate.GFP) {
		return index.ErrNotFound
	}
	s.mu.Lock()
	s.cur.Overlay = on
	s.mu.Unlock()
	return nil
}

// ToggleOverlay flips the overlay flag and returns the new state.
func (s *ViewService) ToggleOverlay() (bool, error) {
	pos, err := s.Position()
	if err != nil {
		return false, err
	}
	if err := s.SetOverlay(!pos.Overlay); err != nil {
		return pos.Overlay, err
	}
	return !pos.Overlay, nil
}

// Annotate labels the current well. annotation.None clears the label.
func (s *ViewService) Annotate(l annotation.Label) error {
	pos, err := s.Position()
	if err != nil {
		return err
	}
	s.annotations.Set(pos.Plate, pos.Well, l)
	return nil
}

// CurrentAnnotation returns the current well's label.
func (s *ViewService) CurrentAnnotation() (annotation.Label, error) {
	pos, err := s.Position()
	if err != nil {
		return annotation.None, err
	}
	return s.annotations.Get(pos.Plate, pos.Well), nil
}

// Viewport returns the current well's viewport state, creating the default
// on first view.
func (s *ViewService) Viewport() (viewport.State, error) {
	pos, err := s.Position()
	if err != nil {
		return viewport.State{}, err
	}
	return s.viewports.GetOrCreate(pos.Plate, pos.Well), nil
}

// UpdateViewport stores the current well's viewport state.
func (s *ViewService) UpdateViewport(st viewport.State) error {
	pos, err := s.Position()
	if err != nil {
		return err
	}
	s.viewports.Update(pos.Plate, pos.Well, st)
	return nil
}

// CurrentImage returns the encoded PNG for the cursor: the brightfield base,
// composited with the GFP overlay when it is enabled.
func (s *ViewService) CurrentImage(ctx context.Context) ([]byte, error) {
	pos, err := s.Position()
	if err != nil {
		return nil, err
	}

	baseRec, err := s.idx.Record(pos.Plate, pos.Well, pos.Timepoint, plate.Brightfield)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.ViewKey(baseRec.Key(), pos.Overlay)
	if data, err := s.renders.Get(cacheKey); err == nil {
		return data, nil
	}

	base, err := s.images.Get(ctx, baseRec)
	if err != nil {
		return nil, err
	}

	var overlay *plate.Image
	if pos.Overlay {
		gfpRec, err := s.idx.Record(pos.Plate, pos.Well, pos.Timepoint, plate.GFP)
		if err != nil {
			return nil, err
		}
		overlay, err = s.images.Get(ctx, gfpRec)
		if err != nil {
			return nil, err
		}
	}

	data, err := s.renderer.RenderView(base, overlay)
	if err != nil {
		return nil, fmt.Errorf("failed to render view: %w", err)
	}

	s.renders.Set(cacheKey, data)
	return data, nil
}

// Thumbnail returns the encoded PNG thumbnail for a well: its earliest
// brightfield image scaled down, with the annotation border if labeled.
func (s *ViewService) Thumbnail(ctx context.Context, plateID string, w plate.Well) ([]byte, error) {
	tps := s.idx.Timepoints(plateID, w)
	if len(tps) == 0 {
		return nil, index.ErrNotFound
	}
	rec, err := s.idx.Record(plateID, w, tps[0], plate.Brightfield)
	if err != nil {
		return nil, err
	}

	label := s.annotations.Get(plateID, w)
	cacheKey := cache.ThumbKey(plateID, w, tps[0], label.String())
	if data, err := s.renders.Get(cacheKey); err == nil {
		return data, nil
	}

	img, err := s.images.Get(ctx, rec)
	if err != nil {
		return nil, err
	}

	data, err := s.renderer.RenderThumbnail(img, label)
	if err != nil {
		return nil, fmt.Errorf("failed to render thumbnail: %w", err)
	}

	s.renders.Set(cacheKey, data)
	return data, nil
}

// ExportAnnotations writes every annotated well to a CSV file at path.
func (s *ViewService) ExportAnnotations(path string) error {
	return export.WriteFile(path, s.annotations.ExportAll())
}

// Close releases the render cache.
func (s *ViewService) Close() error {
	return s.renders.Close()
}
