// Package session owns the in-memory state for one folder selection. All
// four stateful stores live here and are discarded together when a new
// folder is selected.
package session

import (
	"log"
	"time"

	"github.com/incuview/viewer/internal/annotation"
	"github.com/incuview/viewer/internal/cache"
	"github.com/incuview/viewer/internal/config"
	"github.com/incuview/viewer/internal/index"
	"github.com/incuview/viewer/internal/render"
	"github.com/incuview/viewer/internal/service"
	"github.com/incuview/viewer/internal/viewport"
)

// Session is the explicit context object for one open dataset. It is passed
// by reference to whatever drives it; there are no ambient singletons.
type Session struct {
	Folder      string
	Index       *index.Index
	Images      *cache.Manager
	Viewports   *viewport.Store
	Annotations *annotation.Store
	View        *service.ViewService
}

// New scans folder, builds the index, and wires up the stores. The default
// well (first well of first plate) is opened and pinned into the image cache
// so the viewer starts with no latency.
func New(cfg *config.Config, folder string, dec cache.Decoder) (*Session, error) {
	paths, err := index.ScanFolder(folder)
	if err != nil {
		return nil, err
	}

	idx, err := index.Build(paths)
	if err != nil {
		return nil, err
	}
	for _, d := range idx.Diagnostics() {
		log.Printf("[Session] skipped %s: %v", d.Path, d.Err)
	}
	log.Printf("[Session] indexed %d plate(s) from %d file(s)", len(idx.Plates()), len(paths))

	images, err := cache.NewManager(cache.Config{
		MaxImages: cfg.Cache.MaxImages,
		Workers:   cfg.Decode.Workers,
	}, dec)
	if err != nil {
		return nil, err
	}

	viewports := viewport.NewStore()
	annotations := annotation.NewStore(idx.Plates())
	renderer := render.NewRenderer(render.Config{ThumbnailSize: cfg.Render.ThumbnailSize})

	view, err := service.NewViewService(service.ViewServiceConfig{
		Index:         idx,
		Cache:         images,
		Viewports:     viewports,
		Annotations:   annotations,
		Renderer:      renderer,
		RenderCacheMB: cfg.Cache.RenderSizeMB,
		RenderTTL:     time.Duration(cfg.Cache.RenderTTLMinutes) * time.Minute,
	})
	if err != nil {
		images.Close()
		return nil, err
	}

	if err := view.OpenDefault(); err != nil {
		images.Close()
		view.Close()
		return nil, err
	}

	return &Session{
		Folder:      folder,
		Index:       idx,
		Images:      images,
		Viewports:   viewports,
		Annotations: annotations,
		View:        view,
	}, nil
}

// Close tears the session down: decode workers stop and every store is
// dropped. A new folder selection builds a fresh Session; nothing carries
// over.
func (s *Session) Close() {
	s.Images.Close()
	s.Images.Purge()
	if err := s.View.Close(); err != nil {
		log.Printf("[Session] render cache close: %v", err)
	}
}
