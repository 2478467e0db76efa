// Package cache provides the bounded store of decoded well images.
package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/incuview/viewer/internal/plate"
)

// Decoder is the external decode collaborator: given a file path it returns
// a single-plane pixel buffer.
type Decoder interface {
	Decode(path string) (*plate.Image, error)
}

// DecodeError reports a failed decode. Failures are not cached; a subsequent
// Get for the same record retries the decode.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Config contains image cache configuration.
type Config struct {
	MaxImages int // max resident decoded images (LRU capacity)
	Workers   int // decode worker pool size
}

type decodeTask struct {
	rec  plate.ImageRecord
	done chan struct{}
	img  *plate.Image
	err  error
}

// Manager is a bounded LRU store of decoded images keyed by record identity.
// Decoding runs on a fixed worker pool; at most one decode is in flight per
// key, and concurrent Gets for the same key await the same result.
type Manager struct {
	images  *lru.Cache[plate.RecordKey, *plate.Image]
	decoder Decoder

	mu       sync.Mutex
	inflight map[plate.RecordKey]*decodeTask

	queue    chan *decodeTask
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewManager creates the image cache and starts its decode workers.
func NewManager(cfg Config, dec Decoder) (*Manager, error) {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	images, err := lru.New[plate.RecordKey, *plate.Image](cfg.MaxImages)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}

	m := &Manager{
		images:   images,
		decoder:  dec,
		inflight: make(map[plate.RecordKey]*decodeTask),
		queue:    make(chan *decodeTask, 256),
	}
	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m, nil
}

// Get returns the decoded image for a record, decoding on a miss. A hit
// refreshes the entry's recency. Cancelling the context abandons the wait;
// the decode itself still completes and populates the cache.
func (m *Manager) Get(ctx context.Context, rec plate.ImageRecord) (*plate.Image, error) {
	if img, ok := m.images.Get(rec.Key()); ok {
		return img, nil
	}

	task, err := m.submit(rec)
	if err != nil {
		return nil, err
	}
	select {
	case <-task.done:
		return task.img, task.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prefetch enqueues decodes for records not yet resident, without waiting
// for the results. Used to pin the default well at load time and to pre-warm
// a well when it is opened.
func (m *Manager) Prefetch(recs []plate.ImageRecord) {
	for _, rec := range recs {
		if m.images.Contains(rec.Key()) {
			continue
		}
		// Queue-full prefetches are dropped; on-demand Get will retry.
		m.submit(rec)
	}
}

// submit returns the in-flight task for a key, creating and enqueueing one
// if none exists.
func (m *Manager) submit(rec plate.ImageRecord) (*decodeTask, error) {
	key := rec.Key()

	m.mu.Lock()
	if task, ok := m.inflight[key]; ok {
		m.mu.Unlock()
		return task, nil
	}
	task := &decodeTask{rec: rec, done: make(chan struct{})}
	m.inflight[key] = task
	m.mu.Unlock()

	select {
	case m.queue <- task:
		return task, nil
	default:
		m.mu.Lock()
		delete(m.inflight, key)
		m.mu.Unlock()
		return nil, fmt.Errorf("decode queue full for %s", key)
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for task := range m.queue {
		m.run(task)
	}
}

func (m *Manager) run(task *decodeTask) {
	key := task.rec.Key()

	img, err := m.decoder.Decode(task.rec.Path)
	if err != nil {
		task.err = &DecodeError{Path: task.rec.Path, Err: err}
	} else {
		task.img = img
		m.images.Add(key, img)
	}

	m.mu.Lock()
	delete(m.inflight, key)
	m.mu.Unlock()
	close(task.done)
}

// Contains reports residency without refreshing recency.
func (m *Manager) Contains(rec plate.ImageRecord) bool {
	return m.images.Contains(rec.Key())
}

// Len returns the number of resident decoded images.
func (m *Manager) Len() int { return m.images.Len() }

// Purge drops every resident image. Used on session teardown.
func (m *Manager) Purge() { m.images.Purge() }

// Close stops the decode workers. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.queue)
		m.wg.Wait()
	})
}
