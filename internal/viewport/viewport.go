// Package viewport holds per-well zoom and pan state. State is keyed by
// (plate, well) only: switching the displayed timepoint or channel within a
// well must never reset it.
package viewport

import (
	"sync"

	"github.com/incuview/viewer/internal/plate"
)

// State is a well's zoom level and pan offset. Pan coordinates are
// image-normalized; zoom is always >= 1.0.
type State struct {
	Zoom float64
	PanX float64
	PanY float64
}

// Default is the state a well starts with on first view.
func Default() State {
	return State{Zoom: 1.0}
}

type wellKey struct {
	plate string
	well  plate.Well
}

// Store keeps viewport state for the session. It is safe for interleaved
// access from the interactive thread and background refreshes.
type Store struct {
	mu     sync.RWMutex
	states map[wellKey]State
}

// NewStore creates an empty viewport store.
func NewStore() *Store {
	return &Store{states: make(map[wellKey]State)}
}

// GetOrCreate returns the stored state for a well, creating the default on
// first access.
func (s *Store) GetOrCreate(plateID string, w plate.Well) State {
	key := wellKey{plate: plateID, well: w}

	s.mu.RLock()
	st, ok := s.states[key]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[key]; ok {
		return st
	}
	st = Default()
	s.states[key] = st
	return st
}

// Update stores a well's state. Zoom below 1.0 is clamped to 1.0.
func (s *Store) Update(plateID string, w plate.Well, st State) {
	if st.Zoom < 1.0 {
		st.Zoom = 1.0
	}
	s.mu.Lock()
	s.states[wellKey{plate: plateID, well: w}] = st
	s.mu.Unlock()
}

// Len returns the number of wells with stored state.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
