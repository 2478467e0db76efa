// Package annotation stores per-well classification labels and serializes
// them for export.
package annotation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/incuview/viewer/internal/plate"
)

// Label is a well's classification. None means unannotated.
type Label int

const (
	None Label = iota
	Singlet
	Doublet
	Inconclusive
)

// String returns the export form of the label; None renders empty.
func (l Label) String() string {
	switch l {
	case Singlet:
		return "singlet"
	case Doublet:
		return "doublet"
	case Inconclusive:
		return "inconclusive"
	default:
		return ""
	}
}

// ParseLabel converts an export-form string back to a Label.
func ParseLabel(s string) (Label, error) {
	switch s {
	case "singlet":
		return Singlet, nil
	case "doublet":
		return Doublet, nil
	case "inconclusive":
		return Inconclusive, nil
	case "", "none":
		return None, nil
	}
	return None, fmt.Errorf("unknown annotation label %q", s)
}

// Record is one export row: a clone display identifier (plate ordinal plus
// well coordinate, e.g. "1A1") and its label.
type Record struct {
	Clone string
	Label Label
}

type wellKey struct {
	plate string
	well  plate.Well
}

// Store holds the session's annotations. Pure key-value semantics: last
// write wins, no history.
type Store struct {
	mu      sync.RWMutex
	labels  map[wellKey]Label
	ordinal map[string]int
}

// NewStore creates an annotation store. plateOrder is the dataset's sorted
// plate list; a plate's 1-based position in it forms the clone identifier.
func NewStore(plateOrder []string) *Store {
	ordinal := make(map[string]int, len(plateOrder))
	for i, id := range plateOrder {
		ordinal[id] = i + 1
	}
	return &Store{
		labels:  make(map[wellKey]Label),
		ordinal: ordinal,
	}
}

// Set records a well's label. Setting None clears the annotation.
func (s *Store) Set(plateID string, w plate.Well, l Label) {
	key := wellKey{plate: plateID, well: w}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == None {
		delete(s.labels, key)
		return
	}
	s.labels[key] = l
}

// Get returns a well's label, defaulting to None.
func (s *Store) Get(plateID string, w plate.Well) Label {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels[wellKey{plate: plateID, well: w}]
}

// ExportAll returns one record per annotated well, ordered by plate ordinal
// then row-major well coordinate. Unannotated wells never appear.
func (s *Store) ExportAll() []Record {
	s.mu.RLock()
	keys := make([]wellKey, 0, len(s.labels))
	for key := range s.labels {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		oi, oj := s.ordinal[keys[i].plate], s.ordinal[keys[j].plate]
		if oi != oj {
			return oi < oj
		}
		return keys[i].well.Less(keys[j].well)
	})

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(keys))
	for _, key := range keys {
		l, ok := s.labels[key]
		if !ok || l == None {
			continue
		}
		out = append(out, Record{
			Clone: fmt.Sprintf("%d%s", s.ordinal[key.plate], key.well),
			Label: l,
		})
	}
	return out
}
