// Package index builds and queries the hierarchical plate -> well ->
// timepoint -> channel mapping for a scanned image folder.
package index

import (
	"errors"
	"fmt"
	"sort"

	"github.com/incuview/viewer/internal/plate"
)

// ErrEmptyDataset is returned by Build when a folder selection yields no
// usable image records at all.
var ErrEmptyDataset = errors.New("no usable image records in dataset")

// ErrNotFound is returned when a query targets a plate, well, timepoint, or
// channel combination absent from the index. Callers treat it as "no such
// step", typically a navigation no-op.
var ErrNotFound = errors.New("not found")

// Diagnostic reports a file that was skipped during the scan, either because
// it failed to parse or because it duplicated an already-indexed record.
type Diagnostic struct {
	Path string
	Err  error
}

type tcKey struct {
	tp plate.Timepoint
	ch plate.Channel
}

type wellData struct {
	timepoints []plate.Timepoint
	records    map[tcKey]plate.ImageRecord
}

type plateData struct {
	wells map[plate.Well]*wellData
	order []plate.Well
}

// Index is the immutable dataset index. It is built once per folder
// selection and never patched; re-selecting a folder builds a fresh Index.
type Index struct {
	plates map[string]*plateData
	order  []string
	diags  []Diagnostic
}

// Build parses every path into an ImageRecord and accumulates the hierarchy.
// Files that fail to parse are skipped and reported as diagnostics, not
// fatal. Duplicate (plate, well, timepoint, channel) tuples keep the
// first-seen record and report the rest as warnings; paths are sorted
// lexicographically up front so the winner does not depend on file-system
// listing order.
func Build(paths []string) (*Index, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	idx := &Index{plates: make(map[string]*plateData)}
	for _, p := range sorted {
		rec, err := plate.Parse(p)
		if err != nil {
			idx.diags = append(idx.diags, Diagnostic{Path: p, Err: err})
			continue
		}
		idx.insert(rec)
	}

	if len(idx.plates) == 0 {
		return nil, fmt.Errorf("%w (%d files scanned, %d unparseable)",
			ErrEmptyDataset, len(paths), len(idx.diags))
	}

	idx.finalize()
	return idx, nil
}

func (idx *Index) insert(rec plate.ImageRecord) {
	pd, ok := idx.plates[rec.Plate]
	if !ok {
		pd = &plateData{wells: make(map[plate.Well]*wellData)}
		idx.plates[rec.Plate] = pd
	}
	wd, ok := pd.wells[rec.Well]
	if !ok {
		wd = &wellData{records: make(map[tcKey]plate.ImageRecord)}
		pd.wells[rec.Well] = wd
	}

	key := tcKey{tp: rec.Timepoint, ch: rec.Channel}
	if prev, dup := wd.records[key]; dup {
		idx.diags = append(idx.diags, Diagnostic{
			Path: rec.Path,
			Err:  fmt.Errorf("duplicate record for %s: keeping %s", rec.Key(), prev.Path),
		})
		return
	}
	wd.records[key] = rec
}

func (idx *Index) finalize() {
	idx.order = make([]string, 0, len(idx.plates))
	for id := range idx.plates {
		idx.order = append(idx.order, id)
	}
	sort.Strings(idx.order)

	for _, pd := range idx.plates {
		pd.order = make([]plate.Well, 0, len(pd.wells))
		for w := range pd.wells {
			pd.order = append(pd.order, w)
		}
		sort.Slice(pd.order, func(i, j int) bool { return pd.order[i].Less(pd.order[j]) })

		for _, wd := range pd.wells {
			seen := make(map[plate.Timepoint]struct{})
			for key := range wd.records {
				if _, ok := seen[key.tp]; ok {
					continue
				}
				seen[key.tp] = struct{}{}
				wd.timepoints = append(wd.timepoints, key.tp)
			}
			sort.Slice(wd.timepoints, func(i, j int) bool { return wd.timepoints[i] < wd.timepoints[j] })
		}
	}
}

// Diagnostics returns the skipped-file reports collected during Build.
func (idx *Index) Diagnostics() []Diagnostic { return idx.diags }

// Plates returns all plate identifiers, sorted lexicographically.
func (idx *Index) Plates() []string { return idx.order }

// PlateOrdinal returns the 1-based position of a plate in the sorted plate
// list, used to build export clone identifiers.
func (idx *Index) PlateOrdinal(plateID string) (int, bool) {
	for i, id := range idx.order {
		if id == plateID {
			return i + 1, true
		}
	}
	return 0, false
}

// Wells returns the wells of a plate that have at least one record, in
// row-major order. The result is nil for an unknown plate.
func (idx *Index) Wells(plateID string) []plate.Well {
	pd, ok := idx.plates[plateID]
	if !ok {
		return nil
	}
	return pd.order
}

// Timepoints returns a well's timepoints in ascending elapsed-minutes order.
func (idx *Index) Timepoints(plateID string, w plate.Well) []plate.Timepoint {
	wd, ok := idx.well(plateID, w)
	if !ok {
		return nil
	}
	return wd.timepoints
}

func (idx *Index) well(plateID string, w plate.Well) (*wellData, bool) {
	pd, ok := idx.plates[plateID]
	if !ok {
		return nil, false
	}
	wd, ok := pd.wells[w]
	return wd, ok
}

// NextWell returns the row-major successor of w within its plate's well set,
// clamping at the last well (the same well is returned at the boundary).
func (idx *Index) NextWell(plateID string, w plate.Well) (plate.Well, error) {
	return idx.stepWell(plateID, w, 1)
}

// PrevWell returns the row-major predecessor of w, clamping at the first well.
func (idx *Index) PrevWell(plateID string, w plate.Well) (plate.Well, error) {
	return idx.stepWell(plateID, w, -1)
}

func (idx *Index) stepWell(plateID string, w plate.Well, dir int) (plate.Well, error) {
	pd, ok := idx.plates[plateID]
	if !ok {
		return plate.Well{}, ErrNotFound
	}
	pos := -1
	for i, cand := range pd.order {
		if cand == w {
			pos = i
			break
		}
	}
	if pos < 0 {
		return plate.Well{}, ErrNotFound
	}
	next := pos + dir
	if next < 0 || next >= len(pd.order) {
		return w, nil
	}
	return pd.order[next], nil
}

// NextTimepoint returns the successor timepoint for a well, clamping at the
// last timepoint.
func (idx *Index) NextTimepoint(plateID string, w plate.Well, tp plate.Timepoint) (plate.Timepoint, error) {
	return idx.stepTimepoint(plateID, w, tp, 1)
}

// PrevTimepoint returns the predecessor timepoint, clamping at the first.
func (idx *Index) PrevTimepoint(plateID string, w plate.Well, tp plate.Timepoint) (plate.Timepoint, error) {
	return idx.stepTimepoint(plateID, w, tp, -1)
}

func (idx *Index) stepTimepoint(plateID string, w plate.Well, tp plate.Timepoint, dir int) (plate.Timepoint, error) {
	wd, ok := idx.well(plateID, w)
	if !ok {
		return 0, ErrNotFound
	}
	pos := sort.Search(len(wd.timepoints), func(i int) bool { return wd.timepoints[i] >= tp })
	if pos >= len(wd.timepoints) || wd.timepoints[pos] != tp {
		return 0, ErrNotFound
	}
	next := pos + dir
	if next < 0 || next >= len(wd.timepoints) {
		return tp, nil
	}
	return wd.timepoints[next], nil
}

// HasChannel reports whether a record exists for the given channel at the
// given plate, well, and timepoint.
func (idx *Index) HasChannel(plateID string, w plate.Well, tp plate.Timepoint, ch plate.Channel) bool {
	wd, ok := idx.well(plateID, w)
	if !ok {
		return false
	}
	_, ok = wd.records[tcKey{tp: tp, ch: ch}]
	return ok
}

// Record returns the ImageRecord for the given coordinates, or ErrNotFound.
func (idx *Index) Record(plateID string, w plate.Well, tp plate.Timepoint, ch plate.Channel) (plate.ImageRecord, error) {
	wd, ok := idx.well(plateID, w)
	if !ok {
		return plate.ImageRecord{}, ErrNotFound
	}
	rec, ok := wd.records[tcKey{tp: tp, ch: ch}]
	if !ok {
		return plate.ImageRecord{}, ErrNotFound
	}
	return rec, nil
}

// WellRecords returns every record for a well across all timepoints and
// channels, in ascending timepoint order with Brightfield before GFP. Used to
// pre-warm the image cache when a well is opened.
func (idx *Index) WellRecords(plateID string, w plate.Well) []plate.ImageRecord {
	wd, ok := idx.well(plateID, w)
	if !ok {
		return nil
	}
	out := make([]plate.ImageRecord, 0, len(wd.records))
	for _, tp := range wd.timepoints {
		for _, ch := range []plate.Channel{plate.Brightfield, plate.GFP} {
			if rec, ok := wd.records[tcKey{tp: tp, ch: ch}]; ok {
				out = append(out, rec)
			}
		}
	}
	return out
}

// DefaultWell returns the first well of the first plate, which is pinned into
// the image cache at load time so the viewer opens with no latency.
func (idx *Index) DefaultWell() (string, plate.Well, error) {
	if len(idx.order) == 0 {
		return "", plate.Well{}, ErrNotFound
	}
	plateID := idx.order[0]
	wells := idx.plates[plateID].order
	if len(wells) == 0 {
		return "", plate.Well{}, ErrNotFound
	}
	return plateID, wells[0], nil
}
