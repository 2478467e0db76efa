// Package plate defines the core identifiers for a plate imaging dataset:
// plates, well coordinates, timepoints, channels, and the image records that
// tie them to files on disk.
package plate

import "fmt"

// Channel is the imaging modality of a file.
type Channel int

const (
	// Brightfield is the default channel when no GFP marker is present.
	Brightfield Channel = iota
	// GFP is the fluorescence overlay channel.
	GFP
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case GFP:
		return "gfp"
	default:
		return "brightfield"
	}
}

// Well is a single sample position on a plate, addressed by a letter row
// ('A'..'H') and a numeric column (1..12).
type Well struct {
	Row byte
	Col int
}

// String formats the well as its canonical token, e.g. "A7".
func (w Well) String() string {
	return fmt.Sprintf("%c%d", w.Row, w.Col)
}

// Less orders wells row-major: A1, A2, ..., A12, B1, ..., H12.
func (w Well) Less(o Well) bool {
	if w.Row != o.Row {
		return w.Row < o.Row
	}
	return w.Col < o.Col
}

// Timepoint is an elapsed-duration marker, normalized to total minutes.
// Two raw tokens that denote the same duration (e.g. "01d00h00m" and
// "1d0h0m") are the same Timepoint.
type Timepoint int

// NewTimepoint builds a Timepoint from day/hour/minute components.
func NewTimepoint(days, hours, minutes int) Timepoint {
	return Timepoint(days*1440 + hours*60 + minutes)
}

// Minutes returns the total elapsed minutes.
func (t Timepoint) Minutes() int { return int(t) }

// String renders the canonical token form, e.g. "12d23h59m".
func (t Timepoint) String() string {
	m := int(t)
	return fmt.Sprintf("%dd%dh%dm", m/1440, (m%1440)/60, m%60)
}

// ImageRecord is the atomic index entry: one image file identified by its
// plate, well, timepoint, and channel.
type ImageRecord struct {
	Plate     string
	Well      Well
	Timepoint Timepoint
	Channel   Channel
	Path      string
}

// RecordKey is the identity of an ImageRecord, independent of its file path.
// It is comparable and used as a cache key.
type RecordKey struct {
	Plate     string
	Well      Well
	Timepoint Timepoint
	Channel   Channel
}

// Key returns the record's identity.
func (r ImageRecord) Key() RecordKey {
	return RecordKey{Plate: r.Plate, Well: r.Well, Timepoint: r.Timepoint, Channel: r.Channel}
}

// String formats the key for logs and cache key construction.
func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Plate, k.Well, k.Timepoint, k.Channel)
}

// Image is a decoded single-plane image: an 8-bit grayscale pixel buffer in
// row-major order with stride == Width.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}
