package plate

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Parse failure kinds. A filename missing any mandatory token fails with the
// corresponding sentinel wrapped in a ParseError.
var (
	ErrMissingPlate     = errors.New("missing plate token")
	ErrMissingWell      = errors.New("missing well token")
	ErrMissingTimepoint = errors.New("missing timepoint token")
)

// ParseError reports a filename that could not be parsed into an ImageRecord.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	plateRe     = regexp.MustCompile(`(?i)plate([0-9a-z]+)`)
	wellRe      = regexp.MustCompile(`(?i)[a-h](?:1[0-2]|[1-9])`)
	timepointRe = regexp.MustCompile(`(?i)(\d+)d(\d+)h(\d+)m`)
)

// Parse extracts an ImageRecord from an image file path. Only the base name
// is inspected; surrounding tokens and their order do not matter.
//
//   - Plate: the alphanumeric run immediately following the first
//     case-insensitive "plate" token, preserved as written ("plate01" -> "01").
//   - Well: the leftmost delimited match of [A-H](1[0-2]|[1-9]),
//     case-insensitive. A candidate adjacent to another letter or digit (such
//     as the "E10" inside "MEM1003") is not a well token; requiring delimiters
//     keeps the left-to-right tie-break deterministic.
//   - Timepoint: \d+d\d+h\d+m, normalized to elapsed minutes.
//   - Channel: GFP if "gfp" appears anywhere in the name, else Brightfield.
func Parse(path string) (ImageRecord, error) {
	name := filepath.Base(path)

	plateMatch := plateRe.FindStringSubmatch(name)
	if plateMatch == nil {
		return ImageRecord{}, &ParseError{Path: path, Err: ErrMissingPlate}
	}

	well, ok := findWell(name)
	if !ok {
		return ImageRecord{}, &ParseError{Path: path, Err: ErrMissingWell}
	}

	tpMatch := timepointRe.FindStringSubmatch(name)
	if tpMatch == nil {
		return ImageRecord{}, &ParseError{Path: path, Err: ErrMissingTimepoint}
	}
	days, _ := strconv.Atoi(tpMatch[1])
	hours, _ := strconv.Atoi(tpMatch[2])
	minutes, _ := strconv.Atoi(tpMatch[3])

	channel := Brightfield
	if strings.Contains(strings.ToUpper(name), "GFP") {
		channel = GFP
	}

	return ImageRecord{
		Plate:     plateMatch[1],
		Well:      well,
		Timepoint: NewTimepoint(days, hours, minutes),
		Channel:   channel,
		Path:      path,
	}, nil
}

// ParseWell parses a standalone well token such as "A7" or "h12".
func ParseWell(s string) (Well, error) {
	if loc := wellRe.FindStringIndex(s); loc == nil || loc[0] != 0 || loc[1] != len(s) {
		return Well{}, fmt.Errorf("invalid well coordinate %q", s)
	}
	w, _ := findWell(s)
	return w, nil
}

// findWell scans left-to-right for the first well token that stands alone,
// i.e. is not butted against another alphanumeric character on either side.
func findWell(name string) (Well, bool) {
	for _, loc := range wellRe.FindAllStringIndex(name, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isAlnum(name[start-1]) {
			continue
		}
		if end < len(name) && isAlnum(name[end]) {
			continue
		}
		token := name[start:end]
		row := token[0]
		if row >= 'a' && row <= 'h' {
			row -= 'a' - 'A'
		}
		col, _ := strconv.Atoi(token[1:])
		return Well{Row: row, Col: col}, true
	}
	return Well{}, false
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
