package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// tifPattern matches .tif files case-insensitively at any depth.
const tifPattern = "**/*.[tT][iI][fF]"

// ScanFolder lists the image files under root, recursively. Only files with
// a case-insensitive .tif extension are considered part of the dataset.
func ScanFolder(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan folder: %s is not a directory", root)
	}

	matches, err := doublestar.Glob(os.DirFS(root), tifPattern)
	if err != nil {
		return nil, fmt.Errorf("scan folder: %w", err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(root, filepath.FromSlash(m)))
	}
	sort.Strings(paths)
	return paths, nil
}
