package cache

import (
	"fmt"

	"github.com/incuview/viewer/internal/plate"
)

// ViewKey generates a render-cache key for a composited well view.
func ViewKey(key plate.RecordKey, overlay bool) string {
	if overlay {
		return fmt.Sprintf("view:%s:overlay", key)
	}
	return fmt.Sprintf("view:%s", key)
}

// ThumbKey generates a render-cache key for a well thumbnail. The annotation
// label is part of the key so the border color is never stale.
func ThumbKey(plateID string, w plate.Well, tp plate.Timepoint, label string) string {
	if label == "" {
		label = "none"
	}
	return fmt.Sprintf("thumb:%s/%s/%s:%s", plateID, w, tp, label)
}
