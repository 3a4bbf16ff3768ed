// Package evidence normalizes heterogeneous evidence records into canonical
// string keys. Output order mirrors input order; sorting is the fingerprint
// engine's responsibility, kept separate so normalization stays reusable for
// display purposes.
package evidence

import (
	"fmt"

	"canopy/internal/claim/models"
	dErrors "canopy/pkg/domain-errors"
)

// ExtractKeys yields exactly one string key per evidence item, preferring the
// content identifier and falling back to the retrieval URL. An item with
// neither is malformed and aborts normalization.
func ExtractKeys(items []models.EvidenceItem) ([]string, error) {
	keys := make([]string, 0, len(items))
	for i, item := range items {
		switch {
		case item.CID != "":
			keys = append(keys, item.CID)
		case item.URL != "":
			keys = append(keys, item.URL)
		default:
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("evidence item %d has neither content identifier nor URL", i))
		}
	}
	return keys, nil
}
