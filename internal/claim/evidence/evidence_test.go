package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/claim/models"
	dErrors "canopy/pkg/domain-errors"
)

func TestExtractKeysPrefersCID(t *testing.T) {
	keys, err := ExtractKeys([]models.EvidenceItem{
		{CID: "bafy-1", URL: "https://ipfs.example/bafy-1"},
		{URL: "https://photos.example/plot.jpg"},
		{CID: "bafy-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bafy-1", "https://photos.example/plot.jpg", "bafy-2"}, keys)
}

func TestExtractKeysPreservesInputOrder(t *testing.T) {
	keys, err := ExtractKeys([]models.EvidenceItem{
		{CID: "z"}, {CID: "a"}, {CID: "m"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, keys, "normalizer must not sort")
}

func TestExtractKeysMalformedItem(t *testing.T) {
	_, err := ExtractKeys([]models.EvidenceItem{
		{CID: "bafy-1"},
		{},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Contains(t, err.Error(), "item 1")
}

func TestExtractKeysEmptyInput(t *testing.T) {
	keys, err := ExtractKeys(nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
