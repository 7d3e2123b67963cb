package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexmap/cortex/internal/classify"
)

func TestApplyLinkedData_ReadsOfferAndRating(t *testing.T) {
	t.Parallel()

	records := []LinkedDataRecord{
		{
			Type: "Product",
			Raw: map[string]any{
				"offers": map[string]any{
					"@type":        "Offer",
					"price":        "278.00",
					"availability": "https://schema.org/InStock",
				},
				"aggregateRating": map[string]any{
					"ratingValue": "4.5",
					"reviewCount": "120",
				},
			},
		},
	}

	var sig classify.Signals
	tracker := classify.NewFieldConfidence()
	ApplyLinkedData(records, &sig, tracker)

	require.True(t, sig.HasPrice)
	require.Equal(t, 278.0, sig.Price)
	require.Equal(t, 1.0, sig.Availability)
	require.True(t, sig.HasRating)
	require.Equal(t, 4.5, sig.Rating)
	require.Equal(t, 120, sig.ReviewCount)
}

func TestApplyLinkedData_LowerConfidenceNeverOverwrites(t *testing.T) {
	t.Parallel()

	records := []LinkedDataRecord{{
		Type: "Product",
		Raw: map[string]any{
			"offers": map[string]any{"price": "278.00"},
		},
	}}

	sig := classify.Signals{}
	tracker := classify.NewFieldConfidence()
	tracker["price"] = 0.95 // a higher-confidence layer already claimed this field

	ApplyLinkedData(records, &sig, tracker)

	require.False(t, sig.HasPrice)
	require.Zero(t, sig.Price)
}

func TestApplyLinkedData_HandlesOfferArrayAndMissingFields(t *testing.T) {
	t.Parallel()

	records := []LinkedDataRecord{{
		Type: "Product",
		Raw: map[string]any{
			"offers": []any{
				map[string]any{"price": "19.99", "availability": "OutOfStock"},
			},
		},
	}}

	var sig classify.Signals
	tracker := classify.NewFieldConfidence()
	ApplyLinkedData(records, &sig, tracker)

	require.True(t, sig.HasPrice)
	require.Equal(t, 19.99, sig.Price)
	require.Zero(t, sig.Availability)
	require.False(t, sig.HasRating)
}
