package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexmap/cortex/internal/sitemap"
)

func TestEncode_OneHotMatchesPageType(t *testing.T) {
	t.Parallel()

	v := Verdict{PageType: sitemap.PageTypeProductDetail, Confidence: 0.9}
	f := Encode(Signals{}, v)

	for i := 0; i < 16; i++ {
		if i == sitemap.PageTypeProductDetail.OneHotIndex() {
			require.Equal(t, float32(1), f[i])
		} else {
			require.Equal(t, float32(0), f[i])
		}
	}
}

func TestEncode_NeverProducesNaNOrInf(t *testing.T) {
	t.Parallel()

	f := Encode(Signals{
		WordCount: -5, // defensive: a malformed upstream count must not blow up log1p
	}, Verdict{PageType: sitemap.PageTypeOther, Confidence: 0.1})

	for i, val := range f {
		require.False(t, math.IsNaN(float64(val)), "dim %d is NaN", i)
		require.False(t, math.IsInf(float64(val), 0), "dim %d is Inf", i)
	}
}

func TestEncode_AbsentPriceLeavesDimsZero(t *testing.T) {
	t.Parallel()

	f := Encode(Signals{HasPrice: false}, Verdict{PageType: sitemap.PageTypeOther})
	require.Equal(t, float32(0), f[sitemap.DimPrice])
	require.Equal(t, float32(0), f[sitemap.DimAvailability])
}

func TestEncode_PriceDimsAreRawNotLogScaled(t *testing.T) {
	t.Parallel()

	f := Encode(Signals{HasPrice: true, Price: 278, OriginalPrice: 349.99}, Verdict{PageType: sitemap.PageTypeProductDetail})
	require.Equal(t, float32(278), f[sitemap.DimPrice])
	require.Equal(t, float32(349.99), f[sitemap.DimOriginalPrice])
}

func TestEncode_SessionDimsPopulatedWhenProvided(t *testing.T) {
	t.Parallel()

	f := Encode(Signals{LoginState: true, CartValue: 42}, Verdict{PageType: sitemap.PageTypeCart})
	require.Equal(t, float32(1), f[sitemap.DimLoginState])
	require.Greater(t, f[sitemap.DimCartValue], float32(0))
}

func TestDeriveFlags_SetsObservedBits(t *testing.T) {
	t.Parallel()

	flags := DeriveFlags(Signals{HasPrice: true, HasRating: true, ImageCount: 3}, sitemap.NewNodeFlags())
	require.True(t, flags.Test(sitemap.FlagHasPrice))
	require.True(t, flags.Test(sitemap.FlagHasRating))
	require.True(t, flags.Test(sitemap.FlagHasMedia))
	require.False(t, flags.Test(sitemap.FlagAuthRequired))
}
