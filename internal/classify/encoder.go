package classify

import (
	"math"

	"github.com/cortexmap/cortex/internal/sitemap"
)

// sitemapTopicDims mirrors sitemap.DimTopicTFIDFCount; kept as a local
// constant so vocab.go doesn't need to import sitemap just for one integer.
const sitemapTopicDims = 16

// Encode deterministically maps Signals plus a classification Verdict onto
// the fixed [128]float32 vector every sealed node carries.
// It never panics and never emits NaN/Inf: every group except the raw
// price dims (DimPrice, DimOriginalPrice) is normalized into a bounded
// range, and absent fields simply score 0 (the corresponding
// NodeFlags bit, not this vector, records whether a value was observed).
func Encode(s Signals, v Verdict) [sitemap.FeatureDims]float32 {
	var f [sitemap.FeatureDims]float32

	if idx := v.PageType.OneHotIndex(); idx >= 0 {
		f[idx] = 1
	}

	f[sitemap.DimWordCount] = logScale(float64(s.WordCount), 2000)
	f[sitemap.DimHeadingCount] = logScale(float64(s.HeadingCount), 50)
	f[sitemap.DimImageCount] = logScale(float64(s.ImageCount), 100)
	f[sitemap.DimLinkDensity] = float32(clamp01(s.LinkDensity))
	f[sitemap.DimFormCount] = logScale(float64(s.FormCount), 10)
	f[sitemap.DimTableCount] = logScale(float64(s.TableCount), 10)
	f[sitemap.DimURLDepth] = logScale(float64(s.URLDepth), 10)
	f[sitemap.DimLoadTimeMs] = float32(clamp01(s.LoadTimeMs / 10000))

	topics := topicVector(s.Text, s.WordCount)
	for i := 0; i < sitemap.DimTopicTFIDFCount && i < len(topics); i++ {
		f[sitemap.DimTopicTFIDFStart+i] = float32(clamp01(topics[i]))
	}

	if s.HasPrice {
		f[sitemap.DimPrice] = float32(s.Price)
		f[sitemap.DimOriginalPrice] = float32(s.OriginalPrice)
		f[sitemap.DimDiscount] = float32(clamp01(s.Discount))
		f[sitemap.DimAvailability] = float32(clamp01(s.Availability))
	}
	if s.HasRating {
		f[sitemap.DimRating] = float32(clamp01(s.Rating / 5))
		f[sitemap.DimReviewCount] = logScale(float64(s.ReviewCount), 10000)
	}
	f[sitemap.DimShipping] = logScale(s.Shipping, 100)
	f[sitemap.DimSellerReputation] = float32(clamp01(s.SellerReputation))

	f[sitemap.DimOutboundLinks] = logScale(float64(s.OutboundLinks), 200)
	f[sitemap.DimPaginationDepth] = logScale(float64(s.PaginationDepth), 50)
	f[sitemap.DimBreadcrumbDepth] = logScale(float64(s.BreadcrumbDepth), 10)
	f[sitemap.DimNavItems] = logScale(float64(s.NavItems), 50)
	f[sitemap.DimSearchAvailable] = boolDim(s.SearchAvailable)
	f[sitemap.DimFilterCount] = logScale(float64(s.FilterCount), 20)
	f[sitemap.DimSortOptions] = logScale(float64(s.SortOptions), 10)

	f[sitemap.DimTLS] = boolDim(s.TLS)
	f[sitemap.DimDomainAge] = float32(clamp01(s.DomainAgeDays / 7300))
	f[sitemap.DimPIIExposure] = float32(clamp01(s.PIIExposure))
	f[sitemap.DimTrackerCount] = logScale(float64(s.TrackerCount), 30)
	f[sitemap.DimAuthorityScore] = float32(clamp01(s.AuthorityScore))
	f[sitemap.DimDarkPatternIndicators] = float32(clamp01(s.DarkPatternIndicators))

	f[sitemap.DimActionCount] = logScale(float64(s.ActionCount), 50)
	f[sitemap.DimSafeActionRatio] = float32(clamp01(s.SafeActionRatio))
	f[sitemap.DimCautiousActionRatio] = float32(clamp01(s.CautiousActionRatio))
	f[sitemap.DimDestructiveActionRatio] = float32(clamp01(s.DestructiveActionRatio))
	f[sitemap.DimActionAuthRequired] = boolDim(s.ActionAuthRequired)
	f[sitemap.DimFormCompleteness] = float32(clamp01(s.FormCompleteness))

	f[sitemap.DimLoginState] = boolDim(s.LoginState)
	f[sitemap.DimSessionDuration] = float32(clamp01(s.SessionDurationSec / 3600))
	f[sitemap.DimCartValue] = logScale(s.CartValue, 1000)
	f[sitemap.DimABVariant] = float32(clamp01(s.ABVariant))

	return f
}

// logScale compresses an unbounded non-negative count into [0, 1] via
// log1p, so that a page with 10,000 words doesn't dominate a feature vector
// compared to one with 100 the way a raw linear scale would.
func logScale(v, max float64) float32 {
	if v <= 0 || max <= 0 {
		return 0
	}
	scaled := math.Log1p(v) / math.Log1p(max)
	return float32(clamp01(scaled))
}

func boolDim(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// DeriveFlags sets the NodeFlags bits that correspond to observed-but-not-
// encoded signals (has_price/has_rating/auth_required/etc.), leaving every
// other bit untouched so callers can set FlagRendered/FlagHTTPStatusOK
// themselves before or after calling this.
func DeriveFlags(s Signals, flags sitemap.NodeFlags) sitemap.NodeFlags {
	if s.HasPrice {
		flags = flags.Set(sitemap.FlagHasPrice)
	}
	if s.HasRating {
		flags = flags.Set(sitemap.FlagHasRating)
	}
	if s.ImageCount > 0 {
		flags = flags.Set(sitemap.FlagHasMedia)
	}
	if s.ActionAuthRequired || s.HasLoginForm {
		flags = flags.Set(sitemap.FlagAuthRequired)
	}
	return flags
}
