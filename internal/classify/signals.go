// Package classify turns the signals gathered by extraction, pattern
// matching, API probing, and action discovery into a (PageType, confidence)
// verdict and a dense [128]float32 feature vector, grounded on the
// weighted-threshold style of internal/crawler/detector_heuristic.go
// generalized from a single yes/no decision into a multi-class scorer.
package classify

import "github.com/cortexmap/cortex/internal/sitemap"

// Signals is the union of everything the rest of the pipeline knows about a
// page by the time classification runs: structural metrics from extraction,
// commerce/navigation/trust fields from the Pattern Engine and API Probe,
// and action counts from the Action Discoverer. Fields are left at their
// zero value when a layer never observed them; HasX flags distinguish
// "observed zero" from "never observed".
type Signals struct {
	URL      string
	Path     string
	JSONLD   []string // @type values seen on the page
	OGType   string
	Title    string
	MetaDesc string
	Text     string // visible text, used for topic TF-IDF

	WordCount    int
	HeadingCount int
	ImageCount   int
	LinkCount    int
	LinkDensity  float64
	FormCount    int
	TableCount   int
	URLDepth     int
	LoadTimeMs   float64

	HasPrice         bool
	Price            float64
	OriginalPrice    float64
	Discount         float64
	Availability     float64 // 1 = in stock, 0 = out of stock
	HasRating        bool
	Rating           float64
	ReviewCount      int
	Shipping         float64
	SellerReputation float64

	OutboundLinks   int
	PaginationDepth int
	BreadcrumbDepth int
	NavItems        int
	SearchAvailable bool
	FilterCount     int
	SortOptions     int

	TLS                    bool
	DomainAgeDays          float64
	PIIExposure            float64
	TrackerCount           int
	AuthorityScore         float64
	DarkPatternIndicators  float64

	ActionCount            int
	SafeActionRatio        float64
	CautiousActionRatio    float64
	DestructiveActionRatio float64
	ActionAuthRequired     bool
	FormCompleteness       float64

	HasLoginForm bool
	HasCartItem  bool
	HTTPStatus   int

	LoginState         bool
	SessionDurationSec float64
	CartValue          float64
	ABVariant          float64
}

// Verdict is the output of Classify: a page type with a confidence in
// [0, 1]. Confidence below minConfidence collapses PageType to Other.
type Verdict struct {
	PageType   sitemap.PageType
	Confidence float32
}
