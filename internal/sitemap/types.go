// Package sitemap defines the Map data model: the sealed, immutable binary
// graph produced for a single domain, its invariants, and the flag/feature
// layout that the rest of Cortex reads and writes. It holds no acquisition
// or network logic; construction happens in internal/mapbuilder.
package sitemap

import (
	"time"

	"github.com/bits-and-blooms/bitset"
)

// FeatureDims is the fixed width of every node's feature vector.
const FeatureDims = 128

// PageType enumerates the 16 stable page classes. Numeric codes are part of
// the on-disk format and must never be renumbered.
type PageType uint8

// Canonical PageType codes. 0x00 is reserved/invalid.
const (
	PageTypeUnknown         PageType = 0x00
	PageTypeHome            PageType = 0x01
	PageTypeProductListing  PageType = 0x02
	PageTypeSearchResults   PageType = 0x03
	PageTypeProductDetail   PageType = 0x04
	PageTypeCart            PageType = 0x05
	PageTypeArticle         PageType = 0x06
	PageTypeDocumentation   PageType = 0x07
	PageTypeLogin           PageType = 0x08
	PageTypeCheckout        PageType = 0x09
	PageTypeProfile         PageType = 0x0A
	PageTypeAPIEndpoint     PageType = 0x0B
	PageTypeMedia           PageType = 0x0C
	PageTypeForm            PageType = 0x0D
	PageTypeDashboard       PageType = 0x0E
	PageTypeError           PageType = 0x0F
	PageTypeOther           PageType = 0x10
)

// pageTypeCount is the number of non-zero enum values, also the width of the
// one-hot region (dims 0..pageTypeCount-1).
const pageTypeCount = 16

// String renders a human-readable page type name, used in logs and service
// responses.
func (p PageType) String() string {
	switch p {
	case PageTypeHome:
		return "home"
	case PageTypeProductListing:
		return "product_listing"
	case PageTypeSearchResults:
		return "search_results"
	case PageTypeProductDetail:
		return "product_detail"
	case PageTypeCart:
		return "cart"
	case PageTypeArticle:
		return "article"
	case PageTypeDocumentation:
		return "documentation"
	case PageTypeLogin:
		return "login"
	case PageTypeCheckout:
		return "checkout"
	case PageTypeProfile:
		return "profile"
	case PageTypeAPIEndpoint:
		return "api_endpoint"
	case PageTypeMedia:
		return "media"
	case PageTypeForm:
		return "form"
	case PageTypeDashboard:
		return "dashboard"
	case PageTypeError:
		return "error"
	case PageTypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the 16 canonical, non-zero codes.
func (p PageType) Valid() bool {
	return p >= PageTypeHome && p <= PageTypeOther
}

// OneHotIndex returns the dims-0..15 slot this PageType occupies, or -1 for
// PageTypeUnknown.
func (p PageType) OneHotIndex() int {
	if !p.Valid() {
		return -1
	}
	return int(p) - 1
}

// Node-level flag bits (NodeFlags), the per-node flags[u] bitset. Bits
// 10-31 are reserved and always zero in a sealed Map.
const (
	FlagRendered uint = iota
	FlagHTTPStatusOK
	FlagAuthRequired
	FlagHasPrice
	FlagHasRating
	FlagHasMedia
	FlagBlocked
	FlagEstimated
	FlagCookieBannerDismissed
	FlagPartialOwner // reserved for future multi-owner graphs
	flagReservedStart
)

// NodeFlagCount is the number of defined flag bits.
const NodeFlagCount = flagReservedStart

// NodeFlags wraps a 32-bit flag set for a single node, backed by
// bits-and-blooms/bitset so flag tests read as Test(FlagX) rather than
// hand-rolled shifts.
type NodeFlags struct {
	bits *bitset.BitSet
}

// NewNodeFlags returns an all-clear flag set.
func NewNodeFlags() NodeFlags {
	return NodeFlags{bits: bitset.New(32)}
}

// NodeFlagsFromUint32 reconstructs a NodeFlags from its serialized form.
func NodeFlagsFromUint32(v uint32) NodeFlags {
	b := bitset.New(32)
	for i := uint(0); i < 32; i++ {
		if v&(1<<i) != 0 {
			b.Set(i)
		}
	}
	return NodeFlags{bits: b}
}

// Set flips bit on.
func (f NodeFlags) Set(bit uint) NodeFlags {
	f.bits.Set(bit)
	return f
}

// Clear flips bit off.
func (f NodeFlags) Clear(bit uint) NodeFlags {
	f.bits.Clear(bit)
	return f
}

// Test reports whether bit is set.
func (f NodeFlags) Test(bit uint) bool {
	if f.bits == nil {
		return false
	}
	return f.bits.Test(bit)
}

// Uint32 serializes the flag set to its on-disk fixed-width form.
func (f NodeFlags) Uint32() uint32 {
	if f.bits == nil {
		return 0
	}
	var v uint32
	for i := uint(0); i < 32; i++ {
		if f.bits.Test(i) {
			v |= 1 << i
		}
	}
	return v
}

// Feature vector dimension assignments. Exact per-index placement within
// a group is an implementation decision recorded in DESIGN.md (dims 0-15
// are reserved purely for the page_type one-hot; confidence/authority/
// load_time live in the content and trust groups instead of competing for
// the one-hot slots).
const (
	// 0-15: one-hot PageType, see PageType.OneHotIndex.

	DimWordCount    = 16
	DimHeadingCount = 17
	DimImageCount   = 18
	DimLinkDensity  = 19
	DimFormCount    = 20
	DimTableCount   = 21
	DimURLDepth     = 22
	DimLoadTimeMs   = 23
	// 24-30 reserved.
	DimTopicTFIDFStart = 31
	DimTopicTFIDFCount = 16 // dims 31-46 inclusive
	// 47 reserved.

	DimPrice            = 48
	DimOriginalPrice    = 49
	DimDiscount         = 50
	DimAvailability     = 51
	DimRating           = 52
	DimReviewCount      = 53
	DimShipping         = 54
	DimSellerReputation = 55
	// 56-63 reserved.

	DimOutboundLinks   = 64
	DimPaginationDepth = 65
	DimBreadcrumbDepth = 66
	DimNavItems        = 67
	DimSearchAvailable = 68
	DimFilterCount     = 69
	DimSortOptions     = 70
	// 71-79 reserved.

	DimTLS                  = 80
	DimDomainAge             = 81
	DimPIIExposure           = 82
	DimTrackerCount          = 83
	DimAuthorityScore        = 84
	DimDarkPatternIndicators = 85
	// 86-95 reserved.

	DimActionCount            = 96
	DimSafeActionRatio        = 97
	DimCautiousActionRatio    = 98
	DimDestructiveActionRatio = 99
	DimActionAuthRequired     = 100
	DimFormCompleteness       = 101
	// 102-111 reserved.

	DimLoginState      = 112
	DimSessionDuration = 113
	DimCartValue       = 114
	DimABVariant       = 115
	// 116-127 reserved: session-private, always zeroed on privacy-stripped Maps.
)

// SessionDimsStart and SessionDimsEnd bound the session group (112-127),
// which must be zeroed whenever a Map is privacy-stripped.
const (
	SessionDimsStart = 112
	SessionDimsEnd   = 127
)

// Action describes one executable operation discovered on a page.
type Action struct {
	OpcodeCategory  string
	OpcodeVariant   string
	SelectorOrEndpoint string
	BrowserRequired bool
	ParamsSchema    string // JSON schema text, may be empty
}

// ActionSlice is an offset+length window into the flat Actions table,
// indexed per node.
type ActionSlice struct {
	Offset uint32
	Length uint32
}

// EdgeKind enumerates the kinds of directed edges between nodes.
type EdgeKind uint16

// Supported edge kinds.
const (
	EdgeKindLink          EdgeKind = iota // outbound <a href> navigation
	EdgeKindFormSubmit                    // form/action submission target
	EdgeKindPagination                    // prev/next pagination link
)

// Edge is one directed record in the CSR edge table.
type Edge struct {
	Target         uint32
	Weight         float32
	Kind           EdgeKind
	RequiresAction bool
	ActionRef      uint8 // index into the owning node's ActionSlice, or 0xFF if none
}

// NoActionRef marks an Edge with no associated action.
const NoActionRef = 0xFF

// Clusters holds optional k-means output cached on a sealed Map.
type Clusters struct {
	ClusterID []uint32               // per-node cluster assignment
	Centroid  [][FeatureDims]float32 // per-cluster centroid vector
}

// Map is a sealed, immutable graph for one domain. All parallel arrays are
// indexed by node index u in [0, NodeCount). Map values are safe for
// concurrent read-only use by multiple goroutines once returned from
// mapbuilder.Seal or Open; nothing below ever mutates a Map in place.
type Map struct {
	Domain          string
	CreatedAt       time.Time
	FormatVersion   uint16
	Partial         bool
	PrivacyStripped bool
	NodeCount       uint32
	EdgeCount       uint32
	ActionCount     uint32
	CRC32           uint32

	URL         []string
	PageTypes   []PageType
	Confidence  []float32
	Features    [][FeatureDims]float32
	Flags       []NodeFlags
	ActionSlice []ActionSlice

	// EdgeIndex has NodeCount+1 entries; EdgeIndex[u]..EdgeIndex[u+1] is the
	// slice of Edges leaving node u.
	EdgeIndex []uint32
	Edges     []Edge

	Actions []Action

	Clusters *Clusters
}

// NodeEdges returns the CSR slice of edges leaving node u.
func (m *Map) NodeEdges(u uint32) []Edge {
	if int(u)+1 >= len(m.EdgeIndex) {
		return nil
	}
	return m.Edges[m.EdgeIndex[u]:m.EdgeIndex[u+1]]
}

// NodeActions returns the actions attached to node u.
func (m *Map) NodeActions(u uint32) []Action {
	if int(u) >= len(m.ActionSlice) {
		return nil
	}
	s := m.ActionSlice[u]
	end := s.Offset + s.Length
	if end > uint32(len(m.Actions)) {
		end = uint32(len(m.Actions))
	}
	return m.Actions[s.Offset:end]
}
