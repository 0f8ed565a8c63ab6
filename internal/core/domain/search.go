package domain

import (
	"fmt"
	"time"
)

// SearchMode determines the search strategy
type SearchMode string

const (
	SearchModeBM25   SearchMode = "bm25"   // Lexical only
	SearchModeVector SearchMode = "vector" // Nearest-neighbor only
	SearchModeHybrid SearchMode = "hybrid" // Both, fused with RRF (default)
)

// Valid reports whether the mode is a known value.
func (m SearchMode) Valid() bool {
	switch m {
	case SearchModeBM25, SearchModeVector, SearchModeHybrid:
		return true
	}
	return false
}

// RequiresEmbedding reports whether the mode needs a query embedding.
func (m SearchMode) RequiresEmbedding() bool {
	return m == SearchModeVector || m == SearchModeHybrid
}

// SortOrder controls result ordering direction for explicit sorts.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable fields. Empty SortBy means relevance order.
const (
	SortByPrice       = "price"
	SortBySupplierAID = "supplier_aid"
)

const (
	// MaxPageSize is the hard cap on the size parameter.
	MaxPageSize = 100

	// MaxBatchQueries is the cap on queries per batch request.
	MaxBatchQueries = 10

	// DefaultRRFK is the default rank constant of the RRF formula.
	DefaultRRFK = 60

	// MaxRRFK is the hard cap on the rank constant.
	MaxRRFK = 100

	// DefaultBranchWeight is the default weight of each fusion branch.
	DefaultBranchWeight = 0.5
)

// SearchQuery is one query against the product index.
type SearchQuery struct {
	Q         string     `json:"q,omitempty"`
	Mode      SearchMode `json:"mode,omitempty"`
	Embedding []float32  `json:"embedding,omitempty"` // Precomputed query vector

	// Filters; values repeat within a field (OR) and combine across
	// fields (AND).
	Manufacturer  []string `json:"manufacturer,omitempty"`
	EclassID      []string `json:"eclass_id,omitempty"`
	EclassSegment []string `json:"eclass_segment,omitempty"` // 2-digit prefix
	OrderUnit     []string `json:"order_unit,omitempty"`
	CatalogID     []string `json:"catalog_id,omitempty"`
	PriceMin      *float64 `json:"price_min,omitempty"` // Unit price
	PriceMax      *float64 `json:"price_max,omitempty"` // Unit price
	PriceBand     string   `json:"price_band,omitempty"`
	ExactMatch    bool     `json:"exact_match,omitempty"`

	Page      int       `json:"page,omitempty"`
	Size      int       `json:"size,omitempty"`
	SortBy    string    `json:"sort_by,omitempty"`
	SortOrder SortOrder `json:"sort_order,omitempty"`

	RRFK         int     `json:"rrf_k,omitempty"`
	BM25Weight   float64 `json:"bm25_weight,omitempty"`
	VectorWeight float64 `json:"vector_weight,omitempty"`

	IncludeScores        bool `json:"include_scores,omitempty"`
	IncludeEmbeddingText bool `json:"include_embedding_text,omitempty"`
	IncludeFacets        bool `json:"include_facets,omitempty"`
}

// ApplyDefaults fills unset parameters with their documented defaults.
func (q *SearchQuery) ApplyDefaults() {
	if q.Mode == "" {
		q.Mode = SearchModeHybrid
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 {
		q.Size = 20
	}
	if q.RRFK <= 0 {
		q.RRFK = DefaultRRFK
	}
	if q.BM25Weight == 0 && q.VectorWeight == 0 {
		q.BM25Weight = DefaultBranchWeight
		q.VectorWeight = DefaultBranchWeight
	}
	if q.SortOrder == "" {
		q.SortOrder = SortAsc
	}
}

// Validate rejects malformed queries before any sub-query executes.
func (q *SearchQuery) Validate() error {
	if !q.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, q.Mode)
	}
	if q.Size > MaxPageSize {
		return fmt.Errorf("%w: size %d exceeds maximum %d", ErrInvalidQuery, q.Size, MaxPageSize)
	}
	if q.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidQuery)
	}
	if q.Q == "" && len(q.Embedding) == 0 {
		return fmt.Errorf("%w: q is required when no embedding is supplied", ErrInvalidQuery)
	}
	if q.Q == "" && q.Mode != SearchModeVector {
		return fmt.Errorf("%w: q is required for %s mode", ErrInvalidQuery, q.Mode)
	}
	if q.PriceBand != "" {
		if _, ok := PriceBandByKey(q.PriceBand); !ok {
			return fmt.Errorf("%w: unknown price band %q", ErrInvalidQuery, q.PriceBand)
		}
	}
	if q.SortOrder != SortAsc && q.SortOrder != SortDesc {
		return fmt.Errorf("%w: unknown sort order %q", ErrInvalidQuery, q.SortOrder)
	}
	switch q.SortBy {
	case "", SortByPrice, SortBySupplierAID:
	default:
		return fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, q.SortBy)
	}
	if q.RRFK < 1 || q.RRFK > MaxRRFK {
		return fmt.Errorf("%w: rrf_k must be between 1 and %d", ErrInvalidQuery, MaxRRFK)
	}
	if q.BM25Weight < 0 || q.BM25Weight > 1 {
		return fmt.Errorf("%w: bm25_weight must be between 0 and 1", ErrInvalidQuery)
	}
	if q.VectorWeight < 0 || q.VectorWeight > 1 {
		return fmt.Errorf("%w: vector_weight must be between 0 and 1", ErrInvalidQuery)
	}
	return nil
}

// SearchFilters is the resolved filter set a query applies to both branches.
type SearchFilters struct {
	Manufacturer  []string
	EclassID      []string
	EclassSegment []string
	OrderUnit     []string
	CatalogID     []string
	PriceMin      *float64 // Unit price, inclusive
	// PriceMax is the inclusive unit-price upper bound. A band's upper
	// edge therefore matches here while the band facet counts it in the
	// next bucket (range aggregations are to-exclusive).
	PriceMax *float64
}

// Filters resolves the query's structured filters, folding a price band into
// the unit-price range. Explicit price_min/price_max take precedence over the
// band's bounds.
func (q *SearchQuery) Filters() SearchFilters {
	f := SearchFilters{
		Manufacturer:  q.Manufacturer,
		EclassID:      q.EclassID,
		EclassSegment: q.EclassSegment,
		OrderUnit:     q.OrderUnit,
		CatalogID:     q.CatalogID,
		PriceMin:      q.PriceMin,
		PriceMax:      q.PriceMax,
	}
	if q.PriceBand != "" {
		if band, ok := PriceBandByKey(q.PriceBand); ok {
			if f.PriceMin == nil {
				f.PriceMin = band.From
			}
			if f.PriceMax == nil {
				f.PriceMax = band.To
			}
		}
	}
	return f
}

// PriceBand is a fixed unit-price range used for filtering and faceting.
type PriceBand struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	From  *float64 `json:"from,omitempty"`
	To    *float64 `json:"to,omitempty"`
}

func bandBound(v float64) *float64 { return &v }

// PriceBands returns the fixed unit-price bands, in ascending order.
func PriceBands() []PriceBand {
	return []PriceBand{
		{Key: "0-10", Label: "€0 - €10", From: bandBound(0), To: bandBound(10)},
		{Key: "10-50", Label: "€10 - €50", From: bandBound(10), To: bandBound(50)},
		{Key: "50-200", Label: "€50 - €200", From: bandBound(50), To: bandBound(200)},
		{Key: "200-1000", Label: "€200 - €1,000", From: bandBound(200), To: bandBound(1000)},
		{Key: "1000+", Label: "€1,000+", From: bandBound(1000)},
	}
}

// PriceBandByKey looks up a band by its key.
func PriceBandByKey(key string) (PriceBand, bool) {
	for _, b := range PriceBands() {
		if b.Key == key {
			return b, true
		}
	}
	return PriceBand{}, false
}

// SearchHit is one raw hit from a search engine branch.
type SearchHit struct {
	ID       string
	Score    float64
	Document *SearchDocument
}

// FusedResult is one ranked result after fusion. BM25Rank and VectorRank are
// 1-based and nil when the document was absent from that branch.
type FusedResult struct {
	SupplierAID string          `json:"supplier_aid"`
	BM25Rank    *int            `json:"bm25_rank,omitempty"`
	VectorRank  *int            `json:"vector_rank,omitempty"`
	BM25Score   *float64        `json:"bm25_score,omitempty"`
	VectorScore *float64        `json:"vector_score,omitempty"`
	FusedScore  float64         `json:"fused_score"`
	Document    *SearchDocument `json:"document"`
}

// FacetBucket is one aggregated value with its document count.
type FacetBucket struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
	Count int    `json:"count"`
}

// Facets holds the aggregations over the entire filtered candidate set.
// Counts never depend on the requested page.
type Facets struct {
	Manufacturers  []FacetBucket `json:"manufacturers"`
	EclassIDs      []FacetBucket `json:"eclass_ids"`
	EclassSegments []FacetBucket `json:"eclass_segments"`
	OrderUnits     []FacetBucket `json:"order_units"`
	Catalogs       []FacetBucket `json:"catalogs"`
	PriceBands     []FacetBucket `json:"price_bands"`
}

// SearchResult is the response of one planned query.
type SearchResult struct {
	Query         string         `json:"query"`
	Mode          SearchMode     `json:"mode"`           // Requested
	EffectiveMode SearchMode     `json:"effective_mode"` // After fallback
	Degraded      bool           `json:"degraded"`       // True when a branch was dropped
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	Total         int            `json:"total"`
	Results       []*FusedResult `json:"results"`
	Facets        *Facets        `json:"facets,omitempty"`
	Took          time.Duration  `json:"took"`
}

// BatchResult pairs one batch query with its outcome. Queries fail
// independently; a failed entry carries Error and a nil Result.
type BatchResult struct {
	Query  string        `json:"query"`
	Result *SearchResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}
