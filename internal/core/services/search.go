package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driven"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driving"
)

// Ensure SearchService implements driving.SearchService
var _ driving.SearchService = (*SearchService)(nil)

// candidatePoolFactor sizes each branch's candidate pool relative to the
// requested window, so deep pages still fuse from enough candidates.
const candidatePoolFactor = 3

// FacetNamer decorates facet buckets with display names.
type FacetNamer interface {
	ClassificationNamer
	SegmentName(segment string) string
	OrderUnitLabel(unit string) string
}

// SearchService plans and executes product queries: it validates the query,
// runs the lexical and vector branches, fuses them with reciprocal rank
// fusion and windows the fused set.
type SearchService struct {
	engine   driven.SearchEngine
	embedder driven.EmbeddingService // nil disables the vector branch
	names    FacetNamer              // nil disables facet name enrichment
	logger   *slog.Logger
}

// SearchConfig holds dependencies for SearchService.
type SearchConfig struct {
	Engine   driven.SearchEngine
	Embedder driven.EmbeddingService
	Names    FacetNamer
	Logger   *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(cfg SearchConfig) *SearchService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		engine:   cfg.Engine,
		embedder: cfg.Embedder,
		names:    cfg.Names,
		logger:   logger,
	}
}

// Search executes a single query.
func (s *SearchService) Search(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error) {
	startTime := time.Now()

	query.ApplyDefaults()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	filters := query.Filters()
	effectiveMode := query.Mode
	degraded := false

	// Resolve the query embedding before any branch runs. Hybrid degrades
	// to lexical-only when the provider is unavailable; pure vector mode
	// has nothing to degrade to.
	var queryEmbedding []float32
	if effectiveMode.RequiresEmbedding() {
		embedding, err := s.queryEmbedding(ctx, query)
		if err != nil {
			if effectiveMode == domain.SearchModeVector {
				return nil, err
			}
			s.logger.Warn("query embedding unavailable, degrading to bm25", "query", query.Q, "error", err)
			effectiveMode = domain.SearchModeBM25
			degraded = true
		} else {
			queryEmbedding = embedding
		}
	}

	pool := query.Page * query.Size * candidatePoolFactor

	var (
		bm25Hits   []*domain.SearchHit
		bm25Total  int
		vectorHits []*domain.SearchHit
	)

	if effectiveMode == domain.SearchModeBM25 || effectiveMode == domain.SearchModeHybrid {
		hits, total, err := s.engine.Lexical(ctx, query.Q, query.ExactMatch, filters, pool)
		if err != nil {
			return nil, fmt.Errorf("lexical branch: %w", err)
		}
		bm25Hits = hits
		bm25Total = total
	}

	if effectiveMode == domain.SearchModeVector || effectiveMode == domain.SearchModeHybrid {
		hits, err := s.engine.Nearest(ctx, queryEmbedding, filters, pool)
		if err != nil {
			return nil, fmt.Errorf("vector branch: %w", err)
		}
		vectorHits = hits
	}

	fused := fuseRanks(bm25Hits, vectorHits, query)

	total := len(fused)
	if effectiveMode == domain.SearchModeBM25 {
		// Single-branch lexical results carry the engine's full filtered
		// match count; fused counts only cover the candidate pool.
		total = bm25Total
	}

	applySort(fused, query)

	window := windowResults(fused, query.Page, query.Size)
	for _, r := range window {
		r.Document = presentDocument(r.Document, query)
		if !query.IncludeScores {
			r.BM25Score = nil
			r.VectorScore = nil
		}
	}

	result := &domain.SearchResult{
		Query:         query.Q,
		Mode:          query.Mode,
		EffectiveMode: effectiveMode,
		Degraded:      degraded,
		Page:          query.Page,
		Size:          query.Size,
		Total:         total,
		Results:       window,
		Took:          time.Since(startTime),
	}

	if query.IncludeFacets {
		facets, err := s.engine.Facets(ctx, filters)
		if err != nil {
			// Facets enrich the page; their failure doesn't void the hits.
			s.logger.Warn("facet aggregation failed", "query", query.Q, "error", err)
		} else {
			s.decorateFacets(facets)
			result.Facets = facets
		}
	}

	return result, nil
}

// decorateFacets attaches display names to classification and order-unit
// buckets. Price bands carry their labels from the engine already.
func (s *SearchService) decorateFacets(facets *domain.Facets) {
	if s.names == nil || facets == nil {
		return
	}
	for i := range facets.EclassIDs {
		facets.EclassIDs[i].Name = s.names.Name(facets.EclassIDs[i].Value)
	}
	for i := range facets.EclassSegments {
		facets.EclassSegments[i].Name = s.names.SegmentName(facets.EclassSegments[i].Value)
	}
	for i := range facets.OrderUnits {
		facets.OrderUnits[i].Name = s.names.OrderUnitLabel(facets.OrderUnits[i].Value)
	}
}

// SearchBatch executes queries concurrently, preserving input order.
func (s *SearchService) SearchBatch(ctx context.Context, queries []*domain.SearchQuery) ([]*domain.BatchResult, error) {
	if len(queries) == 0 {
		return []*domain.BatchResult{}, nil
	}
	if len(queries) > domain.MaxBatchQueries {
		return nil, fmt.Errorf("%w: batch of %d exceeds maximum %d", domain.ErrInvalidQuery, len(queries), domain.MaxBatchQueries)
	}

	results := make([]*domain.BatchResult, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query *domain.SearchQuery) {
			defer wg.Done()
			res, err := s.Search(ctx, query)
			if err != nil {
				results[i] = &domain.BatchResult{Query: query.Q, Error: err.Error()}
				return
			}
			results[i] = &domain.BatchResult{Query: query.Q, Result: res}
		}(i, query)
	}
	wg.Wait()

	return results, nil
}

// queryEmbedding resolves the vector for the query: a client-supplied vector
// wins, otherwise the provider embeds the query text.
func (s *SearchService) queryEmbedding(ctx context.Context, query *domain.SearchQuery) ([]float32, error) {
	if len(query.Embedding) > 0 {
		return query.Embedding, nil
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	embedding, err := s.embedder.EmbedQuery(ctx, query.Q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return embedding, nil
}

// fuseRanks merges the two branch rankings with weighted reciprocal rank
// fusion: score = bm25_w/(k+r_bm25) + vec_w/(k+r_vec), each term present only
// when the document appears in that branch. Ordering is by fused score
// descending, ties broken by ascending supplier_aid so pagination is stable.
func fuseRanks(bm25Hits, vectorHits []*domain.SearchHit, query *domain.SearchQuery) []*domain.FusedResult {
	k := float64(query.RRFK)
	byID := make(map[string]*domain.FusedResult)

	for i, hit := range bm25Hits {
		rank := i + 1
		score := hit.Score
		fr := &domain.FusedResult{
			SupplierAID: hit.Document.SupplierAID,
			BM25Rank:    &rank,
			BM25Score:   &score,
			FusedScore:  query.BM25Weight / (k + float64(rank)),
			Document:    hit.Document,
		}
		byID[hit.ID] = fr
	}

	for i, hit := range vectorHits {
		rank := i + 1
		score := hit.Score
		fr, ok := byID[hit.ID]
		if !ok {
			fr = &domain.FusedResult{
				SupplierAID: hit.Document.SupplierAID,
				Document:    hit.Document,
			}
			byID[hit.ID] = fr
		}
		fr.VectorRank = &rank
		fr.VectorScore = &score
		fr.FusedScore += query.VectorWeight / (k + float64(rank))
	}

	fused := make([]*domain.FusedResult, 0, len(byID))
	for _, fr := range byID {
		fused = append(fused, fr)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		return fused[i].SupplierAID < fused[j].SupplierAID
	})
	return fused
}

// applySort replaces relevance order with an explicit field sort when the
// query asks for one. Sorting happens on the whole fused set, before
// windowing, so pages stay consistent.
func applySort(fused []*domain.FusedResult, query *domain.SearchQuery) {
	if query.SortBy == "" {
		return
	}
	desc := query.SortOrder == domain.SortDesc

	sort.SliceStable(fused, func(i, j int) bool {
		var less bool
		switch query.SortBy {
		case domain.SortByPrice:
			pi, pj := fused[i].Document.PriceUnitAmount, fused[j].Document.PriceUnitAmount
			// Unpriced documents sort last regardless of direction.
			switch {
			case pi == nil && pj == nil:
				return fused[i].SupplierAID < fused[j].SupplierAID
			case pi == nil:
				return false
			case pj == nil:
				return true
			}
			if *pi == *pj {
				return fused[i].SupplierAID < fused[j].SupplierAID
			}
			less = *pi < *pj
		case domain.SortBySupplierAID:
			if fused[i].SupplierAID == fused[j].SupplierAID {
				return false
			}
			less = fused[i].SupplierAID < fused[j].SupplierAID
		default:
			return false
		}
		if desc {
			return !less
		}
		return less
	})
}

// windowResults slices the requested page out of the fused set.
func windowResults(fused []*domain.FusedResult, page, size int) []*domain.FusedResult {
	start := (page - 1) * size
	if start >= len(fused) {
		return []*domain.FusedResult{}
	}
	end := start + size
	if end > len(fused) {
		end = len(fused)
	}
	return fused[start:end]
}

// presentDocument copies a hit's document for the response, dropping the raw
// vector and, unless requested, the embedding text.
func presentDocument(doc *domain.SearchDocument, query *domain.SearchQuery) *domain.SearchDocument {
	if doc == nil {
		return nil
	}
	out := *doc
	out.Embedding = nil
	if !query.IncludeEmbeddingText {
		out.EmbeddingText = ""
	}
	return &out
}
