package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// MockSearchEngine is a mock implementation of SearchEngine for testing.
// Lexical matching is substring based; nearest-neighbor uses a dot product
// over stored embeddings. Both branches rank deterministically.
type MockSearchEngine struct {
	mu   sync.RWMutex
	docs map[string]*domain.SearchDocument

	// Optional failure injection
	LexicalErr error
	NearestErr error
	BulkErr    error
	HealthErr  error
}

// NewMockSearchEngine creates a new MockSearchEngine
func NewMockSearchEngine() *MockSearchEngine {
	return &MockSearchEngine{
		docs: make(map[string]*domain.SearchDocument),
	}
}

func (m *MockSearchEngine) EnsureIndex(ctx context.Context, recreate bool) error {
	if recreate {
		m.Reset()
	}
	return nil
}

func (m *MockSearchEngine) BulkUpsert(ctx context.Context, docs []*domain.SearchDocument) (int, error) {
	if m.BulkErr != nil {
		return 0, m.BulkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		m.docs[doc.ID()] = doc
	}
	return len(docs), nil
}

func (m *MockSearchEngine) DeleteByCatalog(ctx context.Context, catalogID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, doc := range m.docs {
		if doc.CatalogID == catalogID {
			delete(m.docs, id)
		}
	}
	return nil
}

func (m *MockSearchEngine) Lexical(ctx context.Context, q string, exact bool, filters domain.SearchFilters, size int) ([]*domain.SearchHit, int, error) {
	if m.LexicalErr != nil {
		return nil, 0, m.LexicalErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []*domain.SearchHit
	queryLower := strings.ToLower(q)

	for id, doc := range m.docs {
		if !matchesFilters(doc, filters) {
			continue
		}
		score := lexicalScore(doc, queryLower)
		if score == 0 {
			continue
		}
		hits = append(hits, &domain.SearchHit{ID: id, Score: score, Document: doc})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.SupplierAID < hits[j].Document.SupplierAID
	})

	total := len(hits)
	if size > 0 && len(hits) > size {
		hits = hits[:size]
	}
	return hits, total, nil
}

func (m *MockSearchEngine) Nearest(ctx context.Context, embedding []float32, filters domain.SearchFilters, k int) ([]*domain.SearchHit, error) {
	if m.NearestErr != nil {
		return nil, m.NearestErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []*domain.SearchHit
	for id, doc := range m.docs {
		if len(doc.Embedding) == 0 || !matchesFilters(doc, filters) {
			continue
		}
		hits = append(hits, &domain.SearchHit{
			ID:       id,
			Score:    dotProduct(embedding, doc.Embedding),
			Document: doc,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.SupplierAID < hits[j].Document.SupplierAID
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MockSearchEngine) Facets(ctx context.Context, filters domain.SearchFilters) (*domain.Facets, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	manufacturers := make(map[string]int)
	eclassIDs := make(map[string]int)
	segments := make(map[string]int)
	orderUnits := make(map[string]int)
	catalogs := make(map[string]int)
	bands := make(map[string]int)

	for _, doc := range m.docs {
		if !matchesFilters(doc, filters) {
			continue
		}
		if doc.ManufacturerName != "" {
			manufacturers[doc.ManufacturerName]++
		}
		if doc.EclassID != "" {
			eclassIDs[doc.EclassID]++
			if len(doc.EclassID) >= 2 {
				segments[doc.EclassID[:2]]++
			}
		}
		if doc.OrderUnit != "" {
			orderUnits[doc.OrderUnit]++
		}
		if doc.CatalogID != "" {
			catalogs[doc.CatalogID]++
		}
		if doc.PriceUnitAmount != nil {
			for _, band := range domain.PriceBands() {
				if inBand(*doc.PriceUnitAmount, band) {
					bands[band.Key]++
				}
			}
		}
	}

	facets := &domain.Facets{
		Manufacturers:  toBuckets(manufacturers),
		EclassIDs:      toBuckets(eclassIDs),
		EclassSegments: toBuckets(segments),
		OrderUnits:     toBuckets(orderUnits),
		Catalogs:       toBuckets(catalogs),
	}
	for _, band := range domain.PriceBands() {
		if count, ok := bands[band.Key]; ok {
			facets.PriceBands = append(facets.PriceBands, domain.FacetBucket{
				Value: band.Key,
				Name:  band.Label,
				Count: count,
			})
		}
	}
	return facets, nil
}

func (m *MockSearchEngine) CatalogEmbeddingStats(ctx context.Context) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[string]bool)
	for _, doc := range m.docs {
		if !stats[doc.CatalogID] {
			stats[doc.CatalogID] = len(doc.Embedding) > 0
		}
	}
	return stats, nil
}

func (m *MockSearchEngine) Refresh(ctx context.Context) error {
	return nil
}

func (m *MockSearchEngine) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func (m *MockSearchEngine) HealthCheck(ctx context.Context) error {
	return m.HealthErr
}

func lexicalScore(doc *domain.SearchDocument, queryLower string) float64 {
	var score float64
	if strings.Contains(strings.ToLower(doc.DescriptionShort), queryLower) {
		score += 2.0
	}
	if strings.Contains(strings.ToLower(doc.DescriptionLong), queryLower) {
		score += 1.0
	}
	if strings.Contains(strings.ToLower(doc.ManufacturerName), queryLower) {
		score += 1.0
	}
	if strings.EqualFold(doc.SupplierAID, queryLower) || strings.EqualFold(doc.EAN, queryLower) {
		score += 3.0
	}
	return score
}

func matchesFilters(doc *domain.SearchDocument, f domain.SearchFilters) bool {
	if !matchesAny(doc.ManufacturerName, f.Manufacturer) {
		return false
	}
	if !matchesAny(doc.EclassID, f.EclassID) {
		return false
	}
	if !matchesAny(doc.OrderUnit, f.OrderUnit) {
		return false
	}
	if !matchesAny(doc.CatalogID, f.CatalogID) {
		return false
	}
	if len(f.EclassSegment) > 0 {
		found := false
		for _, seg := range f.EclassSegment {
			if len(doc.EclassID) >= len(seg) && strings.HasPrefix(doc.EclassID, seg) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PriceMin != nil || f.PriceMax != nil {
		if doc.PriceUnitAmount == nil {
			return false
		}
		if f.PriceMin != nil && *doc.PriceUnitAmount < *f.PriceMin {
			return false
		}
		if f.PriceMax != nil && *doc.PriceUnitAmount > *f.PriceMax {
			return false
		}
	}
	return true
}

func matchesAny(value string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, v := range allowed {
		if value == v {
			return true
		}
	}
	return false
}

func inBand(amount float64, band domain.PriceBand) bool {
	if band.From != nil && amount < *band.From {
		return false
	}
	if band.To != nil && amount >= *band.To {
		return false
	}
	return true
}

func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func toBuckets(counts map[string]int) []domain.FacetBucket {
	buckets := make([]domain.FacetBucket, 0, len(counts))
	for value, count := range counts {
		buckets = append(buckets, domain.FacetBucket{Value: value, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Value < buckets[j].Value
	})
	return buckets
}

// Helper methods for testing

func (m *MockSearchEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*domain.SearchDocument)
}

func (m *MockSearchEngine) Get(id string) *domain.SearchDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs[id]
}
