package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SearchEngine = (*SearchEngine)(nil)

// SearchEngine implements driven.SearchEngine against the OpenSearch REST API
type SearchEngine struct {
	baseURL    string
	index      string
	dimensions int
	httpClient *http.Client
}

// Config holds OpenSearch connection configuration
type Config struct {
	// BaseURL is the OpenSearch endpoint (e.g., http://localhost:9200)
	BaseURL string

	// Index is the name of the products index
	Index string

	// EmbeddingDimensions is the knn_vector dimension of the index mapping
	EmbeddingDimensions int

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:             baseURL,
		Index:               "products",
		EmbeddingDimensions: 1536,
		Timeout:             30 * time.Second,
	}
}

// NewSearchEngine creates a new OpenSearch-backed SearchEngine
func NewSearchEngine(cfg Config) *SearchEngine {
	if cfg.Index == "" {
		cfg.Index = "products"
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = 1536
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SearchEngine{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		index:      cfg.Index,
		dimensions: cfg.EmbeddingDimensions,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// do sends one JSON request and decodes the response into out (when non-nil).
func (s *SearchEngine) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("opensearch %s %s failed: %s - %s", method, path, resp.Status, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (s *SearchEngine) indexExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.baseURL+"/"+s.index, nil)
	if err != nil {
		return false, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("opensearch index check failed: %s", resp.Status)
	}
}

// EnsureIndex creates the products index with its mapping if missing.
// With recreate, an existing index is dropped first.
func (s *SearchEngine) EnsureIndex(ctx context.Context, recreate bool) error {
	exists, err := s.indexExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		if !recreate {
			return nil
		}
		if err := s.do(ctx, http.MethodDelete, "/"+s.index, nil, nil); err != nil {
			return fmt.Errorf("delete index: %w", err)
		}
	}

	if err := s.do(ctx, http.MethodPut, "/"+s.index, indexSettings(s.dimensions), nil); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string          `json:"_id"`
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error"`
	} `json:"items"`
}

// BulkUpsert writes documents keyed by their deterministic IDs via the
// _bulk API. Returns the number of documents accepted; a non-nil error
// reports the first rejected document.
func (s *SearchEngine) BulkUpsert(ctx context.Context, docs []*domain.SearchDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{
			"index": map[string]any{"_id": doc.ID()},
		}
		if err := enc.Encode(action); err != nil {
			return 0, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return 0, fmt.Errorf("encode document %s: %w", doc.ID(), err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+s.index+"/_bulk", &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("opensearch bulk failed: %s - %s", resp.Status, string(respBody))
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}

	accepted := 0
	var firstErr error
	for _, item := range bulkResp.Items {
		for _, result := range item {
			if result.Status < 300 {
				accepted++
			} else if firstErr == nil {
				firstErr = fmt.Errorf("document %s rejected: %s", result.ID, string(result.Error))
			}
		}
	}
	return accepted, firstErr
}

// DeleteByCatalog removes all documents of one catalog namespace.
func (s *SearchEngine) DeleteByCatalog(ctx context.Context, catalogID string) error {
	body := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"catalog_id": catalogID},
		},
	}
	return s.do(ctx, http.MethodPost, "/"+s.index+"/_delete_by_query", body, nil)
}

// termClause builds a term/terms filter over one keyword field.
func termClause(field string, values []string) map[string]any {
	if len(values) == 1 {
		return map[string]any{"term": map[string]any{field: values[0]}}
	}
	return map[string]any{"terms": map[string]any{field: values}}
}

// filterClauses resolves the structured filters into bool filter clauses.
// Both retrieval branches apply the identical set.
func filterClauses(filters domain.SearchFilters) []map[string]any {
	var clauses []map[string]any

	if len(filters.Manufacturer) > 0 {
		clauses = append(clauses, termClause("manufacturer_name.keyword", filters.Manufacturer))
	}
	if len(filters.EclassID) > 0 {
		clauses = append(clauses, termClause("eclass_id", filters.EclassID))
	}
	if len(filters.EclassSegment) > 0 {
		if len(filters.EclassSegment) == 1 {
			clauses = append(clauses, map[string]any{
				"prefix": map[string]any{"eclass_id": filters.EclassSegment[0]},
			})
		} else {
			should := make([]map[string]any, 0, len(filters.EclassSegment))
			for _, seg := range filters.EclassSegment {
				should = append(should, map[string]any{
					"prefix": map[string]any{"eclass_id": seg},
				})
			}
			clauses = append(clauses, map[string]any{
				"bool": map[string]any{"should": should, "minimum_should_match": 1},
			})
		}
	}
	if len(filters.OrderUnit) > 0 {
		clauses = append(clauses, termClause("order_unit", filters.OrderUnit))
	}
	if len(filters.CatalogID) > 0 {
		clauses = append(clauses, termClause("catalog_id", filters.CatalogID))
	}
	if filters.PriceMin != nil || filters.PriceMax != nil {
		priceRange := map[string]any{}
		if filters.PriceMin != nil {
			priceRange["gte"] = *filters.PriceMin
		}
		if filters.PriceMax != nil {
			priceRange["lte"] = *filters.PriceMax
		}
		clauses = append(clauses, map[string]any{
			"range": map[string]any{"price_unit_amount": priceRange},
		})
	}

	return clauses
}

// lexicalQuery builds the BM25 branch query. Exact mode matches identifier
// and keyword fields verbatim; fuzzy mode runs a boosted multi_match.
func lexicalQuery(q string, exact bool, filters domain.SearchFilters) map[string]any {
	var match map[string]any
	if exact {
		match = map[string]any{
			"bool": map[string]any{
				"should": []map[string]any{
					{"term": map[string]any{"ean": q}},
					{"term": map[string]any{"supplier_aid": q}},
					{"term": map[string]any{"manufacturer_aid": q}},
					{"term": map[string]any{"description_short.keyword": q}},
					{"term": map[string]any{"manufacturer_name.keyword": q}},
				},
				"minimum_should_match": 1,
			},
		}
	} else {
		match = map[string]any{
			"multi_match": map[string]any{
				"query": q,
				"fields": []string{
					"description_short^3",
					"description_long",
					"manufacturer_name^2",
					"supplier_aid",
					"ean",
				},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		}
	}

	clauses := filterClauses(filters)
	if len(clauses) == 0 {
		return match
	}
	return map[string]any{
		"bool": map[string]any{
			"must":   []map[string]any{match},
			"filter": clauses,
		},
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

func parseHits(resp *searchResponse) ([]*domain.SearchHit, error) {
	hits := make([]*domain.SearchHit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var doc domain.SearchDocument
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal hit %s: %w", h.ID, err)
		}
		hits = append(hits, &domain.SearchHit{
			ID:       h.ID,
			Score:    h.Score,
			Document: &doc,
		})
	}
	return hits, nil
}

// Lexical runs the BM25 branch. Hits come back in rank order; total is the
// full filtered match count.
func (s *SearchEngine) Lexical(ctx context.Context, q string, exact bool, filters domain.SearchFilters, size int) ([]*domain.SearchHit, int, error) {
	body := map[string]any{
		"query":            lexicalQuery(q, exact, filters),
		"size":             size,
		"track_total_hits": true,
	}

	var resp searchResponse
	if err := s.do(ctx, http.MethodPost, "/"+s.index+"/_search", body, &resp); err != nil {
		return nil, 0, err
	}

	hits, err := parseHits(&resp)
	if err != nil {
		return nil, 0, err
	}
	return hits, resp.Hits.Total.Value, nil
}

// Nearest runs the vector branch: k approximate nearest neighbors over
// document embeddings, with filters applied inside the knn search.
func (s *SearchEngine) Nearest(ctx context.Context, embedding []float32, filters domain.SearchFilters, k int) ([]*domain.SearchHit, error) {
	knn := map[string]any{
		"vector": embedding,
		"k":      k,
	}
	if clauses := filterClauses(filters); len(clauses) > 0 {
		knn["filter"] = map[string]any{
			"bool": map[string]any{"filter": clauses},
		}
	}

	body := map[string]any{
		"size": k,
		"query": map[string]any{
			"knn": map[string]any{"embedding": knn},
		},
	}

	var resp searchResponse
	if err := s.do(ctx, http.MethodPost, "/"+s.index+"/_search", body, &resp); err != nil {
		return nil, err
	}
	return parseHits(&resp)
}

type termsAggregation struct {
	Buckets []struct {
		Key      string `json:"key"`
		DocCount int    `json:"doc_count"`
	} `json:"buckets"`
}

func priceBandRanges() []map[string]any {
	bands := domain.PriceBands()
	ranges := make([]map[string]any, 0, len(bands))
	for _, band := range bands {
		r := map[string]any{"key": band.Key}
		if band.From != nil {
			r["from"] = *band.From
		}
		if band.To != nil {
			r["to"] = *band.To
		}
		ranges = append(ranges, r)
	}
	return ranges
}

// Facets aggregates over the entire filtered candidate set. The price band
// ranges aggregate the normalized unit price, matching the price filters.
func (s *SearchEngine) Facets(ctx context.Context, filters domain.SearchFilters) (*domain.Facets, error) {
	query := map[string]any{"match_all": map[string]any{}}
	if clauses := filterClauses(filters); len(clauses) > 0 {
		query = map[string]any{
			"bool": map[string]any{"filter": clauses},
		}
	}

	body := map[string]any{
		"size":  0,
		"query": query,
		"aggs": map[string]any{
			"manufacturers": map[string]any{
				"terms": map[string]any{"field": "manufacturer_name.keyword", "size": 1500},
			},
			"eclass_ids": map[string]any{
				"terms": map[string]any{"field": "eclass_id", "size": 1500},
			},
			"eclass_segments": map[string]any{
				"terms": map[string]any{
					"field":  "eclass_id",
					"size":   50,
					"script": "_value.substring(0, 2)",
				},
			},
			"order_units": map[string]any{
				"terms": map[string]any{"field": "order_unit", "size": 50},
			},
			"catalogs": map[string]any{
				"terms": map[string]any{"field": "catalog_id", "size": 100},
			},
			"price_bands": map[string]any{
				"range": map[string]any{
					"field":  "price_unit_amount",
					"ranges": priceBandRanges(),
				},
			},
		},
	}

	var resp searchResponse
	if err := s.do(ctx, http.MethodPost, "/"+s.index+"/_search", body, &resp); err != nil {
		return nil, err
	}

	facets := &domain.Facets{
		Manufacturers:  parseTermsBuckets(resp.Aggregations["manufacturers"]),
		EclassIDs:      parseTermsBuckets(resp.Aggregations["eclass_ids"]),
		EclassSegments: parseTermsBuckets(resp.Aggregations["eclass_segments"]),
		OrderUnits:     parseTermsBuckets(resp.Aggregations["order_units"]),
		Catalogs:       parseTermsBuckets(resp.Aggregations["catalogs"]),
	}

	// Price band buckets carry the fixed band labels.
	for _, bucket := range parseTermsBuckets(resp.Aggregations["price_bands"]) {
		if band, ok := domain.PriceBandByKey(bucket.Value); ok {
			bucket.Name = band.Label
		}
		facets.PriceBands = append(facets.PriceBands, bucket)
	}

	return facets, nil
}

func parseTermsBuckets(raw json.RawMessage) []domain.FacetBucket {
	if len(raw) == 0 {
		return nil
	}
	var agg termsAggregation
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil
	}
	buckets := make([]domain.FacetBucket, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		buckets = append(buckets, domain.FacetBucket{Value: b.Key, Count: b.DocCount})
	}
	return buckets
}

// CatalogEmbeddingStats reports, per catalog, whether any document carries
// an embedding vector.
func (s *SearchEngine) CatalogEmbeddingStats(ctx context.Context) (map[string]bool, error) {
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"catalogs": map[string]any{
				"terms": map[string]any{"field": "catalog_id", "size": 1000},
				"aggs": map[string]any{
					"with_embedding": map[string]any{
						"filter": map[string]any{
							"exists": map[string]any{"field": "embedding"},
						},
					},
				},
			},
		},
	}

	var resp struct {
		Aggregations struct {
			Catalogs struct {
				Buckets []struct {
					Key           string `json:"key"`
					WithEmbedding struct {
						DocCount int `json:"doc_count"`
					} `json:"with_embedding"`
				} `json:"buckets"`
			} `json:"catalogs"`
		} `json:"aggregations"`
	}
	if err := s.do(ctx, http.MethodPost, "/"+s.index+"/_search", body, &resp); err != nil {
		return nil, err
	}

	stats := make(map[string]bool, len(resp.Aggregations.Catalogs.Buckets))
	for _, bucket := range resp.Aggregations.Catalogs.Buckets {
		stats[bucket.Key] = bucket.WithEmbedding.DocCount > 0
	}
	return stats, nil
}

// Refresh makes recently written documents searchable.
func (s *SearchEngine) Refresh(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, "/"+s.index+"/_refresh", nil, nil)
}

// Count returns the number of documents in the index.
func (s *SearchEngine) Count(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := s.do(ctx, http.MethodGet, "/"+s.index+"/_count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// HealthCheck verifies the cluster is reachable and not red.
func (s *SearchEngine) HealthCheck(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := s.do(ctx, http.MethodGet, "/_cluster/health", nil, &resp); err != nil {
		return fmt.Errorf("opensearch health check failed: %w", err)
	}
	if resp.Status == "red" {
		return fmt.Errorf("opensearch cluster status is red")
	}
	return nil
}
