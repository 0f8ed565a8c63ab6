package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// capturedRequest records one request received by the stub server.
type capturedRequest struct {
	Method string
	Path   string
	Body   map[string]any
	Raw    string
}

// newStubEngine starts a stub OpenSearch server that records requests and
// serves canned responses keyed by "METHOD path".
func newStubEngine(t *testing.T, responses map[string]any) (*SearchEngine, *[]capturedRequest, func()) {
	t.Helper()

	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		captured = append(captured, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Body:   body,
			Raw:    string(raw),
		})

		resp, ok := responses[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{}"))
			return
		}
		if status, isStatus := resp.(int); isStatus {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))

	engine := NewSearchEngine(Config{BaseURL: server.URL, Index: "products"})
	return engine, &captured, server.Close
}

func hitsResponse(total int, docs ...*domain.SearchDocument) map[string]any {
	hits := make([]map[string]any, 0, len(docs))
	for i, doc := range docs {
		hits = append(hits, map[string]any{
			"_id":     doc.ID(),
			"_score":  float64(10 - i),
			"_source": doc,
		})
	}
	return map[string]any{
		"hits": map[string]any{
			"total": map[string]any{"value": total},
			"hits":  hits,
		},
	}
}

func TestLexical_FuzzyQuery(t *testing.T) {
	doc := &domain.SearchDocument{CatalogID: "office", SupplierAID: "SCR-100", DescriptionShort: "Hex screw M6"}
	engine, captured, cleanup := newStubEngine(t, map[string]any{
		"POST /products/_search": hitsResponse(42, doc),
	})
	defer cleanup()

	hits, total, err := engine.Lexical(context.Background(), "screw", false, domain.SearchFilters{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 {
		t.Errorf("expected total 42, got %d", total)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ID != "office/SCR-100" {
		t.Errorf("expected hit ID office/SCR-100, got %s", hits[0].ID)
	}
	if hits[0].Document.DescriptionShort != "Hex screw M6" {
		t.Errorf("unexpected document: %+v", hits[0].Document)
	}

	req := (*captured)[0]
	if !strings.Contains(req.Raw, "multi_match") {
		t.Errorf("expected multi_match query, got: %s", req.Raw)
	}
	if !strings.Contains(req.Raw, "description_short^3") {
		t.Errorf("expected boosted description field, got: %s", req.Raw)
	}
	if !strings.Contains(req.Raw, `"track_total_hits":true`) {
		t.Errorf("expected track_total_hits, got: %s", req.Raw)
	}
}

func TestLexical_ExactQuery(t *testing.T) {
	engine, captured, cleanup := newStubEngine(t, map[string]any{
		"POST /products/_search": hitsResponse(0),
	})
	defer cleanup()

	_, _, err := engine.Lexical(context.Background(), "4012345678901", true, domain.SearchFilters{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := (*captured)[0]
	if strings.Contains(req.Raw, "multi_match") {
		t.Errorf("exact query should not use multi_match: %s", req.Raw)
	}
	if !strings.Contains(req.Raw, `"ean":"4012345678901"`) {
		t.Errorf("expected term query on ean, got: %s", req.Raw)
	}
	if !strings.Contains(req.Raw, "minimum_should_match") {
		t.Errorf("expected minimum_should_match, got: %s", req.Raw)
	}
}

func TestLexical_Filters(t *testing.T) {
	priceMin := 50.0
	engine, captured, cleanup := newStubEngine(t, map[string]any{
		"POST /products/_search": hitsResponse(0),
	})
	defer cleanup()

	filters := domain.SearchFilters{
		Manufacturer:  []string{"Walraven GmbH"},
		EclassSegment: []string{"27", "32"},
		CatalogID:     []string{"office"},
		PriceMin:      &priceMin,
	}
	_, _, err := engine.Lexical(context.Background(), "Kabel", false, filters, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw := (*captured)[0].Raw
	if !strings.Contains(raw, `"manufacturer_name.keyword":"Walraven GmbH"`) {
		t.Errorf("expected manufacturer term filter, got: %s", raw)
	}
	if !strings.Contains(raw, `"prefix"`) {
		t.Errorf("expected eclass segment prefix filters, got: %s", raw)
	}
	if !strings.Contains(raw, `"catalog_id":"office"`) {
		t.Errorf("expected catalog filter, got: %s", raw)
	}
	if !strings.Contains(raw, `"price_unit_amount"`) || !strings.Contains(raw, `"gte":50`) {
		t.Errorf("expected unit price range filter, got: %s", raw)
	}
}

func TestNearest_KnnQueryWithFilter(t *testing.T) {
	doc := &domain.SearchDocument{CatalogID: "office", SupplierAID: "SCR-100"}
	engine, captured, cleanup := newStubEngine(t, map[string]any{
		"POST /products/_search": hitsResponse(1, doc),
	})
	defer cleanup()

	filters := domain.SearchFilters{CatalogID: []string{"office"}}
	hits, err := engine.Nearest(context.Background(), []float32{0.1, 0.2, 0.3}, filters, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}

	raw := (*captured)[0].Raw
	if !strings.Contains(raw, `"knn"`) {
		t.Errorf("expected knn query, got: %s", raw)
	}
	if !strings.Contains(raw, `"k":5`) {
		t.Errorf("expected k=5, got: %s", raw)
	}
	if !strings.Contains(raw, `"filter"`) {
		t.Errorf("expected filter inside knn, got: %s", raw)
	}
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	engine, captured, cleanup := newStubEngine(t, map[string]any{
		"HEAD /products": http.StatusNotFound,
	})
	defer cleanup()

	if err := engine.EnsureIndex(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*captured) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*captured))
	}
	create := (*captured)[1]
	if create.Method != http.MethodPut || create.Path != "/products" {
		t.Errorf("expected PUT /products, got %s %s", create.Method, create.Path)
	}
	if !strings.Contains(create.Raw, "knn_vector") {
		t.Errorf("expected knn_vector mapping, got: %s", create.Raw)
	}
	if !strings.Contains(create.Raw, `"analyzer":"german"`) {
		t.Errorf("expected german analyzer, got: %s", create.Raw)
	}
}

func TestEnsureIndex_SkipsWhenExists(t *testing.T) {
	engine, captured, cleanup := newStubEngine(t, nil)
	defer cleanup()

	if err := engine.EnsureIndex(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*captured) != 1 {
		t.Errorf("expected only the existence check, got %d requests", len(*captured))
	}
}

func TestEnsureIndex_RecreateDropsFirst(t *testing.T) {
	engine, captured, cleanup := newStubEngine(t, nil)
	defer cleanup()

	if err := engine.EnsureIndex(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*captured) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(*captured))
	}
	if (*captured)[1].Method != http.MethodDelete {
		t.Errorf("expected DELETE before create, got %s", (*captured)[1].Method)
	}
	if (*captured)[2].Method != http.MethodPut {
		t.Errorf("expected PUT after delete, got %s", (*captured)[2].Method)
	}
}

func TestBulkUpsert_CountsAccepted(t *testing.T) {
	engine, captured, cleanup := newStubEngine(t, map[string]any{
		"POST /products/_bulk": map[string]any{
			"errors": false,
			"items": []map[string]any{
				{"index": map[string]any{"_id": "office/A", "status": 201}},
				{"index": map[string]any{"_id": "office/B", "status": 200}},
			},
		},
	})
	defer cleanup()

	docs := []*domain.SearchDocument{
		{CatalogID: "office", SupplierAID: "A"},
		{CatalogID: "office", SupplierAID: "B"},
	}
	count, err := engine.BulkUpsert(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 accepted, got %d", count)
	}

	raw := (*captured)[0].Raw
	if !strings.Contains(raw, `"_id":"office/A"`) || !strings.Contains(raw, `"_id":"office/B"`) {
		t.Errorf("expected deterministic document IDs in bulk body, got: %s", raw)
	}
	// NDJSON: one action line and one document line per doc, each
	// newline-terminated.
	if lines := strings.Count(raw, "\n"); lines != 4 {
		t.Errorf("expected 4 NDJSON lines, got %d", lines)
	}
}

func TestBulkUpsert_ReportsRejection(t *testing.T) {
	engine, _, cleanup := newStubEngine(t, map[string]any{
		"POST /products/_bulk": map[string]any{
			"errors": true,
			"items": []map[string]any{
				{"index": map[string]any{"_id": "office/A", "status": 201}},
				{"index": map[string]any{"_id": "office/B", "status": 400, "error": map[string]any{"type": "mapper_parsing_exception"}}},
			},
		},
	})
	defer cleanup()

	docs := []*domain.SearchDocument{
		{CatalogID: "office", SupplierAID: "A"},
		{CatalogID: "office", SupplierAID: "B"},
	}
	count, err := engine.BulkUpsert(context.Background(), docs)
	if err == nil {
		t.Error("expected error for rejected document")
	}
	if count != 1 {
		t.Errorf("expected 1 accepted, got %d", count)
	}
}

func TestBulkUpsert_Empty(t *testing.T) {
	engine, captured, cleanup := newStubEngine(t, nil)
	defer cleanup()

	count, err := engine.BulkUpsert(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0, got %d", count)
	}
	if len(*captured) != 0 {
		t.Error("expected no request for empty batch")
	}
}

func TestDeleteByCatalog(t *testing.T) {
	engine, captured, cleanup := newStubEngine(t, nil)
	defer cleanup()

	if err := engine.DeleteByCatalog(context.Background(), "office"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := (*captured)[0]
	if req.Path != "/products/_delete_by_query" {
		t.Errorf("expected _delete_by_query, got %s", req.Path)
	}
	if !strings.Contains(req.Raw, `"catalog_id":"office"`) {
		t.Errorf("expected catalog term query, got: %s", req.Raw)
	}
}

func TestFacets_ParsesBuckets(t *testing.T) {
	engine, captured, cleanup := newStubEngine(t, map[string]any{
		"POST /products/_search": map[string]any{
			"hits": map[string]any{"total": map[string]any{"value": 0}, "hits": []any{}},
			"aggregations": map[string]any{
				"manufacturers": map[string]any{
					"buckets": []map[string]any{
						{"key": "Walraven GmbH", "doc_count": 12},
						{"key": "Fischer", "doc_count": 7},
					},
				},
				"eclass_ids": map[string]any{
					"buckets": []map[string]any{
						{"key": "23140307", "doc_count": 4},
					},
				},
				"eclass_segments": map[string]any{
					"buckets": []map[string]any{
						{"key": "23", "doc_count": 4},
					},
				},
				"order_units": map[string]any{
					"buckets": []map[string]any{
						{"key": "PCE", "doc_count": 15},
					},
				},
				"catalogs": map[string]any{
					"buckets": []map[string]any{
						{"key": "office", "doc_count": 19},
					},
				},
				"price_bands": map[string]any{
					"buckets": []map[string]any{
						{"key": "0-10", "from": 0, "to": 10, "doc_count": 3},
						{"key": "1000+", "from": 1000, "doc_count": 1},
					},
				},
			},
		},
	})
	defer cleanup()

	facets, err := engine.Facets(context.Background(), domain.SearchFilters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(facets.Manufacturers) != 2 || facets.Manufacturers[0].Value != "Walraven GmbH" || facets.Manufacturers[0].Count != 12 {
		t.Errorf("unexpected manufacturer buckets: %+v", facets.Manufacturers)
	}
	if len(facets.EclassSegments) != 1 || facets.EclassSegments[0].Value != "23" {
		t.Errorf("unexpected segment buckets: %+v", facets.EclassSegments)
	}
	if len(facets.OrderUnits) != 1 || facets.OrderUnits[0].Value != "PCE" {
		t.Errorf("unexpected order unit buckets: %+v", facets.OrderUnits)
	}
	if len(facets.Catalogs) != 1 || facets.Catalogs[0].Value != "office" {
		t.Errorf("unexpected catalog buckets: %+v", facets.Catalogs)
	}
	if len(facets.PriceBands) != 2 {
		t.Fatalf("expected 2 price bands, got %d", len(facets.PriceBands))
	}
	if facets.PriceBands[0].Name != "€0 - €10" {
		t.Errorf("expected band label, got %q", facets.PriceBands[0].Name)
	}

	raw := (*captured)[0].Raw
	if !strings.Contains(raw, `"size":0`) {
		t.Errorf("facets query should request no hits: %s", raw)
	}
	if !strings.Contains(raw, `"field":"price_unit_amount"`) {
		t.Errorf("price bands should aggregate the unit price: %s", raw)
	}
	if !strings.Contains(raw, `"script":"_value.substring(0, 2)"`) {
		t.Errorf("segment buckets should derive from the eclass_id prefix: %s", raw)
	}
	if !strings.Contains(raw, `"field":"order_unit"`) {
		t.Errorf("order unit buckets should aggregate order_unit: %s", raw)
	}
}

func TestCatalogEmbeddingStats(t *testing.T) {
	engine, _, cleanup := newStubEngine(t, map[string]any{
		"POST /products/_search": map[string]any{
			"aggregations": map[string]any{
				"catalogs": map[string]any{
					"buckets": []map[string]any{
						{"key": "office", "doc_count": 10, "with_embedding": map[string]any{"doc_count": 10}},
						{"key": "tools", "doc_count": 5, "with_embedding": map[string]any{"doc_count": 0}},
					},
				},
			},
		},
	})
	defer cleanup()

	stats, err := engine.CatalogEmbeddingStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats["office"] {
		t.Error("expected office to have embeddings")
	}
	if stats["tools"] {
		t.Error("expected tools to have no embeddings")
	}
}

func TestCount(t *testing.T) {
	engine, _, cleanup := newStubEngine(t, map[string]any{
		"GET /products/_count": map[string]any{"count": 1234},
	})
	defer cleanup()

	count, err := engine.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1234 {
		t.Errorf("expected 1234, got %d", count)
	}
}

func TestHealthCheck_RedCluster(t *testing.T) {
	engine, _, cleanup := newStubEngine(t, map[string]any{
		"GET /_cluster/health": map[string]any{"status": "red"},
	})
	defer cleanup()

	if err := engine.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for red cluster")
	}
}

func TestHealthCheck_Healthy(t *testing.T) {
	engine, _, cleanup := newStubEngine(t, map[string]any{
		"GET /_cluster/health": map[string]any{"status": "yellow"},
	})
	defer cleanup()

	if err := engine.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSearchError_Propagates(t *testing.T) {
	engine, _, cleanup := newStubEngine(t, map[string]any{
		"POST /products/_search": http.StatusInternalServerError,
	})
	defer cleanup()

	_, _, err := engine.Lexical(context.Background(), "screw", false, domain.SearchFilters{}, 10)
	if err == nil {
		t.Error("expected error for 500 response")
	}
}
