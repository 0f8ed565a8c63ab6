package mocks

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// MockProductStore is a mock implementation of ProductStore for testing
type MockProductStore struct {
	mu      sync.RWMutex
	records map[string]*domain.ProductRecord // key: catalog_id/supplier_aid
	sources map[string]string                // catalog_id -> source file

	// Optional failure injection
	UpsertErr  error
	ReplaceErr error
}

// NewMockProductStore creates a new MockProductStore
func NewMockProductStore() *MockProductStore {
	return &MockProductStore{
		records: make(map[string]*domain.ProductRecord),
		sources: make(map[string]string),
	}
}

func (m *MockProductStore) UpsertBatch(ctx context.Context, records []*domain.ProductRecord) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Map assignment gives last-occurrence-wins for duplicate keys.
	for _, rec := range records {
		m.records[rec.Key()] = rec
		if rec.SourceFile != "" {
			m.sources[rec.CatalogID] = rec.SourceFile
		}
	}
	return nil
}

func (m *MockProductStore) DeleteByKey(ctx context.Context, catalogID, supplierAID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, catalogID+"/"+supplierAID)
	return nil
}

func (m *MockProductStore) ReplaceCatalog(ctx context.Context, catalogID string, src domain.RecordSource, batchSize int) (int, error) {
	if m.ReplaceErr != nil {
		return 0, m.ReplaceErr
	}

	// Drain the source first so a mid-stream failure leaves the old
	// catalog intact, mirroring the transactional adapter.
	incoming := make(map[string]*domain.ProductRecord)
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		rec.CatalogID = catalogID
		incoming[rec.Key()] = rec
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, rec := range m.records {
		if rec.CatalogID == catalogID {
			delete(m.records, key)
		}
	}
	for key, rec := range incoming {
		m.records[key] = rec
		if rec.SourceFile != "" {
			m.sources[catalogID] = rec.SourceFile
		}
	}
	return len(incoming), nil
}

func (m *MockProductStore) FindByKey(ctx context.Context, catalogID, supplierAID string) (*domain.ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[catalogID+"/"+supplierAID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (m *MockProductStore) ListByCatalog(ctx context.Context, catalogID string, limit, offset int) ([]*domain.ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var recs []*domain.ProductRecord
	for _, rec := range m.records {
		if rec.CatalogID == catalogID {
			recs = append(recs, rec)
		}
	}
	return window(sortRecords(recs), limit, offset), nil
}

func (m *MockProductStore) ListAll(ctx context.Context, limit, offset int) ([]*domain.ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := make([]*domain.ProductRecord, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	return window(sortRecords(recs), limit, offset), nil
}

func (m *MockProductStore) DeleteCatalog(ctx context.Context, catalogID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, rec := range m.records {
		if rec.CatalogID == catalogID {
			delete(m.records, key)
		}
	}
	delete(m.sources, catalogID)
	return nil
}

func (m *MockProductStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MockProductStore) CountByCatalog(ctx context.Context, catalogID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rec := range m.records {
		if rec.CatalogID == catalogID {
			count++
		}
	}
	return count, nil
}

func (m *MockProductStore) ListCatalogs(ctx context.Context) ([]*domain.CatalogInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, rec := range m.records {
		counts[rec.CatalogID]++
	}
	infos := make([]*domain.CatalogInfo, 0, len(counts))
	for catalogID, count := range counts {
		infos = append(infos, &domain.CatalogInfo{
			CatalogID:    catalogID,
			ProductCount: count,
			SourceFile:   m.sources[catalogID],
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CatalogID < infos[j].CatalogID
	})
	return infos, nil
}

func sortRecords(recs []*domain.ProductRecord) []*domain.ProductRecord {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CatalogID != recs[j].CatalogID {
			return recs[i].CatalogID < recs[j].CatalogID
		}
		return recs[i].SupplierAID < recs[j].SupplierAID
	})
	return recs
}

func window(recs []*domain.ProductRecord, limit, offset int) []*domain.ProductRecord {
	if offset >= len(recs) {
		return []*domain.ProductRecord{}
	}
	end := offset + limit
	if limit <= 0 || end > len(recs) {
		end = len(recs)
	}
	return recs[offset:end]
}

// Helper methods for testing

func (m *MockProductStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*domain.ProductRecord)
	m.sources = make(map[string]string)
}
