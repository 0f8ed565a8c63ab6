package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driving"
)

func newTestImporter(store *mocks.MockProductStore, lock *mocks.MockDistributedLock) *ImporterService {
	return NewImporterService(ImporterConfig{
		Store:      store,
		Lock:       lock,
		RetryDelay: time.Millisecond,
	})
}

func rec(catalogID, supplierAID string, mode domain.ArticleMode) *domain.ProductRecord {
	return &domain.ProductRecord{
		CatalogID:        catalogID,
		SupplierAID:      supplierAID,
		Mode:             mode,
		DescriptionShort: "Item " + supplierAID,
	}
}

func TestImporterService_ImportCatalog_Merge(t *testing.T) {
	store := mocks.NewMockProductStore()
	lock := mocks.NewMockDistributedLock()
	svc := newTestImporter(store, lock)

	src := domain.NewSliceSource([]*domain.ProductRecord{
		rec("", "A-1", domain.ModeNew),
		rec("", "A-2", ""),
		rec("", "A-3", domain.ModeUpdate),
	})

	result, err := svc.ImportCatalog(context.Background(), "cat-1", src, driving.ImportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Imported != 3 {
		t.Errorf("expected 3 imported, got %d", result.Stats.Imported)
	}
	count, _ := store.CountByCatalog(context.Background(), "cat-1")
	if count != 3 {
		t.Errorf("expected 3 stored records, got %d", count)
	}
	if lock.IsHeld("import:cat-1") {
		t.Error("expected import lock to be released")
	}
}

func TestImporterService_ImportCatalog_DeleteMode(t *testing.T) {
	store := mocks.NewMockProductStore()
	lock := mocks.NewMockDistributedLock()
	svc := newTestImporter(store, lock)

	// Upsert and delete of the same key in one stream: the delete comes
	// later, so the record must not survive.
	src := domain.NewSliceSource([]*domain.ProductRecord{
		rec("", "A-1", domain.ModeNew),
		rec("", "A-2", domain.ModeNew),
		rec("", "A-1", domain.ModeDelete),
		rec("", "A-9", domain.ModeDelete), // never imported, not an error
	})

	result, err := svc.ImportCatalog(context.Background(), "cat-1", src, driving.ImportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Imported != 2 {
		t.Errorf("expected 2 imported, got %d", result.Stats.Imported)
	}
	if result.Stats.Deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", result.Stats.Deleted)
	}
	if _, err := store.FindByKey(context.Background(), "cat-1", "A-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected A-1 to be deleted, got err=%v", err)
	}
	if _, err := store.FindByKey(context.Background(), "cat-1", "A-2"); err != nil {
		t.Errorf("expected A-2 to survive: %v", err)
	}
}

func TestImporterService_ImportCatalog_LastInStreamWins(t *testing.T) {
	store := mocks.NewMockProductStore()
	lock := mocks.NewMockDistributedLock()
	svc := newTestImporter(store, lock)

	first := rec("", "A-1", domain.ModeNew)
	first.DescriptionShort = "old"
	second := rec("", "A-1", domain.ModeUpdate)
	second.DescriptionShort = "new"

	_, err := svc.ImportCatalog(context.Background(), "cat-1", domain.NewSliceSource([]*domain.ProductRecord{first, second}), driving.ImportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := store.FindByKey(context.Background(), "cat-1", "A-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.DescriptionShort != "new" {
		t.Errorf("expected last occurrence to win, got %q", stored.DescriptionShort)
	}
}

func TestImporterService_ImportCatalog_SkipsInvalid(t *testing.T) {
	store := mocks.NewMockProductStore()
	lock := mocks.NewMockDistributedLock()
	svc := newTestImporter(store, lock)

	src := domain.NewSliceSource([]*domain.ProductRecord{
		rec("", "A-1", domain.ModeNew),
		{DescriptionShort: "no supplier aid"},
		rec("", "A-2", domain.ModeNew),
	})

	result, err := svc.ImportCatalog(context.Background(), "cat-1", src, driving.ImportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Imported != 2 {
		t.Errorf("expected 2 imported, got %d", result.Stats.Imported)
	}
	if result.Stats.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", result.Stats.Skipped)
	}
}

func TestImporterService_ImportCatalog_Replace(t *testing.T) {
	store := mocks.NewMockProductStore()
	lock := mocks.NewMockDistributedLock()
	svc := newTestImporter(store, lock)

	// Preload the catalog, plus a bystander catalog that must survive.
	_ = store.UpsertBatch(context.Background(), []*domain.ProductRecord{
		rec("cat-1", "OLD-1", ""),
		rec("cat-1", "OLD-2", ""),
		rec("cat-2", "OTHER-1", ""),
	})

	src := domain.NewSliceSource([]*domain.ProductRecord{
		rec("", "NEW-1", domain.ModeNew),
	})

	result, err := svc.ImportCatalog(context.Background(), "cat-1", src, driving.ImportOptions{Replace: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Imported != 1 {
		t.Errorf("expected 1 imported, got %d", result.Stats.Imported)
	}

	if _, err := store.FindByKey(context.Background(), "cat-1", "OLD-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("expected old records to be replaced")
	}
	if _, err := store.FindByKey(context.Background(), "cat-1", "NEW-1"); err != nil {
		t.Errorf("expected new record to be present: %v", err)
	}
	if _, err := store.FindByKey(context.Background(), "cat-2", "OTHER-1"); err != nil {
		t.Errorf("expected other catalog to be untouched: %v", err)
	}
}

func TestImporterService_ImportCatalog_ReplaceDropsDeleteMode(t *testing.T) {
	store := mocks.NewMockProductStore()
	lock := mocks.NewMockDistributedLock()
	svc := newTestImporter(store, lock)

	src := domain.NewSliceSource([]*domain.ProductRecord{
		rec("", "A-1", domain.ModeNew),
		rec("", "A-2", domain.ModeDelete),
	})

	result, err := svc.ImportCatalog(context.Background(), "cat-1", src, driving.ImportOptions{Replace: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Imported != 1 {
		t.Errorf("expected 1 imported, got %d", result.Stats.Imported)
	}
	if result.Stats.Skipped != 1 {
		t.Errorf("expected delete-mode record to be skipped, got %d", result.Stats.Skipped)
	}
}

func TestImporterService_ImportCatalog_RejectsConcurrent(t *testing.T) {
	store := mocks.NewMockProductStore()
	lock := mocks.NewMockDistributedLock()
	svc := newTestImporter(store, lock)

	lock.SetLockHeld("import:cat-1", time.Minute)

	_, err := svc.ImportCatalog(context.Background(), "cat-1", domain.NewSliceSource(nil), driving.ImportOptions{})
	if !errors.Is(err, domain.ErrImportInProgress) {
		t.Fatalf("expected ErrImportInProgress, got %v", err)
	}

	// A different catalog is not blocked.
	_, err = svc.ImportCatalog(context.Background(), "cat-2", domain.NewSliceSource(nil), driving.ImportOptions{})
	if err != nil {
		t.Fatalf("expected cat-2 import to proceed: %v", err)
	}
}

func TestImporterService_ImportCatalog_Idempotent(t *testing.T) {
	store := mocks.NewMockProductStore()
	lock := mocks.NewMockDistributedLock()
	svc := newTestImporter(store, lock)

	records := []*domain.ProductRecord{
		rec("", "A-1", domain.ModeNew),
		rec("", "A-2", domain.ModeNew),
	}

	for i := 0; i < 2; i++ {
		src := domain.NewSliceSource([]*domain.ProductRecord{
			rec("", "A-1", domain.ModeNew),
			rec("", "A-2", domain.ModeNew),
		})
		if _, err := svc.ImportCatalog(context.Background(), "cat-1", src, driving.ImportOptions{}); err != nil {
			t.Fatalf("import %d failed: %v", i, err)
		}
	}

	count, _ := store.CountByCatalog(context.Background(), "cat-1")
	if count != len(records) {
		t.Errorf("expected %d records after repeated import, got %d", len(records), count)
	}
}

func TestImporterService_ImportCatalog_BatchFailureContinues(t *testing.T) {
	store := mocks.NewMockProductStore()
	lock := mocks.NewMockDistributedLock()
	svc := newTestImporter(store, lock)

	store.UpsertErr = errors.New("connection reset")

	src := domain.NewSliceSource([]*domain.ProductRecord{
		rec("", "A-1", domain.ModeNew),
	})

	result, err := svc.ImportCatalog(context.Background(), "cat-1", src, driving.ImportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Errors != 1 {
		t.Errorf("expected 1 batch error, got %d", result.Stats.Errors)
	}
	if result.Stats.Imported != 0 {
		t.Errorf("expected 0 imported, got %d", result.Stats.Imported)
	}
}
