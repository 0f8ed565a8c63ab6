package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProductStore = (*ProductStore)(nil)

// ProductStore implements driven.ProductStore using PostgreSQL
type ProductStore struct {
	db *DB
}

// NewProductStore creates a new ProductStore
func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

const productColumns = `catalog_id, supplier_aid, ean, manufacturer_aid, manufacturer_name,
	description_short, description_long, delivery_time, order_unit, price_quantity,
	quantity_min, quantity_interval, eclass_id, eclass_system, daily_price, mode,
	article_status_text, article_status_type, source_file, prices, media`

const upsertProductQuery = `
	INSERT INTO products (` + productColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	ON CONFLICT (catalog_id, supplier_aid) DO UPDATE SET
		ean = EXCLUDED.ean,
		manufacturer_aid = EXCLUDED.manufacturer_aid,
		manufacturer_name = EXCLUDED.manufacturer_name,
		description_short = EXCLUDED.description_short,
		description_long = EXCLUDED.description_long,
		delivery_time = EXCLUDED.delivery_time,
		order_unit = EXCLUDED.order_unit,
		price_quantity = EXCLUDED.price_quantity,
		quantity_min = EXCLUDED.quantity_min,
		quantity_interval = EXCLUDED.quantity_interval,
		eclass_id = EXCLUDED.eclass_id,
		eclass_system = EXCLUDED.eclass_system,
		daily_price = EXCLUDED.daily_price,
		mode = EXCLUDED.mode,
		article_status_text = EXCLUDED.article_status_text,
		article_status_type = EXCLUDED.article_status_type,
		source_file = EXCLUDED.source_file,
		prices = EXCLUDED.prices,
		media = EXCLUDED.media,
		updated_at = now()
`

func upsertArgs(r *domain.ProductRecord) ([]any, error) {
	pricesJSON, err := json.Marshal(r.Prices)
	if err != nil {
		return nil, fmt.Errorf("marshal prices for %s: %w", r.Key(), err)
	}
	mediaJSON, err := json.Marshal(r.Media)
	if err != nil {
		return nil, fmt.Errorf("marshal media for %s: %w", r.Key(), err)
	}
	if r.Prices == nil {
		pricesJSON = []byte("[]")
	}
	if r.Media == nil {
		mediaJSON = []byte("[]")
	}

	return []any{
		r.CatalogID,
		r.SupplierAID,
		nullIfEmpty(r.EAN),
		nullIfEmpty(r.ManufacturerAID),
		nullIfEmpty(r.ManufacturerName),
		nullIfEmpty(r.DescriptionShort),
		nullIfEmpty(r.DescriptionLong),
		NullInt(r.DeliveryTime),
		nullIfEmpty(r.OrderUnit),
		NullInt(r.PriceQuantity),
		NullInt(r.QuantityMin),
		NullInt(r.QuantityInterval),
		nullIfEmpty(r.EclassID),
		nullIfEmpty(r.EclassSystem),
		NullBool(r.DailyPrice),
		nullIfEmpty(string(r.Mode)),
		nullIfEmpty(r.ArticleStatusText),
		nullIfEmpty(r.ArticleStatusType),
		nullIfEmpty(r.SourceFile),
		pricesJSON,
		mediaJSON,
	}, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// UpsertBatch inserts or overwrites records in a single transaction.
// Duplicate keys within the batch collapse to the last occurrence before
// anything touches the database, so the transaction never upserts the same
// row twice.
func (s *ProductStore) UpsertBatch(ctx context.Context, records []*domain.ProductRecord) error {
	records = dedupeKeepLast(records)
	if len(records) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertProductQuery)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			args, err := upsertArgs(r)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("upsert %s: %w", r.Key(), err)
			}
		}
		return nil
	})
}

func dedupeKeepLast(records []*domain.ProductRecord) []*domain.ProductRecord {
	if len(records) < 2 {
		return records
	}
	seen := make(map[string]int, len(records))
	out := records[:0:0]
	for _, r := range records {
		if i, ok := seen[r.Key()]; ok {
			out[i] = r
			continue
		}
		seen[r.Key()] = len(out)
		out = append(out, r)
	}
	return out
}

// DeleteByKey removes one record. Deleting a missing row is a no-op.
func (s *ProductStore) DeleteByKey(ctx context.Context, catalogID, supplierAID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM products WHERE catalog_id = $1 AND supplier_aid = $2`,
		catalogID, supplierAID,
	)
	return err
}

// ReplaceCatalog swaps all rows of one catalog for the records of src inside
// a single transaction. Concurrent readers see the old catalog until commit.
func (s *ProductStore) ReplaceCatalog(ctx context.Context, catalogID string, src domain.RecordSource, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	var written int
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE catalog_id = $1`, catalogID); err != nil {
			return fmt.Errorf("clear catalog %s: %w", catalogID, err)
		}

		stmt, err := tx.PrepareContext(ctx, upsertProductQuery)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		batch := make([]*domain.ProductRecord, 0, batchSize)
		flush := func() error {
			for _, r := range dedupeKeepLast(batch) {
				args, err := upsertArgs(r)
				if err != nil {
					return err
				}
				if _, err := stmt.ExecContext(ctx, args...); err != nil {
					return fmt.Errorf("upsert %s: %w", r.Key(), err)
				}
			}
			batch = batch[:0]
			return nil
		}

		for {
			rec, err := src.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}

		// Rows written is the post-replace row count: in-batch duplicates
		// collapse, so counting exec calls would overstate it.
		row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE catalog_id = $1`, catalogID)
		return row.Scan(&written)
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// FindByKey retrieves one record with its prices and media.
func (s *ProductStore) FindByKey(ctx context.Context, catalogID, supplierAID string) (*domain.ProductRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE catalog_id = $1 AND supplier_aid = $2`,
		catalogID, supplierAID,
	)
	rec, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByCatalog retrieves one catalog's records ordered by supplier_aid.
func (s *ProductStore) ListByCatalog(ctx context.Context, catalogID string, limit, offset int) ([]*domain.ProductRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE catalog_id = $1
		 ORDER BY supplier_aid
		 LIMIT $2 OFFSET $3`,
		catalogID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ListAll retrieves records across all catalogs ordered by
// (catalog_id, supplier_aid).
func (s *ProductStore) ListAll(ctx context.Context, limit, offset int) ([]*domain.ProductRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products
		 ORDER BY catalog_id, supplier_aid
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// DeleteCatalog removes all rows of one catalog.
func (s *ProductStore) DeleteCatalog(ctx context.Context, catalogID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE catalog_id = $1`, catalogID)
	return err
}

// Count returns the total number of stored records.
func (s *ProductStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}

// CountByCatalog returns the number of records in one catalog.
func (s *ProductStore) CountByCatalog(ctx context.Context, catalogID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE catalog_id = $1`, catalogID,
	).Scan(&count)
	return count, err
}

// ListCatalogs returns per-catalog counts with the most recent source file.
func (s *ProductStore) ListCatalogs(ctx context.Context) ([]*domain.CatalogInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT catalog_id, COUNT(*),
		       COALESCE(MAX(source_file), '')
		FROM products
		GROUP BY catalog_id
		ORDER BY catalog_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []*domain.CatalogInfo
	for rows.Next() {
		info := &domain.CatalogInfo{}
		if err := rows.Scan(&info.CatalogID, &info.ProductCount, &info.SourceFile); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic
type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.ProductRecord, error) {
	var (
		rec        domain.ProductRecord
		ean        sql.NullString
		mfrAID     sql.NullString
		mfrName    sql.NullString
		descShort  sql.NullString
		descLong   sql.NullString
		delivery   sql.NullInt64
		orderUnit  sql.NullString
		priceQty   sql.NullInt64
		qtyMin     sql.NullInt64
		qtyInt     sql.NullInt64
		eclassID   sql.NullString
		eclassSys  sql.NullString
		daily      sql.NullBool
		mode       sql.NullString
		statusText sql.NullString
		statusType sql.NullString
		sourceFile sql.NullString
		pricesJSON []byte
		mediaJSON  []byte
	)

	err := row.Scan(
		&rec.CatalogID,
		&rec.SupplierAID,
		&ean,
		&mfrAID,
		&mfrName,
		&descShort,
		&descLong,
		&delivery,
		&orderUnit,
		&priceQty,
		&qtyMin,
		&qtyInt,
		&eclassID,
		&eclassSys,
		&daily,
		&mode,
		&statusText,
		&statusType,
		&sourceFile,
		&pricesJSON,
		&mediaJSON,
	)
	if err != nil {
		return nil, err
	}

	rec.EAN = ean.String
	rec.ManufacturerAID = mfrAID.String
	rec.ManufacturerName = mfrName.String
	rec.DescriptionShort = descShort.String
	rec.DescriptionLong = descLong.String
	rec.DeliveryTime = IntPtr(delivery)
	rec.OrderUnit = orderUnit.String
	rec.PriceQuantity = IntPtr(priceQty)
	rec.QuantityMin = IntPtr(qtyMin)
	rec.QuantityInterval = IntPtr(qtyInt)
	rec.EclassID = eclassID.String
	rec.EclassSystem = eclassSys.String
	rec.DailyPrice = BoolPtr(daily)
	rec.Mode = domain.ArticleMode(mode.String)
	rec.ArticleStatusText = statusText.String
	rec.ArticleStatusType = statusType.String
	rec.SourceFile = sourceFile.String

	if len(pricesJSON) > 0 {
		if err := json.Unmarshal(pricesJSON, &rec.Prices); err != nil {
			return nil, fmt.Errorf("unmarshal prices for %s: %w", rec.Key(), err)
		}
	}
	if len(mediaJSON) > 0 {
		if err := json.Unmarshal(mediaJSON, &rec.Media); err != nil {
			return nil, fmt.Errorf("unmarshal media for %s: %w", rec.Key(), err)
		}
	}

	return &rec, nil
}

func collectProducts(rows *sql.Rows) ([]*domain.ProductRecord, error) {
	var records []*domain.ProductRecord
	for rows.Next() {
		rec, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
