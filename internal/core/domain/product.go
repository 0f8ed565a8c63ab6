package domain

import (
	"fmt"
	"io"
)

// ArticleMode is the change mode carried by a catalog article.
// BMEcat encodes it as the ARTICLE element's "mode" attribute; an absent
// attribute means "new".
type ArticleMode string

const (
	ModeNew    ArticleMode = "new"
	ModeUpdate ArticleMode = "update"
	ModeDelete ArticleMode = "delete"
)

// Valid reports whether the mode is one of the known values.
// The empty mode is valid and treated as ModeNew.
func (m ArticleMode) Valid() bool {
	switch m {
	case "", ModeNew, ModeUpdate, ModeDelete:
		return true
	}
	return false
}

// ProductRecord is one normalized catalog article.
// (catalog_id, supplier_aid) is the sole identity key: ean may repeat or be
// absent, so it never participates in identity.
type ProductRecord struct {
	CatalogID         string       `json:"catalog_id,omitempty"`
	SupplierAID       string       `json:"supplier_aid"`
	EAN               string       `json:"ean,omitempty"`
	ManufacturerAID   string       `json:"manufacturer_aid,omitempty"`
	ManufacturerName  string       `json:"manufacturer_name,omitempty"`
	DescriptionShort  string       `json:"description_short,omitempty"`
	DescriptionLong   string       `json:"description_long,omitempty"`
	DeliveryTime      *int         `json:"delivery_time,omitempty"`
	OrderUnit         string       `json:"order_unit,omitempty"`
	PriceQuantity     *int         `json:"price_quantity,omitempty"`
	QuantityMin       *int         `json:"quantity_min,omitempty"`
	QuantityInterval  *int         `json:"quantity_interval,omitempty"`
	EclassID          string       `json:"eclass_id,omitempty"`
	EclassSystem      string       `json:"eclass_system,omitempty"`
	DailyPrice        *bool        `json:"daily_price,omitempty"`
	Mode              ArticleMode  `json:"mode,omitempty"`
	ArticleStatusText string       `json:"article_status_text,omitempty"`
	ArticleStatusType string       `json:"article_status_type,omitempty"`
	SourceFile        string       `json:"source_file,omitempty"`
	Prices            []PriceEntry `json:"prices,omitempty"`
	Media             []MediaEntry `json:"media,omitempty"`
}

// Key returns the identity key within the catalog namespace.
func (r *ProductRecord) Key() string {
	return r.CatalogID + "/" + r.SupplierAID
}

// Validate checks the record carries its required identity field.
func (r *ProductRecord) Validate() error {
	if r.SupplierAID == "" {
		return fmt.Errorf("%w: supplier_aid is required", ErrInvalidInput)
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("%w: unknown article mode %q", ErrInvalidInput, r.Mode)
	}
	return nil
}

// PrimaryPrice returns the first price entry, which is the one denormalized
// onto search documents for filtering and display.
func (r *ProductRecord) PrimaryPrice() *PriceEntry {
	if len(r.Prices) == 0 {
		return nil
	}
	return &r.Prices[0]
}

// MediaEntry is one MIME attachment of an article.
type MediaEntry struct {
	Source      string `json:"source,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
}

// CatalogHeader holds the catalog-level metadata extracted from the
// document's HEADER element.
type CatalogHeader struct {
	CatalogID      string `json:"catalog_id,omitempty"`
	CatalogVersion string `json:"catalog_version,omitempty"`
	CatalogName    string `json:"catalog_name,omitempty"`
	Language       string `json:"language,omitempty"`
	Territory      string `json:"territory,omitempty"`
	Currency       string `json:"currency,omitempty"`
	GeneratedAt    string `json:"generated_at,omitempty"`
	SupplierID     string `json:"supplier_id,omitempty"`
	SupplierName   string `json:"supplier_name,omitempty"`
	BuyerName      string `json:"buyer_name,omitempty"`
	AgreementID    string `json:"agreement_id,omitempty"`
	AgreementStart string `json:"agreement_start,omitempty"`
	AgreementEnd   string `json:"agreement_end,omitempty"`
}

// CatalogInfo describes one catalog namespace currently present in the store.
type CatalogInfo struct {
	CatalogID     string `json:"catalog_id"`
	ProductCount  int    `json:"product_count"`
	SourceFile    string `json:"source_file,omitempty"`
	HasEmbeddings bool   `json:"has_embeddings"`
}

// RecordSource yields ProductRecords one at a time.
// Next returns io.EOF after the final record. Implementations must be
// single-pass and bounded in memory regardless of stream length.
type RecordSource interface {
	Next() (*ProductRecord, error)
}

// SliceSource adapts an in-memory slice to a RecordSource.
type SliceSource struct {
	records []*ProductRecord
	pos     int
}

// NewSliceSource creates a RecordSource over the given records.
func NewSliceSource(records []*ProductRecord) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next() (*ProductRecord, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}
