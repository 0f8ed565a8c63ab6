package domain

// SourceURIScheme prefixes document provenance URIs.
const SourceURIScheme = "bmecat"

// DocumentID derives the search document identity from the record's identity
// key. The same key always yields the same ID, so re-indexing upserts instead
// of duplicating, and distinct catalogs never collide on supplier_aid.
func DocumentID(catalogID, supplierAID string) string {
	if catalogID == "" {
		catalogID = "default"
	}
	return catalogID + "/" + supplierAID
}

// SourceURI builds the provenance URI of a record's search document.
func SourceURI(catalogID, supplierAID string) string {
	return SourceURIScheme + "://" + DocumentID(catalogID, supplierAID)
}

// SearchDocument is the derived, non-authoritative shape of a product in the
// search engine. It is fully regenerated from ProductRecords on each sync and
// holds no state not traceable to the relational source.
type SearchDocument struct {
	SupplierAID      string `json:"supplier_aid"`
	EAN              string `json:"ean,omitempty"`
	ManufacturerAID  string `json:"manufacturer_aid,omitempty"`
	ManufacturerName string `json:"manufacturer_name,omitempty"`
	DescriptionShort string `json:"description_short,omitempty"`
	DescriptionLong  string `json:"description_long,omitempty"`
	DeliveryTime     *int   `json:"delivery_time,omitempty"`
	OrderUnit        string `json:"order_unit,omitempty"`
	PriceQuantity    *int   `json:"price_quantity,omitempty"`
	QuantityMin      *int   `json:"quantity_min,omitempty"`

	EclassID     string `json:"eclass_id,omitempty"`
	EclassName   string `json:"eclass_name,omitempty"`
	EclassSystem string `json:"eclass_system,omitempty"`

	// Provenance
	CatalogID  string `json:"catalog_id,omitempty"`
	SourceURI  string `json:"source_uri,omitempty"`
	SourceFile string `json:"source_file,omitempty"`

	// Primary price, denormalized for filtering and display
	PriceAmount     *float64 `json:"price_amount,omitempty"`
	PriceUnitAmount *float64 `json:"price_unit_amount,omitempty"`
	PriceCurrency   string   `json:"price_currency,omitempty"`
	PriceType       string   `json:"price_type,omitempty"`

	Image  string       `json:"image,omitempty"`
	Prices []PriceEntry `json:"prices,omitempty"`
	Media  []MediaEntry `json:"media,omitempty"`

	Embedding     []float32 `json:"embedding,omitempty"`
	EmbeddingText string    `json:"embedding_text,omitempty"` // Stored, not searched
}

// ID returns the document's deterministic identity.
func (d *SearchDocument) ID() string {
	return DocumentID(d.CatalogID, d.SupplierAID)
}

// NewSearchDocument derives a search document from a persisted record.
// The unit price is recomputed from amount and price_quantity, never copied
// from stored state.
func NewSearchDocument(rec *ProductRecord) *SearchDocument {
	doc := &SearchDocument{
		SupplierAID:      rec.SupplierAID,
		EAN:              rec.EAN,
		ManufacturerAID:  rec.ManufacturerAID,
		ManufacturerName: rec.ManufacturerName,
		DescriptionShort: rec.DescriptionShort,
		DescriptionLong:  rec.DescriptionLong,
		DeliveryTime:     rec.DeliveryTime,
		OrderUnit:        rec.OrderUnit,
		PriceQuantity:    rec.PriceQuantity,
		QuantityMin:      rec.QuantityMin,
		EclassID:         rec.EclassID,
		EclassSystem:     rec.EclassSystem,
		CatalogID:        rec.CatalogID,
		SourceFile:       rec.SourceFile,
		SourceURI:        SourceURI(rec.CatalogID, rec.SupplierAID),
		Prices:           rec.Prices,
		Media:            rec.Media,
	}

	if price := rec.PrimaryPrice(); price != nil {
		amount, _ := price.Amount.Float64()
		doc.PriceAmount = &amount
		doc.PriceCurrency = price.Currency
		doc.PriceType = price.PriceType
		if unit, ok := rec.UnitPrice(); ok {
			u, _ := unit.Float64()
			doc.PriceUnitAmount = &u
		}
	}

	if len(rec.Media) > 0 {
		doc.Image = rec.Media[0].Source
	}

	return doc
}
