// Package bmecat parses BMEcat 1.2 catalog documents into normalized
// product records.
package bmecat

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// Namespace is the BMEcat 1.2 "new catalog" namespace. Documents outside it
// are not BMEcat 1.2 and produce no articles.
const Namespace = "http://www.bmecat.org/bmecat/1.2/bmecat_new_catalog"

// Stats counts the parser's work so far.
type Stats struct {
	// Articles is how many ARTICLE elements yielded a record.
	Articles int

	// Skipped is how many ARTICLE elements were dropped: malformed XML
	// inside the element, unparsable numeric fields or a missing
	// SUPPLIER_AID.
	Skipped int
}

// Parser streams ARTICLE elements out of a BMEcat document one record at a
// time. It implements domain.RecordSource and holds one article in memory
// regardless of document size.
//
// A malformed article is skipped and counted, not fatal: supplier exports
// routinely contain a handful of broken articles in millions.
type Parser struct {
	dec        *xml.Decoder
	logger     *slog.Logger
	sourceFile string
	header     *domain.CatalogHeader
	stats      Stats
}

// Ensure Parser implements RecordSource
var _ domain.RecordSource = (*Parser)(nil)

// NewParser creates a parser over r. sourceFile is recorded on every record
// for provenance and may be empty; only its base name is kept, so every
// entry point records the same value for the same file.
func NewParser(r io.Reader, sourceFile string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if sourceFile != "" {
		sourceFile = filepath.Base(sourceFile)
	}
	return &Parser{
		dec:        xml.NewDecoder(r),
		logger:     logger,
		sourceFile: sourceFile,
	}
}

// Header returns the catalog header, or nil before the HEADER element has
// been consumed. BMEcat places HEADER before the first article, so it is
// available once Next has returned anything.
func (p *Parser) Header() *domain.CatalogHeader {
	return p.header
}

// Stats returns the counts so far.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Next returns the next article record, io.EOF at end of document, or an
// error when the document itself is unreadable.
func (p *Parser) Next() (*domain.ProductRecord, error) {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("reading bmecat document: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Space != Namespace {
			continue
		}

		switch start.Name.Local {
		case "HEADER":
			var hdr xmlHeader
			if err := p.dec.DecodeElement(&hdr, &start); err != nil {
				return nil, fmt.Errorf("decoding header: %w", err)
			}
			p.header = hdr.toDomain()
		case "ARTICLE":
			var art xmlArticle
			if err := p.dec.DecodeElement(&art, &start); err != nil {
				// The decoder has consumed the broken element, the
				// stream stays usable.
				p.logger.Warn("skipping malformed article", "source", p.sourceFile, "error", err)
				p.stats.Skipped++
				continue
			}
			rec, err := art.toDomain(p.sourceFile)
			if err != nil {
				p.logger.Warn("skipping article", "source", p.sourceFile, "supplier_aid", art.SupplierAID, "error", err)
				p.stats.Skipped++
				continue
			}
			p.stats.Articles++
			return rec, nil
		}
	}
}

// Wire structs keep every leaf as a string so the XML decode itself cannot
// fail on bad numbers; conversion happens afterwards per article.

type xmlHeader struct {
	Catalog struct {
		CatalogID      string        `xml:"CATALOG_ID"`
		CatalogVersion string        `xml:"CATALOG_VERSION"`
		CatalogName    string        `xml:"CATALOG_NAME"`
		Language       string        `xml:"LANGUAGE"`
		Territory      string        `xml:"TERRITORY"`
		Currency       string        `xml:"CURRENCY"`
		DateTimes      []xmlDateTime `xml:"DATETIME"`
	} `xml:"CATALOG"`
	Supplier struct {
		SupplierID   string `xml:"SUPPLIER_ID"`
		SupplierName string `xml:"SUPPLIER_NAME"`
	} `xml:"SUPPLIER"`
	Buyer struct {
		BuyerName string `xml:"BUYER_NAME"`
	} `xml:"BUYER"`
	Agreement struct {
		AgreementID string        `xml:"AGREEMENT_ID"`
		DateTimes   []xmlDateTime `xml:"DATETIME"`
	} `xml:"AGREEMENT"`
}

type xmlDateTime struct {
	Type string `xml:"type,attr"`
	Date string `xml:"DATE"`
	Time string `xml:"TIME"`
}

func (h *xmlHeader) toDomain() *domain.CatalogHeader {
	hdr := &domain.CatalogHeader{
		CatalogID:      h.Catalog.CatalogID,
		CatalogVersion: h.Catalog.CatalogVersion,
		CatalogName:    h.Catalog.CatalogName,
		Language:       h.Catalog.Language,
		Territory:      h.Catalog.Territory,
		Currency:       h.Catalog.Currency,
		SupplierID:     h.Supplier.SupplierID,
		SupplierName:   h.Supplier.SupplierName,
		BuyerName:      strings.TrimSpace(h.Buyer.BuyerName),
		AgreementID:    h.Agreement.AgreementID,
	}

	for _, dt := range h.Catalog.DateTimes {
		if dt.Type == "generation_date" && dt.Date != "" {
			hdr.GeneratedAt = dt.Date
			if dt.Time != "" {
				hdr.GeneratedAt = dt.Date + "T" + dt.Time
			}
		}
	}
	for _, dt := range h.Agreement.DateTimes {
		switch dt.Type {
		case "agreement_start_date":
			hdr.AgreementStart = dt.Date
		case "agreement_end_date":
			hdr.AgreementEnd = dt.Date
		}
	}
	return hdr
}

type xmlArticle struct {
	Mode        string `xml:"mode,attr"`
	SupplierAID string `xml:"SUPPLIER_AID"`
	Details     struct {
		DescriptionShort string `xml:"DESCRIPTION_SHORT"`
		DescriptionLong  string `xml:"DESCRIPTION_LONG"`
		EAN              string `xml:"EAN"`
		ManufacturerAID  string `xml:"MANUFACTURER_AID"`
		ManufacturerName string `xml:"MANUFACTURER_NAME"`
		DeliveryTime     string `xml:"DELIVERY_TIME"`
		ArticleStatus    struct {
			Type string `xml:"type,attr"`
			Text string `xml:",chardata"`
		} `xml:"ARTICLE_STATUS"`
	} `xml:"ARTICLE_DETAILS"`
	Order struct {
		OrderUnit        string `xml:"ORDER_UNIT"`
		PriceQuantity    string `xml:"PRICE_QUANTITY"`
		QuantityMin      string `xml:"QUANTITY_MIN"`
		QuantityInterval string `xml:"QUANTITY_INTERVAL"`
	} `xml:"ARTICLE_ORDER_DETAILS"`
	PriceDetails struct {
		DailyPrice string     `xml:"DAILY_PRICE"`
		Prices     []xmlPrice `xml:"ARTICLE_PRICE"`
	} `xml:"ARTICLE_PRICE_DETAILS"`
	Features struct {
		ReferenceGroupID   string `xml:"REFERENCE_FEATURE_GROUP_ID"`
		ReferenceSystemRef string `xml:"REFERENCE_FEATURE_SYSTEM_NAME"`
	} `xml:"ARTICLE_FEATURES"`
	MimeInfo struct {
		Mimes []xmlMime `xml:"MIME"`
	} `xml:"MIME_INFO"`
}

type xmlPrice struct {
	PriceType string `xml:"price_type,attr"`
	Amount    string `xml:"PRICE_AMOUNT"`
	Currency  string `xml:"PRICE_CURRENCY"`
	Tax       string `xml:"TAX"`
}

type xmlMime struct {
	Type        string `xml:"MIME_TYPE"`
	Source      string `xml:"MIME_SOURCE"`
	Description string `xml:"MIME_DESCR"`
	Purpose     string `xml:"MIME_PURPOSE"`
}

func (a *xmlArticle) toDomain(sourceFile string) (*domain.ProductRecord, error) {
	if strings.TrimSpace(a.SupplierAID) == "" {
		return nil, fmt.Errorf("%w: article without SUPPLIER_AID", domain.ErrInvalidInput)
	}

	rec := &domain.ProductRecord{
		SupplierAID:       strings.TrimSpace(a.SupplierAID),
		EAN:               a.Details.EAN,
		ManufacturerAID:   a.Details.ManufacturerAID,
		ManufacturerName:  a.Details.ManufacturerName,
		DescriptionShort:  a.Details.DescriptionShort,
		DescriptionLong:   a.Details.DescriptionLong,
		OrderUnit:         a.Order.OrderUnit,
		EclassID:          a.Features.ReferenceGroupID,
		EclassSystem:      a.Features.ReferenceSystemRef,
		Mode:              domain.ArticleMode(a.Mode),
		ArticleStatusText: strings.TrimSpace(a.Details.ArticleStatus.Text),
		ArticleStatusType: a.Details.ArticleStatus.Type,
		SourceFile:        sourceFile,
	}

	var err error
	if rec.DeliveryTime, err = optionalInt(a.Details.DeliveryTime, "DELIVERY_TIME"); err != nil {
		return nil, err
	}
	if rec.PriceQuantity, err = optionalInt(a.Order.PriceQuantity, "PRICE_QUANTITY"); err != nil {
		return nil, err
	}
	if rec.QuantityMin, err = optionalInt(a.Order.QuantityMin, "QUANTITY_MIN"); err != nil {
		return nil, err
	}
	if rec.QuantityInterval, err = optionalInt(a.Order.QuantityInterval, "QUANTITY_INTERVAL"); err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(a.PriceDetails.DailyPrice); v != "" {
		daily := strings.EqualFold(v, "true")
		rec.DailyPrice = &daily
	}

	for _, p := range a.PriceDetails.Prices {
		entry := domain.PriceEntry{
			PriceType: p.PriceType,
			Currency:  p.Currency,
		}
		if v := strings.TrimSpace(p.Amount); v != "" {
			if entry.Amount, err = decimal.NewFromString(v); err != nil {
				return nil, fmt.Errorf("%w: PRICE_AMOUNT %q: %v", domain.ErrInvalidInput, v, err)
			}
		}
		if v := strings.TrimSpace(p.Tax); v != "" {
			if entry.Tax, err = decimal.NewFromString(v); err != nil {
				return nil, fmt.Errorf("%w: TAX %q: %v", domain.ErrInvalidInput, v, err)
			}
		}
		rec.Prices = append(rec.Prices, entry)
	}

	for _, m := range a.MimeInfo.Mimes {
		entry := domain.MediaEntry{
			Source:      strings.TrimSpace(m.Source),
			Type:        m.Type,
			Description: m.Description,
			Purpose:     m.Purpose,
		}
		if entry != (domain.MediaEntry{}) {
			rec.Media = append(rec.Media, entry)
		}
	}

	return rec, nil
}

func optionalInt(raw, field string) (*int, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not an integer", domain.ErrInvalidInput, field, v)
	}
	return &n, nil
}
