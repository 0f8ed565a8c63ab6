package domain

import (
	"html"
	"regexp"
	"strings"
)

const (
	// maxLongDescriptionChars bounds the long description clause.
	maxLongDescriptionChars = 2000

	// maxEmbeddingTextChars bounds the whole embedding input. Sized for
	// embedding models with ~8k token limits.
	maxEmbeddingTextChars = 8000

	embeddingClauseSeparator = ". "
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanHTML strips HTML entities and tags and collapses whitespace.
// Catalog descriptions frequently carry markup from supplier export tools.
func CleanHTML(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(text)
	text = htmlTagPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// BuildEmbeddingText derives the embedding input for a record. The mapping is
// deterministic: the same record always yields the same text, which lets
// sync runs skip re-embedding unchanged products.
//
// Clauses are appended in fixed order and only when their source field is
// non-empty: short description, long description (truncated), manufacturer,
// classification.
func BuildEmbeddingText(rec *ProductRecord) string {
	var parts []string

	if rec.DescriptionShort != "" {
		parts = append(parts, CleanHTML(rec.DescriptionShort))
	}

	if rec.DescriptionLong != "" {
		parts = append(parts, truncate(CleanHTML(rec.DescriptionLong), maxLongDescriptionChars))
	}

	if rec.ManufacturerName != "" {
		parts = append(parts, "Manufacturer: "+rec.ManufacturerName)
	}

	if rec.EclassID != "" {
		parts = append(parts, "Classification: "+rec.EclassID)
	}

	return truncate(strings.Join(parts, embeddingClauseSeparator), maxEmbeddingTextChars)
}

// truncate cuts s to max characters, rune-safe, with an ellipsis marker.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
