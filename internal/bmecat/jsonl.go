package bmecat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// maxJSONLLineSize bounds one record line. Long descriptions from supplier
// exports can run to megabytes once escaped.
const maxJSONLLineSize = 16 * 1024 * 1024

// JSONLWriter writes records as JSON Lines, one record per line.
type JSONLWriter struct {
	w     *bufio.Writer
	count int
}

// NewJSONLWriter creates a writer over w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write appends one record line.
func (jw *JSONLWriter) Write(rec *domain.ProductRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.SupplierAID, err)
	}
	if _, err := jw.w.Write(data); err != nil {
		return err
	}
	if err := jw.w.WriteByte('\n'); err != nil {
		return err
	}
	jw.count++
	return nil
}

// Count returns how many records were written.
func (jw *JSONLWriter) Count() int {
	return jw.count
}

// Flush writes buffered lines through to the underlying writer.
func (jw *JSONLWriter) Flush() error {
	return jw.w.Flush()
}

// jsonlRecord tolerates the legacy single-image line shape, where older
// converter versions wrote "image" instead of a media list.
type jsonlRecord struct {
	domain.ProductRecord
	Image string `json:"image,omitempty"`
}

// JSONLSource reads records from a JSON Lines stream. It implements
// domain.RecordSource; malformed lines are skipped and counted.
type JSONLSource struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
	line    int
	skipped int
}

// Ensure JSONLSource implements RecordSource
var _ domain.RecordSource = (*JSONLSource)(nil)

// NewJSONLSource creates a source over r.
func NewJSONLSource(r io.Reader, logger *slog.Logger) *JSONLSource {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLLineSize)
	return &JSONLSource{scanner: scanner, logger: logger}
}

// Skipped returns how many lines could not be decoded.
func (s *JSONLSource) Skipped() int {
	return s.skipped
}

// Next returns the next record, io.EOF at end of stream.
func (s *JSONLSource) Next() (*domain.ProductRecord, error) {
	for s.scanner.Scan() {
		s.line++
		data := s.scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var raw jsonlRecord
		if err := json.Unmarshal(data, &raw); err != nil {
			s.logger.Warn("skipping malformed jsonl line", "line", s.line, "error", err)
			s.skipped++
			continue
		}

		rec := raw.ProductRecord
		if raw.Image != "" && len(rec.Media) == 0 {
			rec.Media = []domain.MediaEntry{{Source: raw.Image}}
		}
		return &rec, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading jsonl stream at line %d: %w", s.line, err)
	}
	return nil, io.EOF
}
