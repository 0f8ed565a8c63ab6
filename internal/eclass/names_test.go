package eclass

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry_Name(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	if err := os.WriteFile(path, []byte(`{"27022603":"Cable duct"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(path)
	if got := reg.Name("27022603"); got != "Cable duct" {
		t.Errorf("Name = %q", got)
	}
	if got := reg.Name("99999999"); got != "ECLASS 99999999" {
		t.Errorf("expected fallback name, got %q", got)
	}
	if got := reg.Name(""); got != "" {
		t.Errorf("expected empty for empty code, got %q", got)
	}
}

func TestNewRegistry_FailSoft(t *testing.T) {
	// Missing file
	reg := NewRegistry("/nonexistent/names.json")
	if got := reg.Name("27022603"); got != "ECLASS 27022603" {
		t.Errorf("expected fallback with missing file, got %q", got)
	}

	// Malformed file
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg = NewRegistry(path)
	if got := reg.Name("27022603"); got != "ECLASS 27022603" {
		t.Errorf("expected fallback with malformed file, got %q", got)
	}

	// No path configured
	reg = NewRegistry("")
	if got := reg.Name("1"); got != "ECLASS 1" {
		t.Errorf("expected fallback with no path, got %q", got)
	}
}

func TestSegment(t *testing.T) {
	if got := Segment("27022603"); got != "27" {
		t.Errorf("Segment = %q", got)
	}
	if got := Segment("2"); got != "" {
		t.Errorf("expected empty for short code, got %q", got)
	}
	if got := SegmentName("27"); got != "Electrical engineering" {
		t.Errorf("SegmentName = %q", got)
	}
	if got := SegmentName("99"); got != "99" {
		t.Errorf("expected unknown segment passthrough, got %q", got)
	}
}

func TestOrderUnitLabel(t *testing.T) {
	if got := OrderUnitLabel("C62"); got != "Piece" {
		t.Errorf("OrderUnitLabel = %q", got)
	}
	if got := OrderUnitLabel("XYZ"); got != "XYZ" {
		t.Errorf("expected unknown unit passthrough, got %q", got)
	}
}
