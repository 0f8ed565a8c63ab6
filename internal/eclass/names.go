// Package eclass resolves ECLASS classification codes to display names.
package eclass

import (
	"encoding/json"
	"os"
)

// segments maps the 2-digit ECLASS segment prefix to its name.
var segments = map[string]string{
	"21": "Fasteners, fixing",
	"22": "Machine tools",
	"23": "Industrial automation",
	"24": "Plastics machinery",
	"25": "Process engineering",
	"26": "Energy technology",
	"27": "Electrical engineering",
	"28": "Construction",
	"29": "HVAC",
	"30": "Packaging",
	"31": "Vehicles",
	"32": "Electronics",
	"33": "Information technology",
	"34": "Office, furniture",
	"35": "Food, agriculture",
	"36": "Medical, laboratory",
	"37": "Safety, security",
	"38": "Services",
	"39": "Mining, raw materials",
}

// orderUnitLabels maps BMEcat order unit codes to display labels.
var orderUnitLabels = map[string]string{
	"C62": "Piece",
	"MTR": "Meter",
	"PK":  "Pack",
	"SET": "Set",
	"PR":  "Pair",
	"RO":  "Roll",
	"CT":  "Carton",
	"CL":  "Coil",
	"BG":  "Bag",
	"RD":  "Rod",
}

// Registry resolves full ECLASS codes to names, loaded from an optional
// mapping file.
type Registry struct {
	names map[string]string
}

// NewRegistry creates a registry from a JSON file of {"code": "name"}
// entries. A missing or malformed file yields an empty registry, never an
// error: name resolution is enrichment, not a precondition.
func NewRegistry(path string) *Registry {
	reg := &Registry{names: map[string]string{}}
	if path == "" {
		return reg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return reg
	}
	var names map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		return reg
	}
	reg.names = names
	return reg
}

// Name resolves a full ECLASS code. Unknown codes fall back to
// "ECLASS <code>" so the facet value is never blank.
func (r *Registry) Name(code string) string {
	if code == "" {
		return ""
	}
	if name, ok := r.names[code]; ok && name != "" {
		return name
	}
	return "ECLASS " + code
}

// SegmentName resolves a 2-digit segment prefix via the built-in table.
func (r *Registry) SegmentName(segment string) string {
	return SegmentName(segment)
}

// OrderUnitLabel resolves a BMEcat order unit code via the built-in table.
func (r *Registry) OrderUnitLabel(unit string) string {
	return OrderUnitLabel(unit)
}

// SegmentName resolves a 2-digit segment prefix. Unknown segments return the
// prefix itself.
func SegmentName(segment string) string {
	if name, ok := segments[segment]; ok {
		return name
	}
	return segment
}

// Segment returns the 2-digit segment prefix of a full code, or "" when the
// code is too short.
func Segment(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}

// OrderUnitLabel resolves a BMEcat order unit code to a display label.
// Unknown codes return the code itself.
func OrderUnitLabel(unit string) string {
	if label, ok := orderUnitLabels[unit]; ok {
		return label
	}
	return unit
}
