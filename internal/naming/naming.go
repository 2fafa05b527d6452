// Package naming resolves the tooltip labels shown on map markers.
package naming

import (
	"strings"
	"unicode"
)

// ConnectionSeparator joins sub-map names in a connection's fallback label.
const ConnectionSeparator = " ↔ "

// Normalize trims a label and collapses inner whitespace runs to one space.
func Normalize(raw string) string {
	fields := strings.FieldsFunc(raw, unicode.IsSpace)
	return strings.Join(fields, " ")
}

// PointLabel returns the explicit label when it is non-blank, otherwise the
// owning sub-map's name.
func PointLabel(explicit *string, mapName string) string {
	if explicit != nil {
		if l := Normalize(*explicit); l != "" {
			return l
		}
	}
	return Normalize(mapName)
}

// ConnectionLabel returns the explicit label when it is non-blank, otherwise
// the distinct sub-map names joined in first-seen order.
func ConnectionLabel(explicit *string, mapNames []string) string {
	if explicit != nil {
		if l := Normalize(*explicit); l != "" {
			return l
		}
	}

	seen := make(map[string]struct{}, len(mapNames))
	parts := make([]string, 0, len(mapNames))
	for _, raw := range mapNames {
		n := Normalize(raw)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		parts = append(parts, n)
	}
	return strings.Join(parts, ConnectionSeparator)
}
