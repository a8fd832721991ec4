package main

import (
	"fmt"
	"strings"
)

// listSeparator joins multi-valued attributes into one canonical string so
// order-sensitive comparison is deterministic.
const listSeparator = "; "

// Difference is one attribute whose serialized values disagree between the
// matched pair.
type Difference struct {
	Attribute   string
	SourceValue string
	DestValue   string
}

// formatValue serializes an attribute value for comparison and display.
// Absent values serialize to the empty string. Comparison downstream is
// exact on this form: no case folding, no trimming, so accidental
// formatting differences surface to the operator instead of being
// silently ignored.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case []string:
		return strings.Join(val, listSeparator)
	case []*string:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			if p != nil {
				parts = append(parts, *p)
			}
		}
		return strings.Join(parts, listSeparator)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// diffAttributes compares the caller-supplied attribute list between a
// matched pair, duplicates removed and order preserved, and returns a
// Difference for every attribute whose serialized forms are not identical.
func diffAttributes(src, dst UserRecord, attrs []string) []Difference {
	var diffs []Difference
	seen := make(map[string]bool, len(attrs))
	for _, attr := range attrs {
		if seen[attr] {
			continue
		}
		seen[attr] = true
		srcVal := formatValue(src.Attributes[attr])
		dstVal := formatValue(dst.Attributes[attr])
		if srcVal != dstVal {
			diffs = append(diffs, Difference{Attribute: attr, SourceValue: srcVal, DestValue: dstVal})
		}
	}
	return diffs
}

// formatDifferences renders a difference list into the single-string form
// used by flagged-user records and the export file.
func formatDifferences(diffs []Difference) string {
	parts := make([]string, 0, len(diffs))
	for _, d := range diffs {
		parts = append(parts, fmt.Sprintf("%s: %q -> %q", d.Attribute, d.SourceValue, d.DestValue))
	}
	return strings.Join(parts, " | ")
}
