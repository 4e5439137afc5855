package models

import (
	"maps"
	"slices"
)

// TextSpan is a piece of text produced by a text source, in reading order,
// with enough position data to attribute extracted fields.
// BBox is normalized to the page (x1, y1, x2, y2); zero when unknown.
type TextSpan struct {
	Text       string     `json:"text"`
	Page       int        `json:"page"`
	BBox       [4]float64 `json:"bbox"`
	Confidence float64    `json:"confidence"`
	Method     string     `json:"method"`
}

// SortedKeys returns map keys in ascending order for deterministic iteration.
func SortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
