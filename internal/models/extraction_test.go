package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverallConfidence(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   float64
		ok     bool
	}{
		{name: "no scores", scores: nil, ok: false},
		{name: "sections only", scores: map[string]float64{"project_overview": 0.8, "timeline": 0.4}, want: 0.6, ok: true},
		{name: "stored overall is not a section", scores: map[string]float64{"project_overview": 0.8, "timeline": 0.4, OverallConfidenceKey: 0.1}, want: 0.6, ok: true},
		{name: "only overall", scores: map[string]float64{OverallConfidenceKey: 0.9}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &DocumentExtractionResult{ConfidenceScores: tt.scores}
			got, ok := r.OverallConfidence()
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
