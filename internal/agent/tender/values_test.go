package tender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		value    float64
		currency string
	}{
		{"€ 750.000,-", 750000, "EUR"},
		{"EUR 1.250.000,50", 1250000.5, "EUR"},
		{"$1,250,000.50", 1250000.5, "USD"},
		{"ca. 12,5 miljoen", 12.5, ""},
		{"£ 99", 99, "GBP"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, cur, _, ok := parseAmount(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.value, v)
			assert.Equal(t, tt.currency, cur)
		})
	}

	_, _, _, ok := parseAmount("nader te bepalen")
	assert.False(t, ok)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		matched string
	}{
		{"2024-02-15", time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), "2024-02-15"},
		{"15/02/2024 om 09.30 uur", time.Date(2024, 2, 15, 9, 30, 0, 0, time.UTC), "15/02/2024 om 09.30"},
		{"uiterlijk 1 maart 2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "1 maart 2024"},
		{"February 15, 2024 5:00", time.Date(2024, 2, 15, 5, 0, 0, 0, time.UTC), "February 15, 2024 5:00"},
		{"le 2 avril 2024 à 14h00", time.Date(2024, 4, 2, 14, 0, 0, 0, time.UTC), "2 avril 2024 à 14h00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, matched, ok := parseDate(tt.in)
			assert.True(t, ok)
			assert.True(t, got.Equal(tt.want), got.String())
			assert.Equal(t, tt.matched, matched)
		})
	}

	for _, bad := range []string{"31 februari 2024", "geen datum", "13/13/2024"} {
		_, _, ok := parseDate(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseWeight(t *testing.T) {
	name, w, ok := parseWeight("Prijs: 40%")
	assert.True(t, ok)
	assert.Equal(t, "Prijs", name)
	assert.Equal(t, 0.4, w)

	_, w, ok = parseWeight("Kwaliteit: 0.35")
	assert.True(t, ok)
	assert.Equal(t, 0.35, w)

	_, w, ok = parseWeight("Plan van aanpak - 30 punten")
	assert.True(t, ok)
	assert.Equal(t, 0.3, w)

	_, _, ok = parseWeight("Prijs: 140%")
	assert.False(t, ok)
	_, _, ok = parseWeight("Geen weging")
	assert.False(t, ok)
}
