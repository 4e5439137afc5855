package tender

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	cpvPattern    = regexp.MustCompile(`\b\d{8}-\d\b`)
	amountPattern = regexp.MustCompile(`(?i)(€|\$|£|\b(?:eur|euro|usd|gbp|chf)\b)?\s*(\d{1,3}(?:[.,\x{00a0} ]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)(?:,-)?\s*(\b(?:eur|euro|usd|gbp|chf)\b|€)?`)
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern  = regexp.MustCompile(`^\+?[\d\s\-().]{6,}$`)
	weightPattern = regexp.MustCompile(`^(.+?)\s*[:\-–]\s*(\d+(?:[.,]\d+)?)\s*(%|punten|points|punkte)?\s*$`)

	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericDate = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})\b`)
	dayMonth    = regexp.MustCompile(`(?i)\b(\d{1,2})\.?\s+([a-zäéèûô]+)\.?\s+(\d{4})\b`)
	monthDay    = regexp.MustCompile(`(?i)\b([a-z]+)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	clock       = regexp.MustCompile(`\b([01]?\d|2[0-3])[:.h]([0-5]\d)\b`)
)

var currencySymbols = map[string]string{
	"€": "EUR", "eur": "EUR", "euro": "EUR",
	"$": "USD", "usd": "USD",
	"£": "GBP", "gbp": "GBP",
	"chf": "CHF",
}

// months covers nl, en, de and fr names and common abbreviations.
var months = map[string]time.Month{
	"januari": 1, "january": 1, "januar": 1, "janvier": 1, "jan": 1,
	"februari": 2, "february": 2, "februar": 2, "février": 2, "fevrier": 2, "feb": 2, "fév": 2,
	"maart": 3, "march": 3, "märz": 3, "marz": 3, "mars": 3, "mrt": 3, "mar": 3,
	"april": 4, "avril": 4, "apr": 4,
	"mei": 5, "may": 5, "mai": 5,
	"juni": 6, "june": 6, "juin": 6, "jun": 6,
	"juli": 7, "july": 7, "juillet": 7, "jul": 7,
	"augustus": 8, "august": 8, "août": 8, "aout": 8, "aug": 8,
	"september": 9, "septembre": 9, "sep": 9, "sept": 9,
	"oktober": 10, "october": 10, "octobre": 10, "okt": 10, "oct": 10,
	"november": 11, "novembre": 11, "nov": 11,
	"december": 12, "dezember": 12, "décembre": 12, "decembre": 12, "dec": 12, "dez": 12, "déc": 12,
}

// parseAmount finds the first monetary amount in s. currency is empty when
// s names none.
func parseAmount(s string) (value float64, currency string, matched string, ok bool) {
	for _, m := range amountPattern.FindAllStringSubmatch(s, -1) {
		num, err := parseNumber(m[2])
		if err != nil {
			continue
		}
		cur := m[1]
		if cur == "" {
			cur = m[3]
		}
		return num, currencySymbols[strings.ToLower(cur)], strings.TrimSpace(m[0]), true
	}
	return 0, "", "", false
}

// parseNumber reads European and English digit grouping:
// "1.250.000,50", "1,250,000.50", "750.000", "12,5".
func parseNumber(s string) (float64, error) {
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(s)
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		s = groupedOrDecimal(s, ".")
	case lastComma >= 0:
		s = groupedOrDecimal(s, ",")
	}
	return strconv.ParseFloat(s, 64)
}

// groupedOrDecimal treats sep as a thousands separator when every group
// after it has exactly three digits, otherwise as the decimal point.
func groupedOrDecimal(s, sep string) string {
	parts := strings.Split(s, sep)
	grouped := len(parts) > 1
	for _, p := range parts[1:] {
		if len(p) != 3 {
			grouped = false
			break
		}
	}
	if grouped {
		return strings.Join(parts, "")
	}
	return strings.Replace(s, sep, ".", 1)
}

// parseDate finds the first date in s, with an optional time of day after
// it. Numeric dates are read day first.
func parseDate(s string) (time.Time, string, bool) {
	type candidate struct {
		at       int
		y, m, d  int
		matchEnd int
	}
	var best *candidate
	consider := func(c candidate) {
		if c.m < 1 || c.m > 12 || c.d < 1 || c.d > 31 {
			return
		}
		if best == nil || c.at < best.at {
			best = &c
		}
	}

	if m := isoDate.FindStringSubmatchIndex(s); m != nil {
		consider(candidate{at: m[0], y: atoi(s[m[2]:m[3]]), m: atoi(s[m[4]:m[5]]), d: atoi(s[m[6]:m[7]]), matchEnd: m[1]})
	}
	if m := numericDate.FindStringSubmatchIndex(s); m != nil {
		consider(candidate{at: m[0], d: atoi(s[m[2]:m[3]]), m: atoi(s[m[4]:m[5]]), y: atoi(s[m[6]:m[7]]), matchEnd: m[1]})
	}
	for _, m := range dayMonth.FindAllStringSubmatchIndex(s, -1) {
		if mon, ok := months[strings.ToLower(s[m[4]:m[5]])]; ok {
			consider(candidate{at: m[0], d: atoi(s[m[2]:m[3]]), m: int(mon), y: atoi(s[m[6]:m[7]]), matchEnd: m[1]})
			break
		}
	}
	for _, m := range monthDay.FindAllStringSubmatchIndex(s, -1) {
		if mon, ok := months[strings.ToLower(s[m[2]:m[3]])]; ok {
			consider(candidate{at: m[0], m: int(mon), d: atoi(s[m[4]:m[5]]), y: atoi(s[m[6]:m[7]]), matchEnd: m[1]})
			break
		}
	}
	if best == nil {
		return time.Time{}, "", false
	}

	t := time.Date(best.y, time.Month(best.m), best.d, 0, 0, 0, 0, time.UTC)
	if t.Day() != best.d {
		// e.g. 31 februari
		return time.Time{}, "", false
	}
	end := best.matchEnd
	if c := clock.FindStringSubmatchIndex(s[end:]); c != nil && c[0] <= 5 {
		t = t.Add(time.Duration(atoi(s[end+c[2]:end+c[3]]))*time.Hour + time.Duration(atoi(s[end+c[4]:end+c[5]]))*time.Minute)
		end += c[1]
	}
	return t, strings.TrimSpace(s[best.at:end]), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// parseWeight reads "Prijs: 40%" or "Kwaliteit - 0.35". Percentages and
// point scores above 1 are scaled to [0,1].
func parseWeight(s string) (string, float64, bool) {
	m := weightPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", 0, false
	}
	name := strings.TrimSpace(m[1])
	v, err := strconv.ParseFloat(strings.Replace(m[2], ",", ".", 1), 64)
	if err != nil || name == "" {
		return "", 0, false
	}
	if m[3] == "%" || v > 1 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return "", 0, false
	}
	return name, v, true
}
