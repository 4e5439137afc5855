package merge

import (
	"github.com/feichai0017/tender-processor/internal/models"
)

// completeness derives the merged completeness score.
//
// When one document supplied more than half of all merged values, the merged
// record is essentially that document enriched by the others, so the highest
// per-document score is reported. Otherwise the score is the mean over the
// documents that supplied at least one merged value. Either way the result is
// never below the lowest per-document score and stays in [0,1].
func completeness(docs []*models.DocumentExtractionResult, c contributions) float64 {
	total := c.total()
	if total == 0 {
		return clamp(mean(docs, func(int) bool { return true }))
	}

	dominant := 0
	for i := range c {
		if c[i] > c[dominant] {
			dominant = i
		}
	}
	if c[dominant]*2 > total {
		best := docs[0].CompletenessScore
		for _, d := range docs[1:] {
			if d.CompletenessScore > best {
				best = d.CompletenessScore
			}
		}
		return clamp(best)
	}
	return clamp(mean(docs, func(i int) bool { return c[i] > 0 }))
}

func mean(docs []*models.DocumentExtractionResult, include func(int) bool) float64 {
	var sum float64
	n := 0
	for i, d := range docs {
		if !include(i) {
			continue
		}
		sum += d.CompletenessScore
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// confidence averages each section across the documents that report it and
// adds "overall", the mean of every document's own overall confidence.
func confidence(docs []*models.DocumentExtractionResult) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	var overallSum float64
	overallN := 0

	for _, d := range docs {
		for _, section := range models.SortedKeys(d.ConfidenceScores) {
			if section == models.OverallConfidenceKey {
				continue
			}
			sums[section] += d.ConfidenceScores[section]
			counts[section]++
		}
		if own, ok := d.OverallConfidence(); ok {
			overallSum += own
			overallN++
		}
	}

	scores := make(map[string]float64, len(sums)+1)
	for _, section := range models.SortedKeys(sums) {
		scores[section] = clamp(sums[section] / float64(counts[section]))
	}
	if overallN > 0 {
		scores[models.OverallConfidenceKey] = clamp(overallSum / float64(overallN))
	} else {
		scores[models.OverallConfidenceKey] = 0
	}
	return scores
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
