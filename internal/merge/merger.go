// Package merge consolidates per-document tender extractions into a single
// merged record. Output depends only on the input order and content.
package merge

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/feichai0017/tender-processor/internal/models"
)

// Options controls optional merge stages.
type Options struct {
	ExtractRelationships bool
}

// tenderNamespace scopes name-based tender ids.
var tenderNamespace = uuid.MustParse("6f1c3a52-8d0e-4f5b-9a43-2b7d1e0c9f11")

// Merge combines at least two successful results, in input order.
func Merge(docs []*models.DocumentExtractionResult, opts Options) (*models.MergedTenderResult, error) {
	if len(docs) < 2 {
		return nil, &models.MergeError{Reason: fmt.Sprintf("need at least 2 documents, got %d", len(docs))}
	}
	if err := checkInputs(docs); err != nil {
		return nil, err
	}

	c := newContributions(len(docs))
	filenames := make([]string, len(docs))
	for i, d := range docs {
		filenames[i] = d.Filename
	}

	merged := &models.MergedTenderResult{
		TenderID:                    tenderID(docs),
		SourceDocuments:             filenames,
		ProjectOverview:             mergeOverview(docs, c),
		ContractDetails:             mergeContract(docs, c),
		CriticalDates:               mergeDates(docs, c),
		Stakeholders:                mergeStakeholders(docs, c),
		EvaluationCriteria:          mergeEvaluation(docs, c),
		DeliverablesAndRequirements: mergeDeliverables(docs, c),
		DocumentRelationships:       []models.DocumentRelationship{},
	}

	if opts.ExtractRelationships {
		merged.DocumentRelationships = DetectRelationships(docs)
	}

	merged.CompletenessScore = completeness(docs, c)
	merged.ConfidenceScores = confidence(docs)

	return merged, nil
}

func checkInputs(docs []*models.DocumentExtractionResult) error {
	for i, d := range docs {
		if d == nil {
			return &models.MergeError{Reason: fmt.Sprintf("document %d has no result", i)}
		}
		if d.EstimatedValue != nil && !validAmount(*d.EstimatedValue) {
			return &models.MergeError{Reason: fmt.Sprintf("%s: invalid estimated value %v", d.Filename, *d.EstimatedValue)}
		}
		if !unitInterval(d.CompletenessScore) {
			return &models.MergeError{Reason: fmt.Sprintf("%s: completeness score %v outside [0,1]", d.Filename, d.CompletenessScore)}
		}
		for _, k := range models.SortedKeys(d.AssessmentCriteria) {
			if w := d.AssessmentCriteria[k]; !unitInterval(w) {
				return &models.MergeError{Reason: fmt.Sprintf("%s: weight %v for %q outside [0,1]", d.Filename, w, k)}
			}
		}
		for _, k := range models.SortedKeys(d.ConfidenceScores) {
			if s := d.ConfidenceScores[k]; !unitInterval(s) {
				return &models.MergeError{Reason: fmt.Sprintf("%s: confidence %v for %q outside [0,1]", d.Filename, s, k)}
			}
		}
	}
	return nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func unitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

func tenderID(docs []*models.DocumentExtractionResult) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.DocumentID + "/" + d.Filename
	}
	return uuid.NewSHA1(tenderNamespace, []byte(strings.Join(parts, "|"))).String()
}

// contributions counts, per input document, how many merged values it supplied.
type contributions []int

func newContributions(n int) contributions {
	return make(contributions, n)
}

func (c contributions) add(i int) { c[i]++ }

func (c contributions) total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func mergeOverview(docs []*models.DocumentExtractionResult, c contributions) models.ProjectOverview {
	ov := models.ProjectOverview{CPVCodes: []string{}, Sources: map[string]string{}}

	if i, v := firstNonEmpty(docs, func(d *models.DocumentExtractionResult) string { return d.ProjectTitle }); i >= 0 {
		ov.Title = v
		ov.Sources["title"] = docs[i].Filename
		c.add(i)
	}
	if i, v := firstNonEmpty(docs, func(d *models.DocumentExtractionResult) string { return d.ContractingAuthority }); i >= 0 {
		ov.ContractingAuthority = v
		ov.Sources["contracting_authority"] = docs[i].Filename
		c.add(i)
	}

	seen := make(map[string]bool)
	for i, d := range docs {
		for _, code := range d.CPVCodes {
			code = strings.TrimSpace(code)
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			ov.CPVCodes = append(ov.CPVCodes, code)
			c.add(i)
		}
	}
	return ov
}

// valueDiscrepancies lists each reported value once, in first-seen order.
func valueDiscrepancies(docs []*models.DocumentExtractionResult) []models.ValueDiscrepancy {
	var out []models.ValueDiscrepancy
	index := make(map[float64]int)
	for _, d := range docs {
		if d.EstimatedValue == nil {
			continue
		}
		v := *d.EstimatedValue
		currency := strings.TrimSpace(d.Currency)
		i, ok := index[v]
		if !ok {
			index[v] = len(out)
			out = append(out, models.ValueDiscrepancy{Value: v, Currency: currency, Source: d.Filename, Sources: []string{d.Filename}})
			continue
		}
		out[i].Sources = append(out[i].Sources, d.Filename)
		if out[i].Currency == "" {
			out[i].Currency = currency
		}
	}
	return out
}

func mergeContract(docs []*models.DocumentExtractionResult, c contributions) models.ContractDetails {
	cd := models.ContractDetails{ValueDiscrepancies: []models.ValueDiscrepancy{}, Sources: map[string]string{}}

	maxIdx := -1
	distinct := make(map[float64]bool)
	for i, d := range docs {
		if d.EstimatedValue == nil {
			continue
		}
		v := *d.EstimatedValue
		distinct[v] = true
		if maxIdx < 0 || v > *docs[maxIdx].EstimatedValue {
			maxIdx = i
		}
	}

	if maxIdx >= 0 {
		v := *docs[maxIdx].EstimatedValue
		cd.EstimatedValue = &v
		cd.Sources["estimated_value"] = docs[maxIdx].Filename
		c.add(maxIdx)

		if len(distinct) > 1 {
			cd.ValueDiscrepancies = valueDiscrepancies(docs)
		}
	}

	if maxIdx >= 0 && strings.TrimSpace(docs[maxIdx].Currency) != "" {
		cd.Currency = strings.TrimSpace(docs[maxIdx].Currency)
		cd.Sources["currency"] = docs[maxIdx].Filename
	} else if i, v := firstNonEmpty(docs, func(d *models.DocumentExtractionResult) string { return d.Currency }); i >= 0 {
		cd.Currency = v
		cd.Sources["currency"] = docs[i].Filename
		c.add(i)
	}

	if i, v := firstNonEmpty(docs, func(d *models.DocumentExtractionResult) string { return d.ContractDuration }); i >= 0 {
		cd.ContractDuration = v
		cd.Sources["contract_duration"] = docs[i].Filename
		c.add(i)
	}
	if i, v := firstNonEmpty(docs, func(d *models.DocumentExtractionResult) string { return d.ContractType }); i >= 0 {
		cd.ContractType = v
		cd.Sources["contract_type"] = docs[i].Filename
		c.add(i)
	}
	return cd
}

func mergeDates(docs []*models.DocumentExtractionResult, c contributions) models.CriticalDates {
	cd := models.CriticalDates{Sources: map[string]string{}}

	deadline := -1
	published := -1
	for i, d := range docs {
		if d.SubmissionDeadline != nil && (deadline < 0 || d.SubmissionDeadline.Before(*docs[deadline].SubmissionDeadline)) {
			deadline = i
		}
		if d.PublicationDate != nil && (published < 0 || d.PublicationDate.Before(*docs[published].PublicationDate)) {
			published = i
		}
	}

	if deadline >= 0 {
		t := docs[deadline].SubmissionDeadline.UTC()
		cd.SubmissionDeadline = &t
		cd.Sources["submission_deadline"] = docs[deadline].Filename
		c.add(deadline)
	}
	if published >= 0 {
		t := docs[published].PublicationDate.UTC()
		cd.PublicationDate = &t
		cd.Sources["publication_date"] = docs[published].Filename
		c.add(published)
	}
	return cd
}

func mergeEvaluation(docs []*models.DocumentExtractionResult, c contributions) models.EvaluationCriteria {
	ev := models.EvaluationCriteria{
		AssessmentCriteria: map[string]float64{},
		CriteriaSources:    map[string]string{},
	}

	chosen := make(map[string]int)
	for i, d := range docs {
		for _, key := range models.SortedKeys(d.AssessmentCriteria) {
			name := strings.TrimSpace(key)
			if name == "" {
				continue
			}
			prev, ok := chosen[name]
			if ok && d.CompletenessScore <= docs[prev].CompletenessScore {
				continue
			}
			chosen[name] = i
			ev.AssessmentCriteria[name] = d.AssessmentCriteria[key]
			ev.CriteriaSources[name] = d.Filename
		}
	}
	for _, name := range models.SortedKeys(chosen) {
		c.add(chosen[name])
	}

	ev.KnockoutCriteria = dedupCriteria(docs, c, func(d *models.DocumentExtractionResult) []models.Criterion { return d.KnockoutCriteria })
	ev.SelectionCriteria = dedupCriteria(docs, c, func(d *models.DocumentExtractionResult) []models.Criterion { return d.SelectionCriteria })
	return ev
}

func dedupCriteria(docs []*models.DocumentExtractionResult, c contributions, pick func(*models.DocumentExtractionResult) []models.Criterion) []models.Criterion {
	out := []models.Criterion{}
	seen := make(map[string]bool)
	for i, d := range docs {
		for _, cr := range pick(d) {
			key := normalize(cr.Type) + "\x00" + normalize(cr.Requirement)
			if seen[key] {
				continue
			}
			seen[key] = true
			if cr.Source == "" {
				cr.Source = d.Filename
			}
			out = append(out, cr)
			c.add(i)
		}
	}
	return out
}

func mergeStakeholders(docs []*models.DocumentExtractionResult, c contributions) []models.ContactPerson {
	out := []models.ContactPerson{}
	seen := make(map[string]bool)
	for i, d := range docs {
		for _, p := range d.ContactPersons {
			key := normalize(p.Name) + "\x00" + normalize(p.Email)
			if key == "\x00" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
			c.add(i)
		}
	}
	return out
}

func mergeDeliverables(docs []*models.DocumentExtractionResult, c contributions) models.DeliverablesAndRequirements {
	dr := models.DeliverablesAndRequirements{
		Deliverables:           []models.Deliverable{},
		TechnicalRequirements:  []string{},
		ComplianceRequirements: []string{},
	}

	seen := make(map[string]bool)
	for i, d := range docs {
		for _, del := range d.Deliverables {
			key := normalize(del.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			dr.Deliverables = append(dr.Deliverables, del)
			c.add(i)
		}
	}

	dr.TechnicalRequirements = dedupStrings(docs, c, func(d *models.DocumentExtractionResult) []string { return d.TechnicalRequirements })
	dr.ComplianceRequirements = dedupStrings(docs, c, func(d *models.DocumentExtractionResult) []string { return d.ComplianceRequirements })
	return dr
}

func dedupStrings(docs []*models.DocumentExtractionResult, c contributions, pick func(*models.DocumentExtractionResult) []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for i, d := range docs {
		for _, s := range pick(d) {
			key := normalize(s)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(s))
			c.add(i)
		}
	}
	return out
}

func firstNonEmpty(docs []*models.DocumentExtractionResult, get func(*models.DocumentExtractionResult) string) (int, string) {
	for i, d := range docs {
		if v := strings.TrimSpace(get(d)); v != "" {
			return i, v
		}
	}
	return -1, ""
}

// normalize lowercases and collapses runs of whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
