package tender

import (
	"strings"

	"github.com/feichai0017/tender-processor/internal/models"
)

type fieldSpec struct {
	name    string
	weight  float64
	section string
}

// fieldSpecs drives completeness and section confidence. Core fields weigh
// 2, everything else 1.
var fieldSpecs = []fieldSpec{
	{fTitle, 2, "project_overview"},
	{fAuthority, 2, "project_overview"},
	{fDescription, 1, "project_overview"},
	{fCPV, 1, "project_overview"},

	{fValue, 2, "contract_details"},
	{fContractType, 1, "contract_details"},
	{fCurrency, 1, "contract_details"},
	{fDuration, 1, "contract_details"},

	{fDeadline, 2, "critical_dates"},
	{fPublication, 1, "critical_dates"},

	{fKnockout, 1, "evaluation_criteria"},
	{fSelection, 1, "evaluation_criteria"},
	{fAssessment, 1, "evaluation_criteria"},

	{fContacts, 1, "stakeholders"},

	{fDeliverables, 1, "deliverables_and_requirements"},
	{fTechnical, 1, "deliverables_and_requirements"},
	{fCompliance, 1, "deliverables_and_requirements"},
}

type builder struct {
	doc *Document
	res *models.DocumentExtractionResult
	cpv map[string]bool
}

func newBuilder(doc *Document) *builder {
	return &builder{
		doc: doc,
		cpv: make(map[string]bool),
		res: &models.DocumentExtractionResult{
			Filename:               doc.Filename,
			CPVCodes:               []string{},
			KnockoutCriteria:       []models.Criterion{},
			SelectionCriteria:      []models.Criterion{},
			AssessmentCriteria:     map[string]float64{},
			ContactPersons:         []models.ContactPerson{},
			Deliverables:           []models.Deliverable{},
			TechnicalRequirements:  []string{},
			ComplianceRequirements: []string{},
			SourceAttribution:      map[string]models.SourceRef{},
			ConfidenceScores:       map[string]float64{},
			Text:                   doc.Text,
		},
	}
}

// attribute records the first source of a field.
func (b *builder) attribute(field string, ln line, sub string) {
	if _, ok := b.res.SourceAttribution[field]; !ok {
		b.res.SourceAttribution[field] = b.doc.ref(ln, sub)
	}
}

func (b *builder) has(field string) bool {
	_, ok := b.res.SourceAttribution[field]
	return ok
}

// setString fills a text field once; later occurrences are ignored.
func (b *builder) setString(field, value string, ln line) {
	value = strings.TrimSpace(value)
	if value == "" || b.has(field) {
		return
	}
	switch field {
	case fTitle:
		b.res.ProjectTitle = value
	case fDescription:
		b.res.ProjectDescription = value
	case fAuthority:
		b.res.ContractingAuthority = value
	case fContractType:
		b.res.ContractType = value
	case fDuration:
		b.res.ContractDuration = value
	default:
		return
	}
	b.attribute(field, ln, value)
}

func (b *builder) setField(field, value string, ln line) {
	switch field {
	case fValue:
		if b.has(fValue) {
			return
		}
		amount, currency, matched, ok := parseAmount(value)
		if !ok {
			return
		}
		b.res.EstimatedValue = &amount
		b.attribute(fValue, ln, matched)
		if currency != "" && !b.has(fCurrency) {
			b.res.Currency = currency
			b.attribute(fCurrency, ln, matched)
		}
	case fPublication, fDeadline:
		if b.has(field) {
			return
		}
		t, matched, ok := parseDate(value)
		if !ok {
			return
		}
		if field == fDeadline {
			b.res.SubmissionDeadline = &t
		} else {
			b.res.PublicationDate = &t
		}
		b.attribute(field, ln, matched)
	default:
		b.setString(field, value, ln)
	}
}

func (b *builder) addCPV(code string, ln line) {
	if b.cpv[code] {
		return
	}
	b.cpv[code] = true
	b.res.CPVCodes = append(b.res.CPVCodes, code)
	b.attribute(fCPV, ln, code)
}

func (b *builder) addItem(section, item string, ln line) {
	item = strings.TrimSpace(item)
	if item == "" {
		return
	}
	switch section {
	case fKnockout:
		b.res.KnockoutCriteria = append(b.res.KnockoutCriteria, models.Criterion{Type: criterionType(item), Requirement: item})
	case fSelection:
		b.res.SelectionCriteria = append(b.res.SelectionCriteria, models.Criterion{Type: criterionType(item), Requirement: item})
	case fAssessment:
		name, weight, ok := parseWeight(item)
		if !ok {
			return
		}
		if _, dup := b.res.AssessmentCriteria[name]; dup {
			return
		}
		b.res.AssessmentCriteria[name] = weight
	case fContacts:
		b.res.ContactPersons = append(b.res.ContactPersons, parseContact(item))
	case fDeliverables:
		name, desc := item, ""
		if i := strings.Index(item, ":"); i > 0 {
			name, desc = strings.TrimSpace(item[:i]), strings.TrimSpace(item[i+1:])
		}
		b.res.Deliverables = append(b.res.Deliverables, models.Deliverable{Name: name, Description: desc})
	case fTechnical:
		b.res.TechnicalRequirements = append(b.res.TechnicalRequirements, item)
	case fCompliance:
		b.res.ComplianceRequirements = append(b.res.ComplianceRequirements, item)
	default:
		return
	}
	b.attribute(section, ln, item)
}

// criterionType buckets a requirement by its vocabulary.
func criterionType(req string) string {
	r := strings.ToLower(req)
	switch {
	case containsAny(r, "omzet", "turnover", "umsatz", "chiffre d'affaires", "solvab", "financ", "verzekering", "insurance"):
		return "financial"
	case containsAny(r, "faillissement", "bankrupt", "insolvenz", "kvk", "handelsregister", "strafbla", "criminal", "gedragsverklaring", "uitsluiting"):
		return "legal"
	case containsAny(r, "iso", "certific", "zertifi", "ervaring", "experience", "erfahrung", "expérience", "referent", "reference"):
		return "technical"
	}
	return "general"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// parseContact reads "Name, Role, email, phone" in any order after the name.
func parseContact(item string) models.ContactPerson {
	var cp models.ContactPerson
	for i, part := range strings.Split(item, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case emailPattern.MatchString(part) && cp.Email == "":
			cp.Email = emailPattern.FindString(part)
		case phonePattern.MatchString(part) && cp.Phone == "":
			cp.Phone = part
		case i == 0:
			cp.Name = part
		case cp.Role == "":
			cp.Role = part
		}
	}
	if cp.Name == "" {
		cp.Name = cp.Email
	}
	return cp
}

func (b *builder) finish() *models.DocumentExtractionResult {
	var filled, total float64
	type acc struct {
		conf         float64
		filled, size int
	}
	bySection := map[string]*acc{}

	for _, spec := range fieldSpecs {
		total += spec.weight
		a := bySection[spec.section]
		if a == nil {
			a = &acc{}
			bySection[spec.section] = a
		}
		a.size++
		if ref, ok := b.res.SourceAttribution[spec.name]; ok {
			filled += spec.weight
			a.filled++
			a.conf += ref.ConfidenceScore
		}
	}

	b.res.CompletenessScore = clamp(filled / total)
	for _, name := range models.SortedKeys(bySection) {
		a := bySection[name]
		if a.filled == 0 {
			continue
		}
		base := a.conf / float64(a.filled)
		b.res.ConfidenceScores[name] = clamp(base * float64(a.filled) / float64(a.size))
	}
	return b.res
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
