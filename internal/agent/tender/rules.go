// Package tender picks tender fields out of plain document text using
// labelled lines ("Aanbestedende dienst: ...") and bulleted sections
// ("Gunningscriteria:" followed by "- Prijs: 40%").
package tender

import (
	"strings"
	"unicode/utf8"

	"github.com/feichai0017/tender-processor/internal/models"
)

// field names double as source_attribution keys.
const (
	fTitle        = "project_title"
	fDescription  = "project_description"
	fAuthority    = "contracting_authority"
	fCPV          = "cpv_codes"
	fContractType = "contract_type"
	fValue        = "estimated_value"
	fCurrency     = "currency"
	fDuration     = "contract_duration"
	fPublication  = "publication_date"
	fDeadline     = "submission_deadline"
	fKnockout     = "knockout_criteria"
	fSelection    = "selection_criteria"
	fAssessment   = "assessment_criteria"
	fContacts     = "contact_persons"
	fDeliverables = "deliverables"
	fTechnical    = "technical_requirements"
	fCompliance   = "compliance_requirements"
)

// labels maps normalized line labels to the field they fill.
var labels = map[string]string{
	"projecttitel": fTitle, "titel": fTitle, "title": fTitle, "project title": fTitle,
	"naam opdracht": fTitle, "projekttitel": fTitle, "titre": fTitle, "intitulé": fTitle, "objet du marché": fTitle,

	"projectomschrijving": fDescription, "omschrijving": fDescription, "beschrijving": fDescription,
	"project description": fDescription, "description": fDescription, "beschreibung": fDescription,

	"aanbestedende dienst": fAuthority, "opdrachtgever": fAuthority, "contracting authority": fAuthority,
	"awarding authority": fAuthority, "öffentlicher auftraggeber": fAuthority, "auftraggeber": fAuthority,
	"pouvoir adjudicateur": fAuthority,

	"type contract": fContractType, "contract type": fContractType, "soort opdracht": fContractType,
	"type opdracht": fContractType, "vertragsart": fContractType, "type de marché": fContractType,

	"geschatte waarde": fValue, "geraamde waarde": fValue, "raming": fValue, "estimated value": fValue,
	"contract value": fValue, "geschätzter wert": fValue, "auftragswert": fValue, "valeur estimée": fValue,

	"contractduur": fDuration, "looptijd": fDuration, "contract duration": fDuration, "duration": fDuration,
	"laufzeit": fDuration, "vertragslaufzeit": fDuration, "durée": fDuration, "durée du marché": fDuration,

	"publicatiedatum": fPublication, "datum publicatie": fPublication, "publication date": fPublication,
	"veröffentlichungsdatum": fPublication, "date de publication": fPublication,

	"inleverdeadline": fDeadline, "sluitingsdatum": fDeadline, "uiterste inschrijfdatum": fDeadline,
	"termijn inschrijving": fDeadline, "submission deadline": fDeadline, "deadline": fDeadline,
	"closing date": fDeadline, "angebotsfrist": fDeadline, "schlusstermin": fDeadline,
	"date limite": fDeadline, "date limite de remise des offres": fDeadline,
}

// sections maps normalized header lines to the list field their items fill.
var sections = map[string]string{
	"uitsluitingscriteria": fKnockout, "uitsluitingsgronden": fKnockout, "knock-out criteria": fKnockout,
	"knockout criteria": fKnockout, "exclusion criteria": fKnockout, "exclusion grounds": fKnockout,
	"ausschlusskriterien": fKnockout, "ausschlussgründe": fKnockout, "critères d'exclusion": fKnockout,

	"selectiecriteria": fSelection, "geschiktheidseisen": fSelection, "selection criteria": fSelection,
	"eignungskriterien": fSelection, "critères de sélection": fSelection,

	"gunningscriteria": fAssessment, "award criteria": fAssessment, "assessment criteria": fAssessment,
	"zuschlagskriterien": fAssessment, "critères d'attribution": fAssessment,

	"contactpersonen": fContacts, "contactpersoon": fContacts, "contact persons": fContacts,
	"contact": fContacts, "contacts": fContacts, "ansprechpartner": fContacts,

	"deliverables": fDeliverables, "op te leveren": fDeliverables, "opleveringen": fDeliverables,
	"leistungen": fDeliverables, "livrables": fDeliverables,

	"technische eisen": fTechnical, "technical requirements": fTechnical,
	"technische anforderungen": fTechnical, "exigences techniques": fTechnical,

	"compliance eisen": fCompliance, "compliance requirements": fCompliance, "compliance": fCompliance,
	"regelgeving": fCompliance, "exigences de conformité": fCompliance,
}

// titlePrefixes introduce a title on the first line of a document.
var titlePrefixes = []string{
	"tender voor ", "tender for ", "aanbesteding ", "ausschreibung ", "appel d'offres pour ", "appel d'offres ",
}

const maxLabelRunes = 48

// Parse extracts tender fields from doc. Document id, type and timestamp
// are left to the caller.
func Parse(doc *Document) *models.DocumentExtractionResult {
	b := newBuilder(doc)

	section := ""
	for i, ln := range doc.lines {
		content, bullet := stripBullet(ln.text)

		if i == 0 && !bullet {
			if title, ok := titleLine(content); ok {
				b.setString(fTitle, title, ln)
				continue
			}
		}

		for _, code := range cpvPattern.FindAllString(content, -1) {
			b.addCPV(code, ln)
		}

		if hdr, ok := header(content); ok {
			section = sections[hdr]
			continue
		}

		if section != "" && bullet {
			b.addItem(section, content, ln)
			continue
		}

		if label, value, ok := splitLabel(content); ok {
			if f := labelField(label); f != "" {
				b.setField(f, value, ln)
				if !bullet {
					section = ""
				}
				continue
			}
		}

		if section != "" && acceptsPlain(section, content) {
			b.addItem(section, content, ln)
			continue
		}
		if !bullet {
			section = ""
		}
	}

	return b.finish()
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ": ")
	return strings.Join(strings.Fields(s), " ")
}

// header reports whether s is a section header ("Gunningscriteria:").
// Unknown headers still end the current section.
func header(s string) (string, bool) {
	if !strings.HasSuffix(s, ":") || utf8.RuneCountInString(s) > maxLabelRunes {
		return "", false
	}
	return normalizeLabel(s), true
}

func splitLabel(s string) (string, string, bool) {
	i := strings.Index(s, ":")
	if i <= 0 || utf8.RuneCountInString(s[:i]) > maxLabelRunes {
		return "", "", false
	}
	value := strings.TrimSpace(s[i+1:])
	if value == "" {
		return "", "", false
	}
	return normalizeLabel(s[:i]), value, true
}

// labelField matches a label exactly, or by a known label followed by a
// qualifier such as "Geschatte waarde (excl. btw)".
func labelField(label string) string {
	if f, ok := labels[label]; ok {
		return f
	}
	for _, k := range sortedLabels {
		if strings.HasPrefix(label, k+" (") || strings.HasPrefix(label, k+",") {
			return labels[k]
		}
	}
	return ""
}

var sortedLabels = models.SortedKeys(labels)

func stripBullet(s string) (string, bool) {
	for _, p := range []string{"- ", "• ", "* ", "– ", "· "} {
		if strings.HasPrefix(s, p) {
			return strings.TrimSpace(s[len(p):]), true
		}
	}
	// "1. item" or "1) item"
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i <= 2 && i+1 < len(s) && (s[i] == '.' || s[i] == ')') && s[i+1] == ' ' {
		return strings.TrimSpace(s[i+2:]), true
	}
	return s, false
}

func titleLine(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, p := range titlePrefixes {
		if strings.HasPrefix(lower, p) && len(s) > len(p) {
			return strings.TrimSpace(s[len(p):]), true
		}
	}
	return "", false
}

// acceptsPlain lets un-bulleted lines continue a section when they are
// unambiguous for it, as OCR often drops bullet glyphs.
func acceptsPlain(section, s string) bool {
	switch section {
	case fAssessment:
		_, _, ok := parseWeight(s)
		return ok
	case fContacts:
		return emailPattern.MatchString(s)
	}
	return false
}
