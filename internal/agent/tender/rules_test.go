package tender

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tender-processor/internal/models"
)

const amsterdamNotice = `Tender voor IT Infrastructure Modernization Project

Aanbestedende dienst: Gemeente Amsterdam
Projectomschrijving: Complete modernisering van de IT-infrastructuur voor betere digitale dienstverlening aan inwoners.
Projectomvang: Het project behelst de vervanging van legacy systemen en implementatie van cloud-native oplossingen.

Contractdetails:
- Type contract: Dienstverlening
- Geschatte waarde: €750.000 EUR
- Contractduur: 24 maanden
- Betalingsvoorwaarden: Maandelijkse termijnen na goedkeuring

Belangrijke datums:
- Publicatiedatum: 10 januari 2024
- Deadline voor vragen: 5 februari 2024
- Inleverdeadline: 15 februari 2024 om 17:00
- Verwachte startdatum: 1 maart 2024

CPV classificatie: 48000000-8 (Software package and information systems)

Uitsluitingscriteria:
- Geen faillissement in afgelopen 3 jaar
- Minimaal 5 jaar ervaring met IT-infrastructuur

Selectiecriteria:
- ISO 27001 certificering vereist
- Referenties van minimaal 3 vergelijkbare projecten

Gunningscriteria:
- Prijs: 40%
- Technische kwaliteit: 35%
- Duurzaamheid: 25%

Contactpersonen:
- Jan Janssen, Projectmanager, j.janssen@amsterdam.nl, 020-1234567
- Maria de Vries, Inkoop specialist, m.devries@amsterdam.nl

Deliverables:
- Technisch ontwerp en architectuur
- Implementatie en migratie van systemen
- Gebruikerstraining en documentatie

Technische eisen:
- Cloud-native architectuur vereist
- API-first approach
- 99.9% uptime garantie

Compliance eisen:
- AVG/GDPR compliant
- NEN 7510 certificering
- BIO (Baseline Informatiebeveiliging Overheid)`

func spansOf(text string, page int, conf float64) []models.TextSpan {
	var out []models.TextSpan
	for _, l := range strings.Split(text, "\n") {
		out = append(out, models.TextSpan{Text: l, Page: page, Confidence: conf, Method: "test"})
	}
	return out
}

func TestParse_FullNotice(t *testing.T) {
	doc := NewDocument("aankondiging.pdf", spansOf(amsterdamNotice, 1, 0.95))
	res := Parse(doc)

	assert.Equal(t, "aankondiging.pdf", res.Filename)
	assert.Equal(t, "IT Infrastructure Modernization Project", res.ProjectTitle)
	assert.Equal(t, "Gemeente Amsterdam", res.ContractingAuthority)
	assert.True(t, strings.HasPrefix(res.ProjectDescription, "Complete modernisering"))
	assert.Equal(t, "Dienstverlening", res.ContractType)
	assert.Equal(t, "24 maanden", res.ContractDuration)

	require.NotNil(t, res.EstimatedValue)
	assert.Equal(t, 750000.0, *res.EstimatedValue)
	assert.Equal(t, "EUR", res.Currency)

	require.NotNil(t, res.PublicationDate)
	assert.True(t, res.PublicationDate.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, res.SubmissionDeadline)
	assert.True(t, res.SubmissionDeadline.Equal(time.Date(2024, 2, 15, 17, 0, 0, 0, time.UTC)))

	assert.Equal(t, []string{"48000000-8"}, res.CPVCodes)

	assert.Equal(t, []models.Criterion{
		{Type: "legal", Requirement: "Geen faillissement in afgelopen 3 jaar"},
		{Type: "technical", Requirement: "Minimaal 5 jaar ervaring met IT-infrastructuur"},
	}, res.KnockoutCriteria)
	assert.Len(t, res.SelectionCriteria, 2)

	assert.Equal(t, map[string]float64{
		"Prijs":                0.4,
		"Technische kwaliteit": 0.35,
		"Duurzaamheid":         0.25,
	}, res.AssessmentCriteria)

	require.Len(t, res.ContactPersons, 2)
	assert.Equal(t, models.ContactPerson{
		Name:  "Jan Janssen",
		Role:  "Projectmanager",
		Email: "j.janssen@amsterdam.nl",
		Phone: "020-1234567",
	}, res.ContactPersons[0])
	assert.Equal(t, "m.devries@amsterdam.nl", res.ContactPersons[1].Email)
	assert.Empty(t, res.ContactPersons[1].Phone)

	assert.Len(t, res.Deliverables, 3)
	assert.Equal(t, []string{"Cloud-native architectuur vereist", "API-first approach", "99.9% uptime garantie"}, res.TechnicalRequirements)
	assert.Len(t, res.ComplianceRequirements, 3)

	assert.Equal(t, 1.0, res.CompletenessScore)
	for _, section := range []string{
		"project_overview", "contract_details", "critical_dates",
		"evaluation_criteria", "stakeholders", "deliverables_and_requirements",
	} {
		assert.InDelta(t, 0.95, res.ConfidenceScores[section], 1e-9, section)
	}
}

func TestParse_AttributionPointsIntoText(t *testing.T) {
	doc := NewDocument("aankondiging.pdf", spansOf(amsterdamNotice, 3, 0.9))
	res := Parse(doc)

	for field, want := range map[string]string{
		fTitle:     "IT Infrastructure Modernization Project",
		fAuthority: "Gemeente Amsterdam",
		fValue:     "€750.000 EUR",
		fDeadline:  "15 februari 2024 om 17:00",
		fCPV:       "48000000-8",
	} {
		ref, ok := res.SourceAttribution[field]
		require.True(t, ok, field)
		assert.Equal(t, want, doc.Text[ref.CharStart:ref.CharEnd], field)
		assert.Equal(t, 3, ref.PageNumber)
		assert.Equal(t, "aankondiging.pdf", ref.SourceFilename)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	doc := NewDocument("leeg.pdf", []models.TextSpan{{Text: "  \n\n"}})
	assert.True(t, doc.Empty())

	res := Parse(doc)
	assert.Zero(t, res.CompletenessScore)
	assert.Empty(t, res.ConfidenceScores)
	assert.NotNil(t, res.CPVCodes)
	assert.NotNil(t, res.AssessmentCriteria)
}

func TestParse_PartialDocumentScores(t *testing.T) {
	text := "Opdrachtgever: Provincie Utrecht\nSluitingsdatum: 01-03-2024 12:00"
	res := Parse(NewDocument("nota.pdf", spansOf(text, 1, 0.8)))

	assert.Equal(t, "Provincie Utrecht", res.ContractingAuthority)
	require.NotNil(t, res.SubmissionDeadline)
	assert.True(t, res.SubmissionDeadline.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))

	// authority and deadline weigh 2 each out of 21
	assert.InDelta(t, 4.0/21.0, res.CompletenessScore, 1e-9)
	// one of four overview fields, one of two date fields
	assert.InDelta(t, 0.8/4, res.ConfidenceScores["project_overview"], 1e-9)
	assert.InDelta(t, 0.8/2, res.ConfidenceScores["critical_dates"], 1e-9)
	assert.NotContains(t, res.ConfidenceScores, "stakeholders")
}

func TestParse_FirstValueWins(t *testing.T) {
	text := "Titel: Eerste\nTitel: Tweede\nGeschatte waarde (excl. btw): 1.250.000,50 EUR\nEstimated value: $ 10"
	res := Parse(NewDocument("a.pdf", spansOf(text, 1, 1)))

	assert.Equal(t, "Eerste", res.ProjectTitle)
	require.NotNil(t, res.EstimatedValue)
	assert.Equal(t, 1250000.5, *res.EstimatedValue)
	assert.Equal(t, "EUR", res.Currency)
}

func TestParse_SectionEndsAtUnknownHeaderOrPlainLine(t *testing.T) {
	text := strings.Join([]string{
		"Gunningscriteria:",
		"Prijs: 60%",
		"Kwaliteit - 40",
		"Overige informatie:",
		"- Dit is geen criterium",
		"Technische eisen:",
		"- Redundante opslag",
		"Deze regel sluit de sectie af.",
		"- Losse opmerking",
	}, "\n")
	res := Parse(NewDocument("a.pdf", spansOf(text, 1, 1)))

	assert.Equal(t, map[string]float64{"Prijs": 0.6, "Kwaliteit": 0.4}, res.AssessmentCriteria)
	assert.Equal(t, []string{"Redundante opslag"}, res.TechnicalRequirements)
}

func TestParse_OtherLanguages(t *testing.T) {
	de := "Öffentlicher Auftraggeber: Stadt München\nAngebotsfrist: 3. März 2025 10:30\nZuschlagskriterien:\n- Preis: 70%\n- Qualität: 30%"
	res := Parse(NewDocument("ausschreibung.pdf", spansOf(de, 1, 1)))
	assert.Equal(t, "Stadt München", res.ContractingAuthority)
	require.NotNil(t, res.SubmissionDeadline)
	assert.True(t, res.SubmissionDeadline.Equal(time.Date(2025, 3, 3, 10, 30, 0, 0, time.UTC)))
	assert.Len(t, res.AssessmentCriteria, 2)

	fr := "Pouvoir adjudicateur: Ville de Lyon\nValeur estimée: 200 000 €"
	res = Parse(NewDocument("avis.pdf", spansOf(fr, 1, 1)))
	assert.Equal(t, "Ville de Lyon", res.ContractingAuthority)
	require.NotNil(t, res.EstimatedValue)
	assert.Equal(t, 200000.0, *res.EstimatedValue)
	assert.Equal(t, "EUR", res.Currency)
}

func TestStripBullet(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		bullet bool
	}{
		{"- item", "item", true},
		{"• item", "item", true},
		{"3. item", "item", true},
		{"12) item", "item", true},
		{"2024. jaar", "2024. jaar", false},
		{"plain", "plain", false},
	}
	for _, tt := range tests {
		got, bullet := stripBullet(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.bullet, bullet, tt.in)
	}
}
