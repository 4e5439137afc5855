package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/tender-processor/internal/models"
)

func TestDetectRelationships_FilenameMention(t *testing.T) {
	docs := []*models.DocumentExtractionResult{
		doc("Aankondiging.pdf", func(d *models.DocumentExtractionResult) {
			d.Text = "Het prijsformulier staat in Bijlage_3_Prijsformulier.pdf en moet worden ingevuld."
		}),
		doc("Bijlage_3_Prijsformulier.pdf", func(d *models.DocumentExtractionResult) {
			d.DocumentType = models.DocAnnex
		}),
	}

	rels := DetectRelationships(docs)
	assert.Equal(t, []models.DocumentRelationship{
		{Type: "references", Source: "Aankondiging.pdf", Target: "Bijlage_3_Prijsformulier.pdf"},
		{Type: "annex", Source: "Aankondiging.pdf", Target: "Bijlage_3_Prijsformulier.pdf"},
	}, rels)
}

func TestDetectRelationships_TitleMention(t *testing.T) {
	docs := []*models.DocumentExtractionResult{
		doc("nota.pdf", func(d *models.DocumentExtractionResult) {
			d.TechnicalRequirements = []string{"Conform het Programma van Eisen Groenonderhoud"}
		}),
		doc("pve.pdf", func(d *models.DocumentExtractionResult) {
			d.ProjectTitle = "Programma van Eisen Groenonderhoud"
		}),
	}

	rels := DetectRelationships(docs)
	assert.Equal(t, []models.DocumentRelationship{
		{Type: "references", Source: "nota.pdf", Target: "pve.pdf"},
	}, rels)
}

func TestDetectRelationships_IgnoresGenericTokens(t *testing.T) {
	docs := []*models.DocumentExtractionResult{
		doc("a.pdf", func(d *models.DocumentExtractionResult) {
			d.Text = "Bedragen in EUR. Taal: nl. Zie de bijlage en het bestek. tender document"
			d.ProjectTitle = "Shared tender title"
		}),
		doc("bijlage.pdf", func(d *models.DocumentExtractionResult) {
			d.ProjectTitle = "Shared tender title"
		}),
		doc("EUR.pdf", nil),
		doc("tender-document.pdf", nil),
	}

	for _, r := range DetectRelationships(docs) {
		assert.NotEqual(t, "references", r.Type, "unexpected %v", r)
	}
}

func TestDetectRelationships_WordBoundaries(t *testing.T) {
	docs := []*models.DocumentExtractionResult{
		doc("a.pdf", func(d *models.DocumentExtractionResult) { d.Text = "zie planning2024extra" }),
		doc("planning.pdf", nil),
	}
	assert.Empty(t, DetectRelationships(docs))
}

func TestMerge_RelationshipsOnlyWhenRequested(t *testing.T) {
	docs := []*models.DocumentExtractionResult{
		doc("a.pdf", func(d *models.DocumentExtractionResult) { d.Text = "see schedule-of-rates.pdf" }),
		doc("schedule-of-rates.pdf", nil),
	}

	merged, err := Merge(docs, Options{})
	assert.NoError(t, err)
	assert.Empty(t, merged.DocumentRelationships)

	merged, err = Merge(docs, Options{ExtractRelationships: true})
	assert.NoError(t, err)
	assert.Len(t, merged.DocumentRelationships, 1)
}
