package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/tender-processor/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		filename string
		want     models.DocumentType
	}{
		{"Bestek_2024.pdf", models.DocTechnicalSpecifications},
		{"technical-specifications.pdf", models.DocTechnicalSpecifications},
		{"aankondiging_opdracht.pdf", models.DocTenderAnnouncement},
		{"Tender Announcement.PDF", models.DocTenderAnnouncement},
		{"bijlage-3-prijsformulier.pdf", models.DocAnnex},
		{"gunningscriteria.pdf", models.DocEvaluationCriteria},
		{"conceptovereenkomst.pdf", models.DocContractTerms},
		{"nota_van_inlichtingen_vraag.pdf", models.DocClarification},
		{"scan0001.pdf", models.DocUnknown},
		{"", models.DocUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.filename))
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// matches both the specifications and annex rules
	assert.Equal(t, models.DocTechnicalSpecifications, Classify("bijlage_bestek.pdf"))
	// "contract" appears after the criteria rule
	assert.Equal(t, models.DocEvaluationCriteria, Classify("contract_award_criteria.pdf"))
}

func TestClassifyWith_CustomRules(t *testing.T) {
	rules := []Rule{{Tokens: []string{"offerte"}, Type: models.DocAnnex}}
	assert.Equal(t, models.DocAnnex, ClassifyWith(rules, "Offerte.pdf"))
	assert.Equal(t, models.DocUnknown, ClassifyWith(rules, "bestek.pdf"))
}
