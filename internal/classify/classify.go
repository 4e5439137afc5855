// Package classify infers a tender document type from its filename.
package classify

import (
	"strings"

	"github.com/feichai0017/tender-processor/internal/models"
)

// Rule maps filename tokens to a document type.
type Rule struct {
	Tokens []string
	Type   models.DocumentType
}

// Rules are evaluated top to bottom; the first rule with a matching token wins.
var Rules = []Rule{
	{Tokens: []string{"bestek", "specifications", "specificaties"}, Type: models.DocTechnicalSpecifications},
	{Tokens: []string{"aankondiging", "announcement"}, Type: models.DocTenderAnnouncement},
	{Tokens: []string{"bijlage", "annex"}, Type: models.DocAnnex},
	{Tokens: []string{"criteria", "gunning", "award"}, Type: models.DocEvaluationCriteria},
	{Tokens: []string{"contract", "overeenkomst"}, Type: models.DocContractTerms},
	{Tokens: []string{"vraag", "question", "clarification"}, Type: models.DocClarification},
}

// Classify returns the document type for filename, or DocUnknown.
func Classify(filename string) models.DocumentType {
	return ClassifyWith(Rules, filename)
}

// ClassifyWith evaluates a caller-supplied ordered rule list.
func ClassifyWith(rules []Rule, filename string) models.DocumentType {
	name := strings.ToLower(filename)
	for _, r := range rules {
		for _, tok := range r.Tokens {
			if strings.Contains(name, tok) {
				return r.Type
			}
		}
	}
	return models.DocUnknown
}
