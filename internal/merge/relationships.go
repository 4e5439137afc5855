package merge

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/feichai0017/tender-processor/internal/models"
)

const minTokenLen = 6

// genericWords never identify a specific document on their own.
var genericWords = map[string]bool{
	"nl": true, "en": true, "de": true, "fr": true,
	"eur": true, "euro": true, "usd": true, "gbp": true, "chf": true,
	"pdf": true, "doc": true, "docx": true, "final": true, "versie": true, "version": true, "concept": true, "draft": true,
	"document": true, "documents": true, "documentatie": true,
	"tender": true, "aanbesteding": true, "opdracht": true, "project": true, "scan": true,
	"bijlage": true, "annex": true, "appendix": true, "bestek": true, "specifications": true,
	"aankondiging": true, "announcement": true, "criteria": true, "gunning": true,
	"contract": true, "overeenkomst": true, "vraag": true, "question": true, "questions": true,
	"the": true, "and": true, "van": true, "het": true, "een": true, "voor": true, "der": true, "und": true,
}

// DetectRelationships emits a "references" edge for every ordered pair (A, B)
// where A's content mentions an identifying token of B, followed by "annex"
// edges from the first non-annex document to each annex.
func DetectRelationships(docs []*models.DocumentExtractionResult) []models.DocumentRelationship {
	rels := []models.DocumentRelationship{}

	haystacks := make([]string, len(docs))
	for i, d := range docs {
		haystacks[i] = haystack(d)
	}

	for i, a := range docs {
		for j, b := range docs {
			if i == j || a.Filename == b.Filename {
				continue
			}
			if mentions(haystacks[i], a, b) {
				rels = append(rels, models.DocumentRelationship{Type: "references", Source: a.Filename, Target: b.Filename})
			}
		}
	}

	primary := -1
	for i, d := range docs {
		if d.DocumentType != models.DocAnnex {
			primary = i
			break
		}
	}
	if primary >= 0 {
		for _, d := range docs {
			if d.DocumentType == models.DocAnnex {
				rels = append(rels, models.DocumentRelationship{Type: "annex", Source: docs[primary].Filename, Target: d.Filename})
			}
		}
	}
	return rels
}

func mentions(hay string, a, b *models.DocumentExtractionResult) bool {
	if hay == "" {
		return false
	}
	for _, tok := range identifyingTokens(a, b) {
		if containsPhrase(hay, tok) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether tok occurs in hay on word boundaries.
func containsPhrase(hay, tok string) bool {
	for off := 0; off < len(hay); {
		idx := strings.Index(hay[off:], tok)
		if idx < 0 {
			return false
		}
		start := off + idx
		end := start + len(tok)
		before, _ := utf8.DecodeLastRuneInString(hay[:start])
		after, _ := utf8.DecodeRuneInString(hay[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(hay) || !isWordRune(after)) {
			return true
		}
		off = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// identifyingTokens returns B's tokens that could appear inside A.
// B's title is skipped when A carries the same title, since shared titles
// mark documents of the same tender rather than a reference.
func identifyingTokens(a, b *models.DocumentExtractionResult) []string {
	var toks []string
	name := canonical(b.Filename)
	stem := canonical(strings.TrimSuffix(b.Filename, filepath.Ext(b.Filename)))
	for _, t := range []string{name, stem} {
		if significant(t) && !contains(toks, t) {
			toks = append(toks, t)
		}
	}
	title := canonical(b.ProjectTitle)
	if significant(title) && title != canonical(a.ProjectTitle) && !contains(toks, title) {
		toks = append(toks, title)
	}
	return toks
}

func haystack(d *models.DocumentExtractionResult) string {
	var sb strings.Builder
	write := func(s string) {
		if s != "" {
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	write(d.Text)
	write(d.ProjectDescription)
	for _, r := range d.TechnicalRequirements {
		write(r)
	}
	for _, r := range d.ComplianceRequirements {
		write(r)
	}
	for _, del := range d.Deliverables {
		write(del.Name)
		write(del.Description)
	}
	for _, cr := range d.KnockoutCriteria {
		write(cr.Requirement)
	}
	for _, cr := range d.SelectionCriteria {
		write(cr.Requirement)
	}
	return canonical(sb.String())
}

// canonical lowercases, maps separators to spaces and collapses whitespace.
func canonical(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '\n', '\t':
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func significant(tok string) bool {
	if utf8.RuneCountInString(tok) < minTokenLen {
		return false
	}
	specific := false
	for _, w := range strings.FieldsFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		if utf8.RuneCountInString(w) >= 3 && !genericWords[w] && !isNumber(w) {
			specific = true
			break
		}
	}
	return specific
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
