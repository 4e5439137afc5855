package tender

import (
	"strings"

	"github.com/feichai0017/tender-processor/internal/models"
)

// line is one line of the joined document text.
type line struct {
	text  string
	start int // byte offset of text in Document.Text
	span  models.TextSpan
}

// Document is the plain text of a source file, joined from its spans with
// newlines, remembering where every line came from.
type Document struct {
	Filename string
	Text     string
	lines    []line
}

// NewDocument joins spans in order. Spans holding several lines are split
// so each line keeps the position data of its span.
func NewDocument(filename string, spans []models.TextSpan) *Document {
	var sb strings.Builder
	doc := &Document{Filename: filename}

	for _, span := range spans {
		for _, raw := range strings.Split(span.Text, "\n") {
			text := strings.TrimSpace(raw)
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			doc.lines = append(doc.lines, line{text: text, start: sb.Len(), span: span})
			sb.WriteString(text)
		}
	}
	doc.Text = sb.String()
	return doc
}

// Empty reports whether the document carries no text at all.
func (d *Document) Empty() bool {
	return len(d.lines) == 0
}

// ref attributes the substring sub of ln. When sub does not occur in the
// line the whole line is attributed.
func (d *Document) ref(ln line, sub string) models.SourceRef {
	off, n := 0, len(ln.text)
	if sub != "" {
		if i := strings.Index(ln.text, sub); i >= 0 {
			off, n = i, len(sub)
		}
	}
	page := ln.span.Page
	if page < 1 {
		page = 1
	}
	conf := ln.span.Confidence
	if conf < 0 || conf > 1 {
		conf = 0
	}
	return models.SourceRef{
		SourceFilename:  d.Filename,
		PageNumber:      page,
		CharStart:       ln.start + off,
		CharEnd:         ln.start + off + n,
		ConfidenceScore: conf,
		BBox:            ln.span.BBox,
	}
}
