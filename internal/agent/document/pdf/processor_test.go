package pdf

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/tender-processor/pkg/logger"
)

func TestSplitLines(t *testing.T) {
	spans := splitLines("Aanbestedende dienst:\tGemeente Utrecht\r\n\n  Geschatte waarde: € 100.000  \n", 2)

	assert.Len(t, spans, 2)
	assert.Equal(t, "Aanbestedende dienst: Gemeente Utrecht", spans[0].Text)
	assert.Equal(t, "Geschatte waarde: € 100.000", spans[1].Text)
	assert.Equal(t, 2, spans[1].Page)
	assert.Equal(t, textLayerConfidence, spans[0].Confidence)
}

func TestProcess_RejectsNonPDF(t *testing.T) {
	p := NewProcessor(logger.NewNop())
	assert.True(t, p.CanProcess("application/pdf"))
	assert.False(t, p.CanProcess("image/png"))

	_, err := p.Process(context.Background(), strings.NewReader("plain text, not a pdf"))
	assert.Error(t, err)
}
