package agent

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tender-processor/internal/agent/document/text"
	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

type failingProcessor struct{ err error }

func (p failingProcessor) CanProcess(string) bool { return true }
func (p failingProcessor) Process(context.Context, io.Reader) ([]models.TextSpan, error) {
	return nil, p.err
}
func (p failingProcessor) Close() error { return nil }

func newTextExtractor() *RuleExtractor {
	f := NewEmptyFactory(logger.NewNop())
	f.Register("text/plain", text.NewProcessor(logger.NewNop()))
	e := NewRuleExtractor(f, logger.NewNop())
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 7200)) }
	return e
}

func TestRuleExtractor_Text(t *testing.T) {
	e := newTextExtractor()
	content := []byte("Aanbestedende dienst: Gemeente Utrecht\nCPV: 45000000-7\nGeschatte waarde: € 300.000\n")

	res, err := e.Extract(context.Background(), Request{Filename: "Aankondiging.txt", Language: "nl", Content: content})
	require.NoError(t, err)

	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, models.DocTenderAnnouncement, res.DocumentType)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), res.ExtractionTimestamp)
	assert.Equal(t, "Gemeente Utrecht", res.ContractingAuthority)
	assert.Equal(t, []string{"45000000-7"}, res.CPVCodes)
	require.NotNil(t, res.EstimatedValue)
	assert.Equal(t, 300000.0, *res.EstimatedValue)
	assert.Equal(t, "Aankondiging.txt", res.SourceAttribution["contracting_authority"].SourceFilename)
}

func TestRuleExtractor_Errors(t *testing.T) {
	e := newTextExtractor()
	ctx := context.Background()

	_, err := e.Extract(ctx, Request{Filename: "offerte.docx", Content: []byte("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	// registered extension without a processor
	_, err = e.Extract(ctx, Request{Filename: "scan.png", Content: []byte("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = e.Extract(ctx, Request{Filename: "leeg.txt", Content: []byte("\n  \n")})
	assert.ErrorIs(t, err, ErrNoContent)

	boom := errors.New("boom")
	e.factory.Register("application/pdf", failingProcessor{err: boom})
	_, err = e.Extract(ctx, Request{Filename: "bestek.pdf", Content: []byte("%PDF")})
	assert.ErrorIs(t, err, boom)
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "application/pdf", MIMEType("Bestek.PDF"))
	assert.Equal(t, "image/tiff", MIMEType("scan.tif"))
	assert.Equal(t, "", MIMEType("README"))
}

func TestProcessorFactory_RejectsUnknownOCR(t *testing.T) {
	_, err := NewProcessorFactory(context.Background(), "tesseract", nil, logger.NewNop())
	assert.Error(t, err)

	f, err := NewProcessorFactory(context.Background(), "none", nil, logger.NewNop())
	require.NoError(t, err)
	_, err = f.GetProcessor("bestek.pdf")
	assert.NoError(t, err)
	_, err = f.GetProcessor("scan.jpg")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.NoError(t, f.Close())
}
