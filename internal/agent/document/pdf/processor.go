package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

// textLayerConfidence is reported for text read from the PDF text layer.
const textLayerConfidence = 0.95

// Processor reads the embedded text layer of a PDF, one span per line.
type Processor struct {
	logger     logger.Logger
	maxWorkers int
}

func NewProcessor(logger logger.Logger) *Processor {
	return &Processor{
		logger:     logger,
		maxWorkers: 4,
	}
}

func (p *Processor) CanProcess(mimeType string) bool {
	return mimeType == "application/pdf"
}

func (p *Processor) Process(ctx context.Context, file io.Reader) ([]models.TextSpan, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := pdfReader.NumPage()
	pages := make([][]models.TextSpan, numPages)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)

	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			page := pdfReader.Page(pageNum)
			if page.V.IsNull() {
				return nil
			}

			text, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("failed to get text from page %d: %w", pageNum, err)
			}
			pages[pageNum-1] = splitLines(text, pageNum)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var spans []models.TextSpan
	for _, page := range pages {
		spans = append(spans, page...)
	}

	p.logger.Debug("PDF text layer read",
		logger.Int("pages", numPages),
		logger.Int("spans", len(spans)),
	)
	return spans, nil
}

func splitLines(text string, page int) []models.TextSpan {
	var spans []models.TextSpan
	for _, line := range strings.Split(text, "\n") {
		line = cleanText(line)
		if line == "" {
			continue
		}
		spans = append(spans, models.TextSpan{
			Text:       line,
			Page:       page,
			Confidence: textLayerConfidence,
			Method:     "pdf_text",
		})
	}
	return spans
}

// cleanText collapses runs of whitespace and drops control characters.
func cleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\r' || r == '\f' {
			return ' '
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

// Close 实现 document.Processor 接口的 Close 方法
func (p *Processor) Close() error {
	return nil
}
