package text

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

const maxLineBytes = 1 << 20

// Processor reads UTF-8 plain text, one span per line, all on page 1.
type Processor struct {
	logger logger.Logger
}

func NewProcessor(logger logger.Logger) *Processor {
	return &Processor{logger: logger}
}

func (p *Processor) CanProcess(mimeType string) bool {
	return mimeType == "text/plain"
}

func (p *Processor) Process(ctx context.Context, r io.Reader) ([]models.TextSpan, error) {
	var spans []models.TextSpan
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := sc.Text()
		if !utf8.ValidString(line) {
			return nil, fmt.Errorf("text is not valid UTF-8")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		spans = append(spans, models.TextSpan{Text: line, Page: 1, Confidence: 1, Method: "plain_text"})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	return spans, nil
}

func (p *Processor) Close() error {
	return nil
}
