package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	cfg "github.com/feichai0017/tender-processor/config"
	"github.com/feichai0017/tender-processor/internal/agent/document"
	"github.com/feichai0017/tender-processor/internal/agent/document/image"
	"github.com/feichai0017/tender-processor/internal/agent/document/pdf"
	"github.com/feichai0017/tender-processor/internal/agent/document/text"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

// 扩展名到 MIME 类型的映射
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// MIMEType maps a filename to the MIME type of its extension, or "".
func MIMEType(filename string) string {
	return extToMIME[strings.ToLower(filepath.Ext(filename))]
}

type ProcessorFactory struct {
	processors map[string]document.Processor
	logger     logger.Logger
}

// NewProcessorFactory registers the PDF and plain text sources. Images are
// only supported when ocr is "textract".
func NewProcessorFactory(ctx context.Context, ocr string, textractCfg *cfg.TextractConfig, log logger.Logger) (*ProcessorFactory, error) {
	factory := NewEmptyFactory(log)
	factory.Register("application/pdf", pdf.NewProcessor(log))
	factory.Register("text/plain", text.NewProcessor(log))

	switch ocr {
	case "", "none":
	case "textract":
		textractProcessor, err := image.NewTextractProcessor(ctx, &image.TextractConfig{
			Region:        textractCfg.Region,
			Endpoint:      textractCfg.Endpoint,
			AccessKey:     textractCfg.AccessKey,
			SecretKey:     textractCfg.SecretKey,
			MinConfidence: 80.0,
			EnableTable:   true,
			EnableForm:    true,
			MaxImageSide:  textractCfg.MaxImageSide,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create textract processor: %w", err)
		}
		// 注册 Textract 处理器支持的所有图像类型
		for _, mime := range []string{"image/jpeg", "image/png", "image/tiff"} {
			factory.Register(mime, textractProcessor)
		}
	default:
		return nil, fmt.Errorf("unsupported ocr backend: %s", ocr)
	}

	log.Info("Processor factory ready",
		logger.String("ocr", ocr),
		logger.Int("types", len(factory.processors)),
	)
	return factory, nil
}

// NewEmptyFactory returns a factory with no processors registered.
func NewEmptyFactory(log logger.Logger) *ProcessorFactory {
	return &ProcessorFactory{
		processors: make(map[string]document.Processor),
		logger:     log,
	}
}

// Register binds a processor to a MIME type, replacing any previous one.
func (f *ProcessorFactory) Register(mimeType string, p document.Processor) {
	f.processors[mimeType] = p
}

// GetProcessor picks the processor for filename by its extension.
func (f *ProcessorFactory) GetProcessor(filename string) (document.Processor, error) {
	mimeType := MIMEType(filename)
	if mimeType == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}

	processor, ok := f.processors[mimeType]
	if !ok || !processor.CanProcess(mimeType) {
		return nil, fmt.Errorf("%w: no processor for %s", ErrUnsupportedFormat, mimeType)
	}
	return processor, nil
}

// Close releases every registered processor once.
func (f *ProcessorFactory) Close() error {
	closed := make(map[document.Processor]bool)
	var firstErr error
	for _, p := range f.processors {
		if closed[p] {
			continue
		}
		closed[p] = true
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
