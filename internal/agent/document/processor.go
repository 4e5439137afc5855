package document

import (
	"context"
	"io"

	"github.com/feichai0017/tender-processor/internal/models"
)

// Processor 文档文本源接口
type Processor interface {
	// CanProcess 检查是否可以处理指定MIME类型的文件
	CanProcess(mimeType string) bool

	// Process returns the document text as spans in reading order.
	Process(ctx context.Context, reader io.Reader) ([]models.TextSpan, error)

	// Close 清理资源
	Close() error
}
