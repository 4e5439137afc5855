// Package validator rejects bad submissions before any job is created.
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize       int64    // 最大文件大小（字节）
	MaxBatchFiles     int      // 批量任务最大文件数
	Languages         []string // 支持的语言
	AllowedExtensions []string // 允许的扩展名
}

// File is one uploaded document.
type File struct {
	Filename string
	Content  []byte
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

// sniffed lists the content types http.DetectContentType reports for each
// extension. It knows no TIFF signature.
var sniffed = map[string][]string{
	".pdf":  {"application/pdf"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".tiff": {"image/tiff", "application/octet-stream"},
	".tif":  {"image/tiff", "application/octet-stream"},
	".txt":  {"text/plain"},
}

// SubmissionValidator 提交验证器
type SubmissionValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

func NewSubmissionValidator(log logger.Logger, config *ValidatorConfig) *SubmissionValidator {
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize:       50 * 1024 * 1024, // 50MB
			MaxBatchFiles:     20,
			Languages:         []string{"nl", "en", "de", "fr"},
			AllowedExtensions: []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".txt"},
		}
	}
	return &SubmissionValidator{logger: log, config: config}
}

// Validate checks a whole submission. The first problem found is returned
// as a *models.ValidationError.
func (v *SubmissionValidator) Validate(kind models.JobKind, language string, files []File) error {
	if err := v.ValidateLanguage(language); err != nil {
		return err
	}

	switch kind {
	case models.KindSingle:
		if len(files) != 1 {
			return &models.ValidationError{Field: "files", Message: fmt.Sprintf("a single job takes exactly 1 file, got %d", len(files))}
		}
	case models.KindBatch:
		if len(files) == 0 {
			return &models.ValidationError{Field: "files", Message: "no files submitted"}
		}
		if len(files) > v.config.MaxBatchFiles {
			return &models.ValidationError{Field: "files", Message: fmt.Sprintf("at most %d files per batch, got %d", v.config.MaxBatchFiles, len(files))}
		}
	default:
		return &models.ValidationError{Field: "job_type", Message: fmt.Sprintf("unknown job type %q", kind)}
	}

	for _, f := range files {
		if _, err := v.ValidateFile(f); err != nil {
			return err
		}
	}
	return nil
}

func (v *SubmissionValidator) ValidateLanguage(language string) error {
	if !slices.Contains(v.config.Languages, language) {
		return &models.ValidationError{
			Field:   "language",
			Message: fmt.Sprintf("unsupported language %q, expected one of %s", language, strings.Join(v.config.Languages, ", ")),
		}
	}
	return nil
}

// ValidateFile checks size, extension and that the content looks like the
// extension claims.
func (v *SubmissionValidator) ValidateFile(f File) (*FileInfo, error) {
	info := &FileInfo{
		Filename:  f.Filename,
		Size:      int64(len(f.Content)),
		Extension: strings.ToLower(filepath.Ext(f.Filename)),
	}

	if strings.TrimSpace(f.Filename) == "" {
		return nil, &models.ValidationError{Field: "filename", Message: "missing filename"}
	}
	if info.Size == 0 {
		return nil, &models.ValidationError{Field: "size", Message: fmt.Sprintf("%s is empty", f.Filename)}
	}
	if info.Size > v.config.MaxFileSize {
		return nil, &models.ValidationError{
			Field:   "size",
			Message: fmt.Sprintf("%s exceeds maximum size of %d bytes", f.Filename, v.config.MaxFileSize),
		}
	}
	if !slices.Contains(v.config.AllowedExtensions, info.Extension) {
		return nil, &models.ValidationError{Field: "extension", Message: fmt.Sprintf("file type %q is not allowed", info.Extension)}
	}

	info.MimeType = detectMimeType(f.Content)
	if allowed, ok := sniffed[info.Extension]; ok && !slices.Contains(allowed, info.MimeType) {
		v.logger.Warn("Content does not match extension",
			logger.String("filename", f.Filename),
			logger.String("mimeType", info.MimeType),
		)
		return nil, &models.ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("%s content is %s, not %s", f.Filename, info.MimeType, info.Extension),
		}
	}

	info.Hash = calculateHash(f.Content)
	return info, nil
}

// 检测MIME类型，去掉参数部分
func detectMimeType(content []byte) string {
	mimeType := http.DetectContentType(content)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return mimeType
}

// 计算文件哈希
func calculateHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
