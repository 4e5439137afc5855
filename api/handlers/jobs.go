package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/internal/service/export"
	"github.com/feichai0017/tender-processor/internal/service/extraction"
	"github.com/feichai0017/tender-processor/internal/utils/validator"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

const defaultListLimit = 50

type JobHandler struct {
	jobs          JobService
	exporter      Exporter
	tasks         TaskStatusReader
	maxBatchFiles int
	logger        logger.Logger
}

// SubmitResponse 定义提交响应结构
type SubmitResponse struct {
	JobID          string  `json:"job_id"`
	Kind           string  `json:"job_type"`
	Status         string  `json:"status"`
	TotalDocuments int     `json:"total_documents"`
	Processed      int     `json:"processed_documents"`
	Progress       float64 `json:"progress"`
	Message        string  `json:"message"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// JobSummary is one entry of the job list.
type JobSummary struct {
	JobID     string  `json:"job_id"`
	Kind      string  `json:"job_type"`
	Status    string  `json:"status"`
	JobName   string  `json:"job_name,omitempty"`
	Progress  float64 `json:"progress"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func NewJobHandler(jobs JobService, exporter Exporter, tasks TaskStatusReader, maxBatchFiles int, logger logger.Logger) *JobHandler {
	return &JobHandler{
		jobs:          jobs,
		exporter:      exporter,
		tasks:         tasks,
		maxBatchFiles: maxBatchFiles,
		logger:        logger,
	}
}

// SubmitSingle 提交单个文档
func (h *JobHandler) SubmitSingle(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.handleError(c, &models.ValidationError{Field: "file", Message: "a file upload is required"})
		return
	}
	file, err := readUpload(header)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.submit(c, extraction.SubmitRequest{
		Kind:     models.KindSingle,
		Language: c.PostForm("language"),
		Files:    []validator.File{file},
	})
}

// SubmitBatch 批量提交文档
func (h *JobHandler) SubmitBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, &models.ValidationError{Field: "files", Message: "invalid multipart form"})
		return
	}
	headers := form.File["files"]
	if h.maxBatchFiles > 0 && len(headers) > h.maxBatchFiles {
		// reject before reading any content
		h.handleError(c, &models.ValidationError{
			Field:   "files",
			Message: fmt.Sprintf("at most %d documents per batch", h.maxBatchFiles),
		})
		return
	}

	opts, err := batchOptions(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	files := make([]validator.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			h.handleError(c, err)
			return
		}
		files = append(files, f)
	}

	h.submit(c, extraction.SubmitRequest{
		Kind:     models.KindBatch,
		Language: c.PostForm("language"),
		Files:    files,
		Options:  opts,
	})
}

func (h *JobHandler) submit(c *gin.Context, req extraction.SubmitRequest) {
	job, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{
		JobID:          job.ID,
		Kind:           string(job.Kind),
		Status:         string(job.Status),
		TotalDocuments: job.Progress.Total,
		Processed:      job.Progress.Processed,
		Progress:       job.Progress.Percent(),
		Message:        "Document processing started",
	})
}

// GetStatus 获取任务状态和结果
func (h *JobHandler) GetStatus(c *gin.Context) {
	job, err := h.jobs.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":      job,
		"progress": job.Progress.Percent(),
	})
}

// GetTaskStatus reports the queue-side state of a job's task.
func (h *JobHandler) GetTaskStatus(c *gin.Context) {
	if h.tasks == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "jobs are not queued in this deployment"})
		return
	}
	status, err := h.tasks.GetTaskStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		h.logger.Warn("Task status lookup failed", logger.String("jobId", c.Param("jobId")), logger.Error(err))
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "task not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListJobs 列出最近的任务
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.handleError(c, &models.ValidationError{Field: "limit", Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	jobs, err := h.jobs.List(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := make([]JobSummary, len(jobs))
	for i, j := range jobs {
		out[i] = JobSummary{
			JobID:     j.ID,
			Kind:      string(j.Kind),
			Status:    string(j.Status),
			JobName:   j.Options.JobName,
			Progress:  j.Progress.Percent(),
			CreatedAt: j.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt: j.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out, "count": len(out)})
}

// Export 下载 JSONL 结果
func (h *JobHandler) Export(c *gin.Context) {
	jobID := c.Param("jobId")

	mode, err := export.ParseMode(c.Query("mode"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	includeMetadata, err := queryBool(c, "include_metadata", true)
	if err != nil {
		h.handleError(c, err)
		return
	}
	compress, err := queryBool(c, "compress", false)
	if err != nil {
		h.handleError(c, err)
		return
	}

	exp, err := h.exporter.Open(c.Request.Context(), jobID, export.Options{
		Mode:            mode,
		IncludeMetadata: includeMetadata,
		Compress:        compress,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Type", exp.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exp.Filename))
	c.Status(http.StatusOK)

	n, err := exp.WriteTo(c.Writer)
	if err != nil {
		// headers are already sent
		h.logger.Error("Export stream aborted",
			logger.String("jobId", jobID),
			logger.Int64("bytes", n),
			logger.Error(err),
		)
		return
	}
	h.logger.Info("Exported job results",
		logger.String("jobId", jobID),
		logger.String("filename", exp.Filename),
		logger.Int64("bytes", n),
	)
}

func batchOptions(c *gin.Context) (models.JobOptions, error) {
	merge, err := formBool(c, "merge_results", false)
	if err != nil {
		return models.JobOptions{}, err
	}
	relationships, err := formBool(c, "extract_relationships", true)
	if err != nil {
		return models.JobOptions{}, err
	}
	return models.JobOptions{
		MergeResults:         merge,
		ExtractRelationships: relationships,
		JobName:              c.PostForm("job_name"),
	}, nil
}

func formBool(c *gin.Context, key string, def bool) (bool, error) {
	return parseBool(key, c.PostForm(key), def)
}

func queryBool(c *gin.Context, key string, def bool) (bool, error) {
	return parseBool(key, c.Query(key), def)
}

func parseBool(key, raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &models.ValidationError{Field: key, Message: fmt.Sprintf("invalid boolean %q", raw)}
	}
	return b, nil
}

func readUpload(fh *multipart.FileHeader) (validator.File, error) {
	f, err := fh.Open()
	if err != nil {
		return validator.File{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return validator.File{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return validator.File{Filename: fh.Filename, Content: content}, nil
}

// handleError 统一错误处理
func (h *JobHandler) handleError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: verr.Message, Field: verr.Field})
	case errors.Is(err, models.ErrJobNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, models.ErrNotReady):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "not_ready", Message: err.Error()})
	case errors.Is(err, models.ErrNoResults):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "no_results", Message: err.Error()})
	default:
		h.logger.Error("Request failed",
			logger.String("path", c.FullPath()),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "internal server error"})
	}
}
