// Package converters turns stored jobs into newline-delimited export records.
package converters

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/tender-processor/internal/models"
)

// RecordType 导出记录类型
type RecordType string

const (
	RecordHeader   RecordType = "header"
	RecordMerged   RecordType = "merged_result"
	RecordDocument RecordType = "document_result"
)

// Record is one line of an export stream. Exactly one payload is set.
type Record struct {
	RecordType RecordType                 `json:"record_type"`
	Header     *JobHeader                 `json:"header,omitempty"`
	Merged     *models.MergedTenderResult `json:"merged_result,omitempty"`
	Document   *DocumentRecord            `json:"document,omitempty"`
	JobContext *JobContext                `json:"job_context,omitempty"`
}

// JobHeader describes the exported job.
type JobHeader struct {
	JobID         string            `json:"job_id"`
	JobType       models.JobKind    `json:"job_type"`
	Status        models.JobStatus  `json:"status"`
	Language      string            `json:"language"`
	Options       models.JobOptions `json:"options"`
	DocumentCount int               `json:"document_count"`
	Succeeded     int               `json:"succeeded"`
	Failed        int               `json:"failed"`
	HasMerged     bool              `json:"has_merged_result"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// DocumentRecord is one result slot; failed slots carry Error instead of Result.
type DocumentRecord struct {
	Index    int                              `json:"index"`
	Filename string                           `json:"filename"`
	Status   models.SlotStatus                `json:"status"`
	Result   *models.DocumentExtractionResult `json:"result,omitempty"`
	Error    *models.ExtractionError          `json:"error,omitempty"`
}

// JobContext ties a result record back to its job.
type JobContext struct {
	JobID    string         `json:"job_id"`
	JobType  models.JobKind `json:"job_type"`
	JobName  string         `json:"job_name,omitempty"`
	Language string         `json:"language"`
}

// RecordConverter builds records for one job.
type RecordConverter struct {
	IncludeMetadata bool
}

func NewRecordConverter(includeMetadata bool) *RecordConverter {
	return &RecordConverter{IncludeMetadata: includeMetadata}
}

func (c *RecordConverter) Header(job *models.Job) Record {
	return Record{
		RecordType: RecordHeader,
		Header: &JobHeader{
			JobID:         job.ID,
			JobType:       job.Kind,
			Status:        job.Status,
			Language:      job.Language,
			Options:       job.Options,
			DocumentCount: len(job.Documents),
			Succeeded:     len(job.Succeeded()),
			Failed:        job.FailedCount(),
			HasMerged:     job.Merged != nil,
			Error:         job.Error,
			CreatedAt:     job.CreatedAt,
			UpdatedAt:     job.UpdatedAt,
		},
	}
}

func (c *RecordConverter) Merged(job *models.Job) Record {
	return Record{RecordType: RecordMerged, Merged: job.Merged, JobContext: c.context(job)}
}

func (c *RecordConverter) Document(job *models.Job, slot models.DocumentSlot) Record {
	return Record{
		RecordType: RecordDocument,
		Document: &DocumentRecord{
			Index:    slot.Index,
			Filename: slot.Filename,
			Status:   slot.Status,
			Result:   slot.Result,
			Error:    slot.Error,
		},
		JobContext: c.context(job),
	}
}

func (c *RecordConverter) context(job *models.Job) *JobContext {
	if !c.IncludeMetadata {
		return nil
	}
	return &JobContext{
		JobID:    job.ID,
		JobType:  job.Kind,
		JobName:  job.Options.JobName,
		Language: job.Language,
	}
}

// JSONLWriter writes one JSON object per line.
type JSONLWriter struct {
	enc *json.Encoder
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

func (w *JSONLWriter) Write(r Record) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode %s record: %w", r.RecordType, err)
	}
	return nil
}
