package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobKind 任务类型
type JobKind string

const (
	KindSingle JobKind = "single"
	KindBatch  JobKind = "batch"
)

// JobStatus is monotonic: queued -> processing -> completed | failed.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s JobStatus) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// CanTransition reports whether moving from s to next is a forward move.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Document is one submitted input. ContentKey points into blob storage.
type Document struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	ContentKey  string `json:"content_key"`
}

// JobOptions only affect batch jobs.
type JobOptions struct {
	MergeResults         bool   `json:"merge_results"`
	ExtractRelationships bool   `json:"extract_relationships"`
	JobName              string `json:"job_name,omitempty"`
}

type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
}

// Percent returns processing progress as a percentage.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// SlotStatus tracks one document slot inside a job.
type SlotStatus string

const (
	SlotPending   SlotStatus = "pending"
	SlotSucceeded SlotStatus = "succeeded"
	SlotFailed    SlotStatus = "failed"
)

// DocumentSlot holds the outcome for the document at the same index in Job.Documents.
type DocumentSlot struct {
	Index    int                       `json:"index"`
	Filename string                    `json:"filename"`
	Status   SlotStatus                `json:"status"`
	Result   *DocumentExtractionResult `json:"result,omitempty"`
	Error    *ExtractionError          `json:"error,omitempty"`
}

// Job 提取任务
type Job struct {
	ID        string              `json:"job_id"`
	Kind      JobKind             `json:"job_type"`
	Status    JobStatus           `json:"status"`
	Language  string              `json:"language"`
	Documents []Document          `json:"documents"`
	Options   JobOptions          `json:"options"`
	Progress  Progress            `json:"progress"`
	Results   []DocumentSlot      `json:"results"`
	Merged    *MergedTenderResult `json:"merged_result,omitempty"`
	Error     string              `json:"error,omitempty"`
	Version   int64               `json:"version"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NewJob builds a queued job with one pending slot per document.
func NewJob(id string, kind JobKind, language string, docs []Document, opts JobOptions, now time.Time) *Job {
	slots := make([]DocumentSlot, len(docs))
	for i, d := range docs {
		slots[i] = DocumentSlot{Index: i, Filename: d.Filename, Status: SlotPending}
	}
	return &Job{
		ID:        id,
		Kind:      kind,
		Status:    StatusQueued,
		Language:  language,
		Documents: docs,
		Options:   opts,
		Progress:  Progress{Total: len(docs)},
		Results:   slots,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Succeeded returns successful results in input order.
func (j *Job) Succeeded() []*DocumentExtractionResult {
	out := make([]*DocumentExtractionResult, 0, len(j.Results))
	for _, s := range j.Results {
		if s.Status == SlotSucceeded && s.Result != nil {
			out = append(out, s.Result)
		}
	}
	return out
}

// FailedCount counts slots marked failed.
func (j *Job) FailedCount() int {
	n := 0
	for _, s := range j.Results {
		if s.Status == SlotFailed {
			n++
		}
	}
	return n
}

// WantsMerge reports whether the job options request a merged record.
func (j *Job) WantsMerge() bool {
	return j.Kind == KindBatch && j.Options.MergeResults && len(j.Documents) > 1
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (j *Job) Clone() (*Job, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	var out Job
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &out, nil
}
