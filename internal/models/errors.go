package models

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrNotReady        = errors.New("job is not finished")
	ErrNoResults       = errors.New("job has no results")
	ErrVersionConflict = errors.New("job version conflict")
)

// ValidationError rejects a submission before any job is created.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// ExtractionErrorKind 提取错误类型
type ExtractionErrorKind string

const (
	ExtractionValidation         ExtractionErrorKind = "validation"
	ExtractionTimeout            ExtractionErrorKind = "timeout"
	ExtractionUpstreamFailure    ExtractionErrorKind = "upstream_failure"
	ExtractionUnsupportedContent ExtractionErrorKind = "unsupported_content"
)

// ExtractionError is a per-document failure. It is recorded in the
// document's slot and never fails sibling documents.
type ExtractionError struct {
	Kind     ExtractionErrorKind `json:"kind"`
	Filename string              `json:"filename"`
	Message  string              `json:"message"`
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction of %s failed (%s): %s", e.Filename, e.Kind, e.Message)
}

// MergeError means the merge engine could not produce a consistent record.
type MergeError struct {
	Reason string `json:"reason"`
}

func (e *MergeError) Error() string {
	return "merge failed: " + e.Reason
}
