package models

import (
	"time"
)

// DocumentType is the filename-based classification tag.
type DocumentType string

const (
	DocTechnicalSpecifications DocumentType = "technical_specifications"
	DocTenderAnnouncement      DocumentType = "tender_announcement"
	DocAnnex                   DocumentType = "annex"
	DocEvaluationCriteria      DocumentType = "evaluation_criteria"
	DocContractTerms           DocumentType = "contract_terms"
	DocClarification           DocumentType = "clarification"
	DocUnknown                 DocumentType = "unknown"
)

// SourceRef 字段来源
type SourceRef struct {
	SourceFilename  string     `json:"source_filename"`
	PageNumber      int        `json:"page_number"`
	CharStart       int        `json:"char_start"`
	CharEnd         int        `json:"char_end"`
	ConfidenceScore float64    `json:"confidence_score"`
	BBox            [4]float64 `json:"bbox"`
}

// Criterion is a knockout or selection requirement.
type Criterion struct {
	Type        string `json:"type"`
	Requirement string `json:"requirement"`
	Source      string `json:"source,omitempty"`
}

type ContactPerson struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Deliverable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
}

// DocumentExtractionResult 单个文档的提取结果
type DocumentExtractionResult struct {
	DocumentID          string       `json:"document_id"`
	Filename            string       `json:"filename"`
	DocumentType        DocumentType `json:"document_type"`
	ExtractionTimestamp time.Time    `json:"extraction_timestamp"`

	ProjectTitle         string   `json:"project_title,omitempty"`
	ProjectDescription   string   `json:"project_description,omitempty"`
	ContractingAuthority string   `json:"contracting_authority,omitempty"`
	CPVCodes             []string `json:"cpv_codes"`

	ContractType     string   `json:"contract_type,omitempty"`
	EstimatedValue   *float64 `json:"estimated_value,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	ContractDuration string   `json:"contract_duration,omitempty"`

	PublicationDate    *time.Time `json:"publication_date,omitempty"`
	SubmissionDeadline *time.Time `json:"submission_deadline,omitempty"`

	KnockoutCriteria   []Criterion        `json:"knockout_criteria"`
	SelectionCriteria  []Criterion        `json:"selection_criteria"`
	AssessmentCriteria map[string]float64 `json:"assessment_criteria"`

	ContactPersons         []ContactPerson `json:"contact_persons"`
	Deliverables           []Deliverable   `json:"deliverables"`
	TechnicalRequirements  []string        `json:"technical_requirements"`
	ComplianceRequirements []string        `json:"compliance_requirements"`

	SourceAttribution map[string]SourceRef `json:"source_attribution"`
	CompletenessScore float64              `json:"completeness_score"`
	ConfidenceScores  map[string]float64   `json:"confidence_scores"`

	// Text is the extracted plain text, kept for cross-document reference detection.
	Text string `json:"text,omitempty"`
}

// OverallConfidenceKey is the aggregate entry of ConfidenceScores; it is
// not a section.
const OverallConfidenceKey = "overall"

// OverallConfidence is the mean of the section confidence scores.
// ok is false when the result carries no section scores.
func (r *DocumentExtractionResult) OverallConfidence() (float64, bool) {
	var sum float64
	n := 0
	for _, k := range SortedKeys(r.ConfidenceScores) {
		if k == OverallConfidenceKey {
			continue
		}
		sum += r.ConfidenceScores[k]
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ProjectOverview 项目概览
type ProjectOverview struct {
	Title                string            `json:"title,omitempty"`
	ContractingAuthority string            `json:"contracting_authority,omitempty"`
	CPVCodes             []string          `json:"cpv_codes"`
	Sources              map[string]string `json:"sources"`
}

// ValueDiscrepancy is one distinct estimated value when documents disagree.
// Source is the first document reporting it, Sources lists all of them.
type ValueDiscrepancy struct {
	Value    float64  `json:"value"`
	Currency string   `json:"currency,omitempty"`
	Source   string   `json:"source"`
	Sources  []string `json:"sources"`
}

type ContractDetails struct {
	EstimatedValue     *float64           `json:"estimated_value,omitempty"`
	Currency           string             `json:"currency,omitempty"`
	ContractDuration   string             `json:"contract_duration,omitempty"`
	ContractType       string             `json:"contract_type,omitempty"`
	ValueDiscrepancies []ValueDiscrepancy `json:"value_discrepancies"`
	Sources            map[string]string  `json:"sources"`
}

type CriticalDates struct {
	SubmissionDeadline *time.Time        `json:"submission_deadline,omitempty"`
	PublicationDate    *time.Time        `json:"publication_date,omitempty"`
	Sources            map[string]string `json:"sources"`
}

type EvaluationCriteria struct {
	KnockoutCriteria   []Criterion        `json:"knockout_criteria"`
	SelectionCriteria  []Criterion        `json:"selection_criteria"`
	AssessmentCriteria map[string]float64 `json:"assessment_criteria"`
	CriteriaSources    map[string]string  `json:"criteria_sources"`
}

type DeliverablesAndRequirements struct {
	Deliverables           []Deliverable `json:"deliverables"`
	TechnicalRequirements  []string      `json:"technical_requirements"`
	ComplianceRequirements []string      `json:"compliance_requirements"`
}

// DocumentRelationship links two source documents by filename.
type DocumentRelationship struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// MergedTenderResult 多文档合并结果
type MergedTenderResult struct {
	TenderID                    string                      `json:"tender_id"`
	SourceDocuments             []string                    `json:"source_documents"`
	ProjectOverview             ProjectOverview             `json:"project_overview"`
	ContractDetails             ContractDetails             `json:"contract_details"`
	CriticalDates               CriticalDates               `json:"critical_dates"`
	Stakeholders                []ContactPerson             `json:"stakeholders"`
	EvaluationCriteria          EvaluationCriteria          `json:"evaluation_criteria"`
	DeliverablesAndRequirements DeliverablesAndRequirements `json:"deliverables_and_requirements"`
	DocumentRelationships       []DocumentRelationship      `json:"document_relationships"`
	CompletenessScore           float64                     `json:"completeness_score"`
	ConfidenceScores            map[string]float64          `json:"confidence_scores"`
}
