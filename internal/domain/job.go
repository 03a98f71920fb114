package domain

import (
	"encoding/json"
	"time"
)

// JobType enumerates the pipeline flows.
type JobType string

const (
	JobTypeGenerateArtwork          JobType = "GENERATE_ARTWORK"
	JobTypeNormalizeArtwork         JobType = "NORMALIZE_ARTWORK"
	JobTypeCreateFulfillmentProduct JobType = "CREATE_FULFILLMENT_PRODUCT"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeGenerateArtwork, JobTypeNormalizeArtwork, JobTypeCreateFulfillmentProduct:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether s may move to next. Status only moves
// forward; RUNNING → RUNNING is allowed so a replayed job can resume.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusRunning || next.Terminal()
	default:
		return false
	}
}

// Job is one run of a pipeline flow.
type Job struct {
	ID        string
	SessionID string
	Type      JobType
	Status    JobStatus
	Input     json.RawMessage
	Output    json.RawMessage
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerateInput is the payload of a GENERATE_ARTWORK job.
type GenerateInput struct {
	Prompt           string `json:"prompt"`
	SourceArtifactID string `json:"sourceArtifactId,omitempty"`
	Side             string `json:"side,omitempty"`
}

type GenerateOutput struct {
	ArtifactID string `json:"artifactId"`
	URL        string `json:"url"`
}

// NormalizeInput is the payload of a NORMALIZE_ARTWORK job.
type NormalizeInput struct {
	ArtifactID       string `json:"artifactId"`
	RemoveBackground bool   `json:"removeBackground"`
	Provenance       string `json:"provenance,omitempty"`
	TargetWidth      int    `json:"targetWidth,omitempty"`
	TargetHeight     int    `json:"targetHeight,omitempty"`
	TargetDPI        int    `json:"targetDpi,omitempty"`
}

type NormalizeOutput struct {
	ArtifactID string `json:"artifactId"`
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	DPI        int    `json:"dpi"`
	HasAlpha   bool   `json:"hasAlpha"`
}

// ProductInput is the payload of a CREATE_FULFILLMENT_PRODUCT job.
type ProductInput struct {
	Title             string `json:"title"`
	PrimaryArtifactID string `json:"primaryArtifactId,omitempty"`
	VariantIDs        []int  `json:"variantIds,omitempty"`
	RetailPrice       string `json:"retailPrice,omitempty"`
}

// PrintFile is one per-side file handed to the fulfillment service.
type PrintFile struct {
	Placement  string `json:"placement"`
	URL        string `json:"url"`
	ArtifactID string `json:"artifactId"`
}

type ProductOutput struct {
	ProductID  int64       `json:"productId"`
	Files      []PrintFile `json:"files"`
	MockupURLs []string    `json:"mockupUrls,omitempty"`
}
