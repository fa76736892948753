package models

import (
	"time"

	"gorm.io/datatypes"
)

// Contract lifecycle statuses. A record is created as "uploaded" by the
// upload flow and is only moved between the remaining statuses by the
// analysis pipeline. "pending-review" belongs to the manual review workflow
// and is never produced here.
const (
	StatusUploaded      = "uploaded"
	StatusAnalyzing     = "analyzing"
	StatusAnalyzed      = "analyzed"
	StatusError         = "error"
	StatusPendingReview = "pending-review"
)

// Overall risk tiers derived from the itemized risk findings.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Contract represents one uploaded contract document and its analysis state.
type Contract struct {
	// ID is a unique identifier for the contract, stored as a UUID in the
	// database. The column default lives in the migration.
	ID string `gorm:"type:uuid;primaryKey" json:"id"`

	// OwnerID references the user who uploaded the contract. Only this user
	// may trigger or read back analysis.
	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`

	// Name is the original filename, set at upload time.
	Name string `json:"name"`

	// MimeType is the content type recorded at upload time. Upload-time mime
	// detection is unreliable, so the pipeline also falls back to the
	// filename extension when routing.
	MimeType string `json:"mime_type"`

	// SizeBytes is the stored object size recorded at upload time.
	SizeBytes int64 `json:"size_bytes"`

	// StorageBucket and StoragePath point at the immutable object in the
	// external blob store.
	StorageBucket string `json:"storage_bucket"`
	StoragePath   string `json:"storage_path"`

	// Status tracks the analysis lifecycle: uploaded -> analyzing ->
	// {analyzed, error}, with re-entry into analyzing from terminal states.
	Status string `gorm:"not null;default:'uploaded'" json:"status"`

	// RiskLevel is the overall tier (low/medium/high), present only when
	// Status is "analyzed".
	RiskLevel string `json:"risk_level,omitempty"`

	// SummaryText is a short derived summary, present only when analyzed.
	SummaryText string `json:"summary_text,omitempty"`

	// Analysis holds the structured AnalysisResult JSON, present only when
	// analyzed. Mutually exclusive with Error.
	Analysis datatypes.JSON `json:"analysis,omitempty"`

	// Error holds the last failure message, present only when Status is
	// "error".
	Error string `json:"error,omitempty"`

	UploadedAt          time.Time  `json:"uploaded_at"`
	AnalysisStartedAt   *time.Time `json:"analysis_started_at,omitempty"`
	AnalysisCompletedAt *time.Time `json:"analysis_completed_at,omitempty"`
}
