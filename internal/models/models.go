package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type SubmissionState string

type SortOrder string

const (
	SubmissionStateBuilding  SubmissionState = "building"
	SubmissionStateSubmitted SubmissionState = "submitted"
	SubmissionStateConfirmed SubmissionState = "confirmed"
	SubmissionStateRejected  SubmissionState = "rejected"
)

// Terminal reports whether no further transition is expected.
func (s SubmissionState) Terminal() bool {
	return s == SubmissionStateConfirmed || s == SubmissionStateRejected
}

const (
	SortNewest  SortOrder = "newest"
	SortOldest  SortOrder = "oldest"
	SortVersion SortOrder = "version"
)

// ParseSortOrder maps user input to a SortOrder, defaulting to newest.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortOldest:
		return SortOldest, nil
	case SortVersion:
		return SortVersion, nil
	default:
		return "", fmt.Errorf("unknown sort order %q (expected newest, oldest or version)", s)
	}
}

// Submission is the local journal entry of one publish-and-commit run.
// It tracks client-side progress only; the ledger stays authoritative.
type Submission struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Owner        string          `gorm:"index;not null" json:"owner"`
	ContentHash  string          `gorm:"index;not null" json:"content_hash"`
	ProjectName  string          `gorm:"not null" json:"project_name"`
	Description  string          `gorm:"type:text" json:"description"`
	State        SubmissionState `gorm:"index;default:building" json:"state"`
	TxHash       string          `gorm:"index" json:"tx_hash,omitempty"`
	DeploymentID *uint64         `json:"deployment_id,omitempty"`
	Error        string          `gorm:"type:text" json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IndexedDeployment is a WebsiteDeployed event observed by the listener.
type IndexedDeployment struct {
	DeploymentID uint64         `gorm:"primaryKey;autoIncrement:false" json:"deployment_id"`
	Owner        string         `gorm:"index;not null" json:"owner"`
	ContentHash  string         `gorm:"index;not null" json:"content_hash"`
	Timestamp    int64          `json:"timestamp"`
	TxHash       string         `gorm:"not null" json:"tx_hash"`
	BlockNumber  uint64         `json:"block_number"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
