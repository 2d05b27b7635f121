package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Deployment is a website deployment as recorded on the ledger.
// Every field is read back from the contract; a Deployment only exists once its
// creating transaction has been confirmed.
type Deployment struct {
	ID          uint64         `json:"id"`
	Owner       common.Address `json:"owner"`
	ContentHash string         `json:"content_hash"`
	ProjectName string         `json:"project_name"`
	Description string         `json:"description"`
	// Version is assigned by the contract. Treat it as opaque.
	Version   uint64 `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// DeployedAt returns the ledger commit time.
func (d Deployment) DeployedAt() time.Time {
	return time.Unix(d.Timestamp, 0).UTC()
}

// DeploymentEvent is a decoded WebsiteDeployed log.
type DeploymentEvent struct {
	ID          uint64         `json:"id"`
	Owner       common.Address `json:"owner"`
	ContentHash string         `json:"content_hash"`
	Timestamp   int64          `json:"timestamp"`
	TxHash      common.Hash    `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	LogIndex    uint           `json:"log_index"`
}

// PendingSubmission is the metadata waiting for ledger confirmation.
type PendingSubmission struct {
	ContentHash string `validate:"required"`
	ProjectName string `validate:"required,max=256"`
	Description string `validate:"max=4096"`
}

// UploadResult describes a finished publish call.
type UploadResult struct {
	ContentHash string `json:"content_hash"`
	BytesTotal  int64  `json:"bytes_total"`
	Files       int    `json:"files"`
	Attempts    int    `json:"attempts"`
}

// UploadProgress is reported while a file set is being uploaded.
type UploadProgress struct {
	Attempt     int    `json:"attempt"`
	Transferred int64  `json:"transferred"`
	Total       int64  `json:"total"`
	File        string `json:"file,omitempty"`
}

// Percent returns the rounded completion percentage.
func (p UploadProgress) Percent() int {
	if p.Total <= 0 {
		return 100
	}
	return int((p.Transferred*100 + p.Total/2) / p.Total)
}

// DeploymentStats summarises deployments for the dashboard.
type DeploymentStats struct {
	Total         uint64         `json:"total"`
	Owner         common.Address `json:"owner"`
	OwnerCount    uint64         `json:"owner_count"`
	LatestVersion uint64         `json:"latest_version"`
	// Degraded is set when a count could not be read and was reported as zero.
	Degraded bool `json:"degraded"`
}
