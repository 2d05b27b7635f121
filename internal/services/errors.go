package services

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// SubmissionFailure classifies why a ledger write did not confirm.
type SubmissionFailure string

const (
	// FailureSignerRejected means the signer refused to authorize; nothing was sent.
	FailureSignerRejected SubmissionFailure = "signer_rejected"
	// FailureRejected means the node refused the transaction; nothing was included.
	FailureRejected SubmissionFailure = "rejected"
	// FailureReverted means the transaction was included but its execution reverted.
	FailureReverted SubmissionFailure = "reverted"
	// FailureConfirmationTimeout means the transaction was sent but inclusion was not observed in time.
	FailureConfirmationTimeout SubmissionFailure = "confirmation_timeout"
	// FailureSendUnknown means the signed transaction was handed to the transport
	// but no answer from the node came back. It may have been accepted.
	FailureSendUnknown SubmissionFailure = "send_unknown"
)

// ValidationError reports malformed input, caught before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ContentStoreError reports an upload that failed on every attempt.
type ContentStoreError struct {
	Attempts int
	Err      error
}

func (e *ContentStoreError) Error() string {
	return fmt.Sprintf("content store upload failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ContentStoreError) Unwrap() error { return e.Err }

// LedgerSubmissionError reports a ledger write that did not confirm.
type LedgerSubmissionError struct {
	Reason SubmissionFailure
	// Sent is true once the transaction left the client. A sent transaction may
	// still be included later.
	Sent   bool
	TxHash common.Hash
	Err    error
}

func (e *LedgerSubmissionError) Error() string {
	if e.Sent {
		return fmt.Sprintf("ledger submission %s (tx %s): %v", e.Reason, e.TxHash.Hex(), e.Err)
	}
	return fmt.Sprintf("ledger submission %s: %v", e.Reason, e.Err)
}

func (e *LedgerSubmissionError) Unwrap() error { return e.Err }

// OutcomeUnknown reports whether the transaction may still be included.
func (e *LedgerSubmissionError) OutcomeUnknown() bool {
	return e.Reason == FailureConfirmationTimeout || e.Reason == FailureSendUnknown
}

// LedgerProtocolError reports a confirmed transaction whose result could not be decoded.
type LedgerProtocolError struct {
	TxHash      common.Hash
	BlockNumber uint64
	Err         error
}

func (e *LedgerProtocolError) Error() string {
	return fmt.Sprintf("transaction %s confirmed in block %d without a decodable deployment event: %v", e.TxHash.Hex(), e.BlockNumber, e.Err)
}

func (e *LedgerProtocolError) Unwrap() error { return e.Err }

// LedgerReadError reports a transport failure on a ledger query.
type LedgerReadError struct {
	Op  string
	Err error
}

func (e *LedgerReadError) Error() string {
	return fmt.Sprintf("ledger read %s failed: %v", e.Op, e.Err)
}

func (e *LedgerReadError) Unwrap() error { return e.Err }

// NotFoundError reports a deployment id that does not exist on the ledger.
type NotFoundError struct {
	ID uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("deployment %d not found", e.ID)
}

// LaunchStage names the pipeline step a LaunchError happened in.
type LaunchStage string

const (
	StageValidate LaunchStage = "validate"
	StagePublish  LaunchStage = "publish"
	StageJournal  LaunchStage = "journal"
	StageRecord   LaunchStage = "record"
)

// LaunchError is returned by every failed pipeline run.
type LaunchError struct {
	Stage LaunchStage
	// ContentHash is set once the files were published.
	ContentHash  string
	SubmissionID string
	Err          error
}

func (e *LaunchError) Error() string {
	if e.ContentHash != "" {
		return fmt.Sprintf("launch failed at %s (content %s): %v", e.Stage, e.ContentHash, e.Err)
	}
	return fmt.Sprintf("launch failed at %s: %v", e.Stage, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ContentPublished reports whether the files reached the content store.
func (e *LaunchError) ContentPublished() bool {
	return e.ContentHash != ""
}

// LedgerStateUnknown reports whether a deployment may exist on the ledger even
// though the run failed. Callers should look for a deployment with ContentHash
// before running the pipeline again.
func (e *LaunchError) LedgerStateUnknown() bool {
	var protocolErr *LedgerProtocolError
	if errors.As(e.Err, &protocolErr) {
		return true
	}
	var submissionErr *LedgerSubmissionError
	if errors.As(e.Err, &submissionErr) {
		return submissionErr.OutcomeUnknown()
	}
	return false
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
