package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/sethvargo/go-retry"
)

// UploadRetryPolicy is the retry schedule for content uploads.
type UploadRetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// DefaultUploadRetryPolicy retries twice, waiting 1s then 2s.
var DefaultUploadRetryPolicy = UploadRetryPolicy{
	MaxAttempts: 3,
	Base:        time.Second,
	Cap:         5 * time.Second,
}

// BackoffDelay returns the wait before attempt k+1, i.e. after the k-th failure:
// min(Base*2^(k-1), Cap).
func (p UploadRetryPolicy) BackoffDelay(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	delay := p.Base
	for i := 1; i < k; i++ {
		delay *= 2
		if delay >= p.Cap || delay <= 0 {
			return p.Cap
		}
	}
	return min(delay, p.Cap)
}

// Backoff returns a go-retry backoff that follows the policy and stops after MaxAttempts.
func (p UploadRetryPolicy) Backoff() retry.Backoff {
	failures := 0
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		failures++
		return p.BackoffDelay(failures), false
	})
	return retry.WithMaxRetries(uint64(max(p.MaxAttempts-1, 0)), next)
}

// SubmissionRetryPolicy is the retry policy for ledger writes: a single attempt.
// Resubmitting is left to the caller because a second write creates a second deployment.
const SubmissionRetryPolicy = 1

// UploadProgressFunc receives progress for one publish call. Transferred never
// decreases within a call, even when an attempt restarts the upload.
type UploadProgressFunc func(progress models.UploadProgress)

type ContentService interface {
	// Publish uploads files as one directory and returns its content address.
	Publish(ctx context.Context, files []ipfs.File, onProgress UploadProgressFunc) (models.UploadResult, error)
	// Read returns the bytes at hash or hash/path.
	Read(ctx context.Context, hash string) ([]byte, error)
	// Pin asks the store to keep hash. Failures are logged and returned but should not abort a deployment.
	Pin(ctx context.Context, hash string) error
	// NodeInfo describes the store node, when the store supports it.
	NodeInfo(ctx context.Context) (*ipfs.NodeInfo, error)
	Policy() UploadRetryPolicy
}

type contentService struct {
	store   ipfs.Store
	policy  UploadRetryPolicy
	metrics *Metrics
}

func NewContentService(store ipfs.Store, policy UploadRetryPolicy, metrics *Metrics) ContentService {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = DefaultUploadRetryPolicy.MaxAttempts
	}
	if policy.Base <= 0 {
		policy.Base = DefaultUploadRetryPolicy.Base
	}
	if policy.Cap < policy.Base {
		policy.Cap = max(policy.Base, DefaultUploadRetryPolicy.Cap)
	}
	return &contentService{store: store, policy: policy, metrics: metrics}
}

func (s *contentService) Policy() UploadRetryPolicy {
	return s.policy
}

// ValidateFileSet checks the invariants of a publish call: at least one file and unique, non-empty names.
func ValidateFileSet(files []ipfs.File) error {
	if len(files) == 0 {
		return &ValidationError{Field: "files", Reason: "at least one file is required"}
	}
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f.Name == "" {
			return &ValidationError{Field: "files", Reason: "file name is empty"}
		}
		if _, dup := seen[f.Name]; dup {
			return &ValidationError{Field: "files", Reason: fmt.Sprintf("duplicate file name %q", f.Name)}
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Publish uploads all files as one directory, retrying failed attempts with the
// configured backoff. Every attempt re-uploads the whole set.
func (s *contentService) Publish(ctx context.Context, files []ipfs.File, onProgress UploadProgressFunc) (models.UploadResult, error) {
	if err := ValidateFileSet(files); err != nil {
		return models.UploadResult{}, err
	}

	start := time.Now()
	total := ipfs.TotalSize(files)
	reporter := &progressReporter{total: total, onProgress: onProgress}

	var (
		attempts int
		hash     string
		lastErr  error
	)

	err := retry.Do(ctx, s.policy.Backoff(), func(ctx context.Context) error {
		attempts++
		reporter.attempt = attempts

		// An attempt in flight runs to completion; cancellation is only observed between attempts.
		h, err := s.store.AddDirectory(context.WithoutCancel(ctx), files, reporter.report)
		s.metrics.observeUploadAttempt(err)
		if err != nil {
			lastErr = err
			log.Printf("Upload attempt %d/%d failed: %v", attempts, s.policy.MaxAttempts, err)
			return retry.RetryableError(err)
		}
		hash = h
		return nil
	})
	if err != nil {
		cause := lastErr
		switch {
		case cause == nil:
			cause = err
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			cause = fmt.Errorf("%w (last upload error: %v)", err, lastErr)
		}
		s.metrics.observePublish(start, total, err)
		return models.UploadResult{}, &ContentStoreError{Attempts: attempts, Err: cause}
	}

	reporter.finish()
	s.metrics.observePublish(start, total, nil)

	return models.UploadResult{
		ContentHash: hash,
		BytesTotal:  total,
		Files:       len(files),
		Attempts:    attempts,
	}, nil
}

func (s *contentService) Read(ctx context.Context, hash string) ([]byte, error) {
	if hash == "" {
		return nil, &ValidationError{Field: "content_hash", Reason: "is required"}
	}
	data, err := s.store.ReadAll(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", hash, err)
	}
	return data, nil
}

func (s *contentService) Pin(ctx context.Context, hash string) error {
	if err := s.store.Pin(ctx, hash); err != nil {
		log.Printf("Failed to pin %s: %v", hash, err)
		return fmt.Errorf("failed to pin %s: %w", hash, err)
	}
	return nil
}

func (s *contentService) NodeInfo(ctx context.Context) (*ipfs.NodeInfo, error) {
	provider, ok := s.store.(ipfs.NodeInfoProvider)
	if !ok {
		return nil, errors.New("content store does not expose node info")
	}
	info, err := provider.NodeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get node info: %w", err)
	}
	return info, nil
}

// progressReporter clamps store progress so it never moves backwards across attempts.
type progressReporter struct {
	total      int64
	reported   int64
	attempt    int
	done       bool
	onProgress UploadProgressFunc
}

func (r *progressReporter) report(transferred, _ int64) {
	if r.onProgress == nil {
		return
	}
	transferred = min(transferred, r.total)
	if transferred > r.reported {
		r.reported = transferred
	}
	r.done = r.reported == r.total
	r.onProgress(models.UploadProgress{Attempt: r.attempt, Transferred: r.reported, Total: r.total})
}

func (r *progressReporter) finish() {
	if r.onProgress == nil || (r.done && r.reported == r.total) {
		return
	}
	r.reported = r.total
	r.done = true
	r.onProgress(models.UploadProgress{Attempt: r.attempt, Transferred: r.total, Total: r.total})
}
