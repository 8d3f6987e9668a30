package batch

import (
	"fmt"
	"time"
)

// MaxSubmissionChunkSize is the largest number of documents the regulator
// accepts in one submission envelope.
const MaxSubmissionChunkSize = 100

const maxBackoff = time.Hour

// Options control how a batch is executed.
type Options struct {
	// MaxDegreeOfParallelism bounds concurrently running document tasks.
	MaxDegreeOfParallelism int `json:"max_degree_of_parallelism"`
	// MaxRetryAttempts is the total number of attempts per document.
	MaxRetryAttempts int `json:"max_retry_attempts"`
	// RetryDelayBase is the wait before the first retry; each later retry doubles it.
	RetryDelayBase time.Duration `json:"retry_delay_base"`
	// ContinueOnError keeps launching documents after a document fails.
	ContinueOnError bool `json:"continue_on_error"`
	// SubmissionChunkSize caps documents per regulator envelope.
	SubmissionChunkSize int `json:"submission_chunk_size"`
	// RetryRejected retries documents the regulator rejected.
	RetryRejected bool `json:"retry_rejected"`
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxDegreeOfParallelism: 4,
		MaxRetryAttempts:       3,
		RetryDelayBase:         2 * time.Second,
		ContinueOnError:        true,
		SubmissionChunkSize:    50,
		RetryRejected:          true,
	}
}

// Validate reports the first option outside its allowed range, wrapping ErrInvalidOptions.
func (o Options) Validate() error {
	switch {
	case o.MaxDegreeOfParallelism < 1:
		return fmt.Errorf("%w: max_degree_of_parallelism must be at least 1", ErrInvalidOptions)
	case o.MaxRetryAttempts < 1:
		return fmt.Errorf("%w: max_retry_attempts must be at least 1", ErrInvalidOptions)
	case o.RetryDelayBase < 0:
		return fmt.Errorf("%w: retry_delay_base must not be negative", ErrInvalidOptions)
	case o.RetryDelayBase > maxBackoff:
		return fmt.Errorf("%w: retry_delay_base must be at most %v", ErrInvalidOptions, maxBackoff)
	case o.SubmissionChunkSize < 1 || o.SubmissionChunkSize > MaxSubmissionChunkSize:
		return fmt.Errorf("%w: submission_chunk_size must be between 1 and %d", ErrInvalidOptions, MaxSubmissionChunkSize)
	}
	return nil
}

// Backoff returns the wait before the given attempt. The first retry
// (attempt 2) waits RetryDelayBase and each later attempt doubles the wait,
// capped at one hour.
func (o Options) Backoff(attempt int) time.Duration {
	if attempt < 2 || o.RetryDelayBase <= 0 {
		return 0
	}
	d := o.RetryDelayBase
	for i := 2; i < attempt; i++ {
		if d >= maxBackoff/2 {
			return maxBackoff
		}
		d *= 2
	}
	return min(d, maxBackoff)
}

// Overrides carries caller-supplied option values. Nil fields keep the base value.
type Overrides struct {
	MaxDegreeOfParallelism *int    `json:"max_degree_of_parallelism,omitempty"`
	MaxRetryAttempts       *int    `json:"max_retry_attempts,omitempty"`
	RetryDelayBase         *string `json:"retry_delay_base,omitempty"`
	ContinueOnError        *bool   `json:"continue_on_error,omitempty"`
	SubmissionChunkSize    *int    `json:"submission_chunk_size,omitempty"`
	RetryRejected          *bool   `json:"retry_rejected,omitempty"`
}

// Apply returns base with the overrides applied.
func (v Overrides) Apply(base Options) (Options, error) {
	if v.MaxDegreeOfParallelism != nil {
		base.MaxDegreeOfParallelism = *v.MaxDegreeOfParallelism
	}
	if v.MaxRetryAttempts != nil {
		base.MaxRetryAttempts = *v.MaxRetryAttempts
	}
	if v.RetryDelayBase != nil {
		d, err := time.ParseDuration(*v.RetryDelayBase)
		if err != nil {
			return base, fmt.Errorf("%w: retry_delay_base: %w", ErrInvalidOptions, err)
		}
		base.RetryDelayBase = d
	}
	if v.ContinueOnError != nil {
		base.ContinueOnError = *v.ContinueOnError
	}
	if v.SubmissionChunkSize != nil {
		base.SubmissionChunkSize = *v.SubmissionChunkSize
	}
	if v.RetryRejected != nil {
		base.RetryRejected = *v.RetryRejected
	}
	return base, nil
}
