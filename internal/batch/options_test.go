package batch_test

import (
	"errors"
	"testing"
	"time"

	"github.com/JaimeStill/einvoice/internal/batch"
)

func TestOptionsValidate(t *testing.T) {
	if err := batch.DefaultOptions().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	tests := []struct {
		name string
		mut  func(*batch.Options)
	}{
		{"zero parallelism", func(o *batch.Options) { o.MaxDegreeOfParallelism = 0 }},
		{"zero attempts", func(o *batch.Options) { o.MaxRetryAttempts = 0 }},
		{"negative delay", func(o *batch.Options) { o.RetryDelayBase = -time.Second }},
		{"delay over backoff cap", func(o *batch.Options) { o.RetryDelayBase = 200 * 365 * 24 * time.Hour }},
		{"zero chunk", func(o *batch.Options) { o.SubmissionChunkSize = 0 }},
		{"chunk over envelope limit", func(o *batch.Options) { o.SubmissionChunkSize = batch.MaxSubmissionChunkSize + 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := batch.DefaultOptions()
			tt.mut(&opts)
			if err := opts.Validate(); !errors.Is(err, batch.ErrInvalidOptions) {
				t.Errorf("err = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestOptionsBackoff(t *testing.T) {
	opts := batch.Options{RetryDelayBase: 100 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 100 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{4, 400 * time.Millisecond},
		{5, 800 * time.Millisecond},
		{200, time.Hour},
	}

	for _, tt := range tests {
		if got := opts.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	huge := batch.Options{RetryDelayBase: 200 * 365 * 24 * time.Hour}
	for _, attempt := range []int{3, 4, 64} {
		if got := huge.Backoff(attempt); got != time.Hour {
			t.Errorf("huge Backoff(%d) = %v, want 1h", attempt, got)
		}
	}
}

func TestOverridesApply(t *testing.T) {
	parallel := 8
	delay := "250ms"
	stop := false

	opts, err := batch.Overrides{
		MaxDegreeOfParallelism: &parallel,
		RetryDelayBase:         &delay,
		ContinueOnError:        &stop,
	}.Apply(batch.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if opts.MaxDegreeOfParallelism != 8 || opts.RetryDelayBase != 250*time.Millisecond || opts.ContinueOnError {
		t.Errorf("options = %+v", opts)
	}
	if opts.MaxRetryAttempts != batch.DefaultOptions().MaxRetryAttempts {
		t.Errorf("unset override changed max_retry_attempts to %d", opts.MaxRetryAttempts)
	}

	bad := "soon"
	if _, err := (batch.Overrides{RetryDelayBase: &bad}).Apply(batch.DefaultOptions()); !errors.Is(err, batch.ErrInvalidOptions) {
		t.Errorf("err = %v, want ErrInvalidOptions", err)
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults match default options", func(t *testing.T) {
		var cfg batch.Config
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Options() != batch.DefaultOptions() {
			t.Errorf("options = %+v, want %+v", cfg.Options(), batch.DefaultOptions())
		}
		if cfg.NotifyTimeoutDuration() != 15*time.Second {
			t.Errorf("notify timeout = %v", cfg.NotifyTimeoutDuration())
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("TEST_BATCH_PARALLELISM", "16")
		t.Setenv("TEST_BATCH_CONTINUE", "false")
		t.Setenv("TEST_BATCH_DELAY", "5s")

		var cfg batch.Config
		err := cfg.Finalize(&batch.Env{
			MaxDegreeOfParallelism: "TEST_BATCH_PARALLELISM",
			ContinueOnError:        "TEST_BATCH_CONTINUE",
			RetryDelayBase:         "TEST_BATCH_DELAY",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		opts := cfg.Options()
		if opts.MaxDegreeOfParallelism != 16 || opts.ContinueOnError || opts.RetryDelayBase != 5*time.Second {
			t.Errorf("options = %+v", opts)
		}
	})

	t.Run("merge keeps explicit false", func(t *testing.T) {
		off := false
		base := batch.Config{}
		base.Merge(&batch.Config{RetryRejected: &off, MaxRetryAttempts: 5})
		if err := base.Finalize(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if base.Options().RetryRejected {
			t.Error("retry_rejected overlay lost")
		}
		if base.Options().MaxRetryAttempts != 5 {
			t.Errorf("max_retry_attempts = %d, want 5", base.Options().MaxRetryAttempts)
		}
	})

	t.Run("rejects invalid chunk size", func(t *testing.T) {
		cfg := batch.Config{SubmissionChunkSize: 500}
		if err := cfg.Finalize(nil); !errors.Is(err, batch.ErrInvalidOptions) {
			t.Errorf("err = %v, want ErrInvalidOptions", err)
		}
	})
}
