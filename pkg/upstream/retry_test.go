package upstream

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Timeout-kind failures use the shortest backoff, keeping these tests fast.
func timeoutErr() error {
	return &Error{Kind: KindTimeout, Message: "deadline exceeded"}
}

func TestRetryWithBackoff_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), func() error {
		calls++
		if calls == 1 {
			return timeoutErr()
		}
		return nil
	})

	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryWithBackoff_NoRetryForClientErrors(t *testing.T) {
	cause := &Error{StatusCode: 422, Kind: KindClient, Message: "unprocessable"}
	calls := 0
	err := retryWithBackoff(context.Background(), func() error {
		calls++
		return cause
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (client errors must not be retried)", calls)
	}
	if !errors.Is(err, error(cause)) {
		t.Errorf("error = %v, want the original client error", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("a non-retried error must not be reported as exhaustion")
	}
}

func TestRetryWithBackoff_Exhaustion(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), func() error {
		calls++
		return timeoutErr()
	})

	// Timeout failures allow 2 attempts.
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}

	// Classification must survive the wrapping so the breaker still
	// counts the failure.
	var ue *Error
	if !errors.As(err, &ue) || ue.Kind != KindTimeout {
		t.Errorf("wrapped error lost its classification: %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := retryWithBackoff(ctx, func() error {
		calls++
		return timeoutErr()
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"classified", &Error{Kind: KindServer}, KindServer},
		{"bare deadline", context.DeadlineExceeded, KindTimeout},
		{"unknown", errors.New("boom"), KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kindOf(tt.err); got != tt.want {
				t.Errorf("kindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRetryConfigForKind(t *testing.T) {
	if got := retryConfigForKind(KindTimeout).MaxAttempts; got != 2 {
		t.Errorf("timeout MaxAttempts = %d, want 2", got)
	}
	if got := retryConfigForKind(KindServer).InitialBackoff; got != time.Second {
		t.Errorf("server InitialBackoff = %s, want 1s", got)
	}
	if got := retryConfigForKind(KindMalformed); got != DefaultRetryConfig() {
		t.Errorf("unclassified kinds should use the default config, got %+v", got)
	}
}
