// Package poll is the one polling primitive shared by every generation
// backend: a tight initial interval that relaxes toward a steady interval,
// bounded by an absolute timeout, with cancellation via context.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Schedule parameterizes one polling loop.
type Schedule struct {
	// BurstInterval is the delay between the first polls, when most
	// tasks finish.
	BurstInterval time.Duration
	// SteadyInterval caps the delay once the burst phase has relaxed.
	SteadyInterval time.Duration
	// Timeout bounds the whole loop. Exhausting it yields ErrTimeout,
	// distinct from a service-reported failure.
	Timeout time.Duration
}

// ErrTimeout is returned when a task neither succeeds nor fails within
// the schedule's timeout.
var ErrTimeout = errors.New("polling timed out")

// ServiceError is a definitive failure reported by the remote service.
// It aborts polling immediately.
type ServiceError struct {
	Reason string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service reported failure: %s", e.Reason)
}

// Status is one poll observation of a submitted task.
type Status int

const (
	// Pending covers both "still working" and ambiguous responses;
	// polling continues.
	Pending Status = iota
	Succeeded
	Failed
)

// Result is what a backend's poll call reports for a task.
type Result struct {
	Status Status
	// ArtifactURL is set when Status is Succeeded.
	ArtifactURL string
	// Reason is set when Status is Failed.
	Reason string
}

var errPending = errors.New("task still pending")

// Until polls check until the task succeeds, the service reports a
// definitive failure, the schedule's timeout elapses, or ctx is cancelled.
// Transport errors and other ambiguous responses from check are logged and
// treated like pending. On success the artifact URL is returned.
func Until(ctx context.Context, logger *slog.Logger, schedule Schedule, check func(ctx context.Context) (Result, error)) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = schedule.BurstInterval
	bo.MaxInterval = schedule.SteadyInterval
	bo.MaxElapsedTime = schedule.Timeout
	bo.RandomizationFactor = 0.1

	var artifactURL string
	operation := func() error {
		result, err := check(ctx)
		if err != nil {
			// Ambiguous response; keep polling until the timeout.
			logger.Warn("Poll attempt inconclusive, retrying",
				slog.String("error", err.Error()))
			return fmt.Errorf("%w: %v", errPending, err)
		}
		switch result.Status {
		case Succeeded:
			artifactURL = result.ArtifactURL
			return nil
		case Failed:
			return backoff.Permanent(&ServiceError{Reason: result.Reason})
		default:
			return errPending
		}
	}

	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return "", svcErr
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, errPending) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, schedule.Timeout)
		}
		return "", err
	}
	return artifactURL, nil
}
