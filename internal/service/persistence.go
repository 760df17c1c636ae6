package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sekurigo/privacy-api/internal/repository"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
)

// RetryPolicy bounds the exponential backoff applied to storage calls.
// Domain outcomes (missing rows, stale versions, typed errors) are never
// retried; only transport-level persistence failures are.
type RetryPolicy struct {
	maxRetries int
	interval   time.Duration
}

func NewRetryPolicy(maxRetries int, interval time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return RetryPolicy{maxRetries: maxRetries, interval: interval}
}

// run executes op, retrying transient failures up to maxRetries times.
func (p RetryPolicy) run(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.maxRetries)), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func isPermanent(err error) bool {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, repository.ErrVersionConflict) {
		return true
	}
	var appErr *appErrors.Error
	return errors.As(err, &appErr)
}
