package agent

import (
	"context"
	"time"

	"floatchat/config"
	apperrors "floatchat/errors"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// RetryPolicy is applied to every call to an external collaborator.
type RetryPolicy struct {
	MaxAttempts uint
	Delay       time.Duration
}

// NewRetryPolicy builds the policy from MAX_RETRIES and RETRY_DELAY_SECONDS.
func NewRetryPolicy(cfg *config.Config) RetryPolicy {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	return RetryPolicy{MaxAttempts: uint(attempts), Delay: cfg.RetryDelaySeconds}
}

// CallWithRetry runs op until it succeeds, fails permanently, or the policy's
// attempts are used up. Exhaustion is reported as ErrServiceUnavailable;
// permanent failures are returned unchanged and never retried.
func CallWithRetry[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, name string, op func(context.Context) (T, error)) (T, error) {
	var result T
	var zero T

	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	made := 0
	err := retry.Do(
		func() error {
			made++
			v, err := op(ctx)
			if err != nil {
				return err
			}
			result = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(policy.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !apperrors.IsPermanent(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Collaborator call failed, retrying",
				zap.String("stage", name),
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", attempts),
				zap.Error(err))
		}),
	)
	if err == nil {
		return result, nil
	}
	if apperrors.IsPermanent(err) {
		return zero, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, apperrors.Permanent(ctxErr)
	}

	logger.Error("Collaborator unavailable after retries",
		zap.String("stage", name),
		zap.Int("attempts", made),
		zap.Error(err))
	return zero, apperrors.WrapErrorf(apperrors.ErrServiceUnavailable, "%s failed after %d attempts (%v)", name, made, err)
}
