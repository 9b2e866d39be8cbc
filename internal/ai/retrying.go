package ai

import (
	"context"

	"github.com/suPer8Hu/recipe-snap/internal/retry"
)

type retryingProvider struct {
	next   Provider
	policy retry.Policy
}

// WithRetry retries transient failures of p (network faults, 429 and 5xx
// gateway errors). Well formed rejections such as 400 or 401 are returned
// immediately. A nil Retryable in policy defaults to IsRetryable.
func WithRetry(p Provider, policy retry.Policy) Provider {
	if policy.Retryable == nil {
		policy.Retryable = IsRetryable
	}
	if policy.MaxAttempts <= 1 {
		return p
	}
	return &retryingProvider{next: p, policy: policy}
}

func (r *retryingProvider) Analyze(ctx context.Context, img Image, prompt string) (string, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.next.Analyze(ctx, img, prompt)
	})
}
