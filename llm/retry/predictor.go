package retry

import (
	"context"

	"go.uber.org/zap"

	"github.com/elokus/StructGenie/llm"
)

// Predictor retries transient transport failures of the wrapped predictor
// with exponential backoff. Only errors marked with WrapRetryable are
// retried unless the policy says otherwise; this is independent of the
// engine's retries on invalid outputs.
type Predictor struct {
	next    llm.Predictor
	retryer Retryer
}

// NewPredictor wraps next. A nil policy uses DefaultPolicy.
func NewPredictor(next llm.Predictor, policy *Policy, logger *zap.Logger) *Predictor {
	if policy == nil {
		policy = DefaultPolicy()
	}
	p := *policy
	if len(p.RetryableErrors) == 0 && p.Retryable == nil {
		p.Retryable = IsRetryableError
	}
	return &Predictor{next: next, retryer: NewBackoffRetryer(&p, logger)}
}

type prediction struct {
	text    string
	metrics llm.Metrics
}

// Predict implements llm.Predictor.
func (p *Predictor) Predict(ctx context.Context, req *llm.Request) (string, llm.Metrics, error) {
	res, err := DoTyped(ctx, p.retryer, func() (prediction, error) {
		text, m, err := p.next.Predict(ctx, req)
		return prediction{text: text, metrics: m}, err
	})
	if err != nil {
		return "", llm.Metrics{}, err
	}
	return res.text, res.metrics, nil
}
