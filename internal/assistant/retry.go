package assistant

import (
	"context"

	"go.uber.org/zap"
)

// Reauthorizer re-establishes credentials before a retry.
type Reauthorizer func(ctx context.Context) error

// Retrying retries a request exactly once when the provider rejects it for
// permission or not-found reasons, after calling the optional reauthorizer.
type Retrying struct {
	next        Provider
	reauthorize Reauthorizer
	logger      *zap.Logger
}

func NewRetrying(next Provider, reauthorize Reauthorizer, logger *zap.Logger) *Retrying {
	return &Retrying{
		next:        next,
		reauthorize: reauthorize,
		logger:      logger,
	}
}

func (r *Retrying) Generate(ctx context.Context, req Request) (Response, error) {
	resp, err := r.next.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}

	kind := Classify(err)
	if kind != KindPermission && kind != KindNotFound {
		return resp, err
	}

	r.logger.Warn("Provider rejected request, retrying once",
		zap.String("kind", string(kind)),
		zap.Error(err))

	if r.reauthorize != nil {
		if rerr := r.reauthorize(ctx); rerr != nil {
			r.logger.Error("Failed to reauthorize", zap.Error(rerr))
			return resp, err
		}
	}
	return r.next.Generate(ctx, req)
}
