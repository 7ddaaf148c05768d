package graphql

import (
	"context"
	"errors"
	"time"

	"github.com/tournevent/ratebridge/internal/telemetry"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Resolver is the root resolver for the GraphQL schema.
// It holds dependencies needed by all resolvers.
type Resolver struct {
	Registry *shipper.Registry
	Logger   *otelzap.Logger
	Metrics  *telemetry.Metrics
}

// NewResolver creates a new resolver with the given dependencies.
func NewResolver(registry *shipper.Registry, logger *otelzap.Logger, metrics *telemetry.Metrics) *Resolver {
	return &Resolver{
		Registry: registry,
		Logger:   logger,
		Metrics:  metrics,
	}
}

// Query returns the query resolver.
func (r *Resolver) Query() *QueryResolver {
	return &QueryResolver{r}
}

// QueryResolver resolves the top-level query fields.
type QueryResolver struct{ *Resolver }

// Health reports service liveness and how many carriers are registered.
func (q *QueryResolver) Health(ctx context.Context) (*Health, error) {
	return &Health{
		Status:    "ok",
		Carriers:  q.Registry.Count(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Carriers lists the registered carriers by name.
func (q *QueryResolver) Carriers(ctx context.Context) ([]*Carrier, error) {
	names := q.Registry.Names()
	carriers := make([]*Carrier, len(names))
	for i, name := range names {
		carriers[i] = &Carrier{Name: name}
	}
	return carriers, nil
}

// Rate shops the requested carriers, or all of them when none are named.
// Invalid input fails the whole query; carrier failures are reported in the
// payload next to the carriers that succeeded.
func (q *QueryResolver) Rate(ctx context.Context, input RateInput) (*RatePayload, error) {
	req, err := rateInputToModel(&input)
	if err != nil {
		return nil, err
	}
	if err := shipper.ValidateRateRequest(req); err != nil {
		return nil, err
	}

	results, errs := q.RateAll(ctx, req, input.Carriers)
	return NewRatePayload(results, errs), nil
}

// RateCarrier rates a validated request with one carrier, recording metrics.
func (r *Resolver) RateCarrier(ctx context.Context, carrier string, req *shipper.RateRequest) (*shipper.RateResult, error) {
	s, err := r.Registry.Get(carrier)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.Rate(ctx, req)
	r.record(ctx, carrier, time.Since(start), result, err)
	return result, err
}

// RateAll rates a validated request with several carriers in parallel,
// recording metrics with each carrier's own duration.
func (r *Resolver) RateAll(ctx context.Context, req *shipper.RateRequest, carriers []string) ([]*shipper.RateResult, []error) {
	return r.Registry.RateAllObserved(ctx, req, carriers,
		func(ctx context.Context, carrier string, elapsed time.Duration, result *shipper.RateResult, err error) {
			if errors.Is(err, shipper.ErrCarrierNotFound) {
				carrier = "unknown"
			}
			r.record(ctx, carrier, elapsed, result, err)
		})
}

func (r *Resolver) record(ctx context.Context, carrier string, elapsed time.Duration, result *shipper.RateResult, err error) {
	if err != nil {
		kind := string(shipper.KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
		if r.Metrics != nil {
			r.Metrics.RecordRequest("rate", carrier, "error", elapsed.Seconds())
			r.Metrics.RecordError(carrier, kind)
		}
		r.Logger.Ctx(ctx).Warn("Rate request failed",
			zap.String("carrier", carrier),
			zap.String("error_kind", kind),
			zap.Bool("retryable", shipper.IsRetryable(err)),
			zap.Error(err),
		)
		return
	}

	if r.Metrics != nil {
		r.Metrics.RecordRequest("rate", carrier, "success", elapsed.Seconds())
		r.Metrics.RecordQuotes(carrier, len(result.Quotes))
	}
	r.Logger.Ctx(ctx).Info("Rate request completed",
		zap.String("carrier", carrier),
		zap.String("request_id", result.RequestID),
		zap.Int("quote_count", len(result.Quotes)),
		zap.Duration("duration", elapsed),
	)
}
