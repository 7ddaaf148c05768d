package graphql_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/ratebridge/internal/graphql"
	"github.com/tournevent/ratebridge/internal/telemetry"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestResolver(shippers ...shipper.Shipper) (*graphql.Resolver, *telemetry.Metrics) {
	registry := shipper.NewRegistry()
	if len(shippers) == 0 {
		shippers = []shipper.Shipper{mock.New("ups"), mock.New("fedex")}
	}
	for _, s := range shippers {
		registry.Register(s)
	}

	logger := otelzap.New(zap.NewNop())
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	return graphql.NewResolver(registry, logger, metrics), metrics
}

func validInput() graphql.RateInput {
	return graphql.RateInput{
		Origin: &graphql.AddressInput{
			Name:        "Sender",
			Line1:       "123 Main St",
			City:        "Atlanta",
			StateCode:   "GA",
			PostalCode:  "30301",
			CountryCode: "US",
		},
		Destination: &graphql.AddressInput{
			Name:        "Receiver",
			Line1:       "456 Oak Ave",
			City:        "Seattle",
			StateCode:   "WA",
			PostalCode:  "98101",
			CountryCode: "US",
		},
		Packages: []*graphql.PackageInput{
			{Weight: json.Number("5"), Length: json.Number("10"), Width: json.Number("10"), Height: json.Number("10")},
		},
	}
}

func TestQuery_Health(t *testing.T) {
	resolver, _ := newTestResolver()

	health, err := resolver.Query().Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Carriers)
	assert.NotEmpty(t, health.Timestamp)
}

func TestQuery_Carriers(t *testing.T) {
	resolver, _ := newTestResolver()

	carriers, err := resolver.Query().Carriers(context.Background())

	require.NoError(t, err)
	require.Len(t, carriers, 2)
	assert.Equal(t, "fedex", carriers[0].Name)
	assert.Equal(t, "ups", carriers[1].Name)
}

func TestQuery_Rate_Success(t *testing.T) {
	resolver, metrics := newTestResolver()

	payload, err := resolver.Query().Rate(context.Background(), validInput())

	require.NoError(t, err)
	assert.Empty(t, payload.Errors)
	require.Len(t, payload.Results, 2)
	for _, res := range payload.Results {
		require.Len(t, res.Quotes, 2)
		assert.Equal(t, "15.82", res.Quotes[0].TotalPrice.Amount)
		assert.Equal(t, "USD", res.Quotes[0].TotalPrice.Currency)
		assert.Equal(t, "29.95", res.Quotes[1].TotalPrice.Amount)
		assert.NotNil(t, res.Quotes[1].EstimatedDeliveryDate)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("rate", "ups", "success")))
}

func TestQuery_Rate_SelectedCarrier(t *testing.T) {
	resolver, _ := newTestResolver()
	input := validInput()
	input.Carriers = []string{"ups"}

	payload, err := resolver.Query().Rate(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "ups", payload.Results[0].Carrier)
}

func TestQuery_Rate_UnknownCarrier(t *testing.T) {
	resolver, _ := newTestResolver()
	input := validInput()
	input.Carriers = []string{"acme"}

	payload, err := resolver.Query().Rate(context.Background(), input)

	require.NoError(t, err)
	assert.Empty(t, payload.Results)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "CARRIER_NOT_FOUND", payload.Errors[0].Code)
}

func TestQuery_Rate_ValidationError(t *testing.T) {
	resolver, _ := newTestResolver()
	input := validInput()
	input.Destination.CountryCode = "usa"
	input.Packages[0].Weight = json.Number("200")

	_, err := resolver.Query().Rate(context.Background(), input)

	require.Error(t, err)
	e := graphql.ErrorToGraphQL(err)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Equal(t, "len=2", e.FieldErrors["destination.countryCode"])
	assert.Equal(t, "lte=150", e.FieldErrors["packages[0].weight"])
}

func TestQuery_Rate_UnparseableNumber(t *testing.T) {
	resolver, _ := newTestResolver()
	input := validInput()
	input.Packages[0].Length = json.Number("ten")

	_, err := resolver.Query().Rate(context.Background(), input)

	require.Error(t, err)
	assert.Equal(t, "number", graphql.ErrorToGraphQL(err).FieldErrors["packages[0].length"])
}

func TestQuery_Rate_CarrierFailureIsReported(t *testing.T) {
	retryAfter := 30
	failing := mock.New("ups")
	failing.OnRate = func(ctx context.Context, req *shipper.RateRequest) (*shipper.RateResult, error) {
		return nil, shipper.NewRateLimitError("ups", "too many requests", &retryAfter)
	}
	resolver, metrics := newTestResolver(failing, mock.New("fedex"))

	payload, err := resolver.Query().Rate(context.Background(), validInput())

	require.NoError(t, err)
	require.Len(t, payload.Results, 1)
	require.Len(t, payload.Errors, 1)
	e := payload.Errors[0]
	assert.Equal(t, "RATE_LIMIT", e.Code)
	assert.Equal(t, "rate_limit", e.Kind)
	assert.Equal(t, "ups", e.Carrier)
	assert.True(t, e.Retryable)
	require.NotNil(t, e.RetryAfterSeconds)
	assert.Equal(t, 30, *e.RetryAfterSeconds)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CarrierErrors.WithLabelValues("ups", "rate_limit")))
}

func TestResolver_RateCarrier(t *testing.T) {
	resolver, metrics := newTestResolver()
	req := &shipper.RateRequest{
		Origin:      shipper.Address{CountryCode: "US"},
		Destination: shipper.Address{CountryCode: "US"},
		Packages:    []shipper.Package{{Weight: 1}},
	}

	result, err := resolver.RateCarrier(context.Background(), "fedex", req)
	require.NoError(t, err)
	assert.Equal(t, "fedex", result.Carrier)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("rate", "fedex", "success")))

	_, err = resolver.RateCarrier(context.Background(), "acme", req)
	assert.ErrorIs(t, err, shipper.ErrCarrierNotFound)
}

func TestErrorToGraphQL_PlainError(t *testing.T) {
	e := graphql.ErrorToGraphQL(assert.AnError)

	assert.Equal(t, "INTERNAL_ERROR", e.Code)
	assert.False(t, e.Retryable)
}

func durationSum(t *testing.T, metrics *telemetry.Metrics, carrier string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.RequestDuration.WithLabelValues("rate", carrier).(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleSum()
}

func TestResolver_RateRecordsEachCarrierDuration(t *testing.T) {
	slow := mock.New("fedex")
	slow.OnRate = func(ctx context.Context, req *shipper.RateRequest) (*shipper.RateResult, error) {
		time.Sleep(200 * time.Millisecond)
		return &shipper.RateResult{Carrier: "fedex"}, nil
	}
	resolver, metrics := newTestResolver(mock.New("ups"), slow)

	payload, err := resolver.Query().Rate(context.Background(), validInput())

	require.NoError(t, err)
	require.Len(t, payload.Results, 2)
	assert.GreaterOrEqual(t, durationSum(t, metrics, "fedex"), 0.2)
	assert.Less(t, durationSum(t, metrics, "ups"), 0.1)
}
