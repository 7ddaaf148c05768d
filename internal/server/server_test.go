package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/ratebridge/internal/server"
	"github.com/tournevent/ratebridge/internal/telemetry"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const rateBody = `{
	"origin": {"postalCode": "30301", "countryCode": "US"},
	"destination": {"postalCode": "98101", "countryCode": "US"},
	"packages": [{"weight": 5, "weightUnit": "LB", "length": 10, "width": 10, "height": 10, "dimensionUnit": "IN"}]
}`

func newTestHandler(t *testing.T, shippers ...shipper.Shipper) http.Handler {
	t.Helper()

	if len(shippers) == 0 {
		shippers = []shipper.Shipper{mock.New("test-shipper")}
	}
	registry := shipper.NewRegistry()
	for _, s := range shippers {
		registry.Register(s)
	}

	reg := prometheus.NewRegistry()
	logger := otelzap.New(zap.NewNop())
	srv := server.New(server.Config{Port: 8080, Gatherer: reg}, registry, logger, telemetry.NewMetrics(reg))
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func failingShipper(name string, err error) *mock.Client {
	c := mock.New(name)
	c.OnRate = func(ctx context.Context, req *shipper.RateRequest) (*shipper.RateResult, error) {
		return nil, err
	}
	return c
}

func TestServer_Health(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 1.0, body["carriers"])
}

func TestServer_Metrics(t *testing.T) {
	h := newTestHandler(t)
	do(t, h, http.MethodPost, "/v1/rates?carrier=test-shipper", rateBody)

	rec := do(t, h, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ratebridge_requests_total{carrier="test-shipper",operation="rate",status="success"} 1`)
}

func TestServer_Rates_SingleCarrier(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/v1/rates?carrier=test-shipper", rateBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "test-shipper", body["carrier"])
	assert.NotEmpty(t, body["requestId"])
	quotes := body["quotes"].([]any)
	require.Len(t, quotes, 2)
	first := quotes[0].(map[string]any)
	assert.Equal(t, map[string]any{"amount": "15.82", "currency": "USD"}, first["totalPrice"])
}

func TestServer_Rates_AllCarriers(t *testing.T) {
	h := newTestHandler(t, mock.New("alpha"), failingShipper("beta", shipper.NewAuthenticationError("beta", "bad credentials")))

	rec := do(t, h, http.MethodPost, "/v1/rates", rateBody)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", results[0].(map[string]any)["carrier"])
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "AUTHENTICATION_ERROR", errs[0].(map[string]any)["code"])
	assert.Equal(t, "beta", errs[0].(map[string]any)["carrier"])
}

func TestServer_Rates_ValidationError(t *testing.T) {
	h := newTestHandler(t)

	body := strings.Replace(rateBody, `"weight": 5`, `"weight": 151`, 1)
	rec := do(t, h, http.MethodPost, "/v1/rates?carrier=test-shipper", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	assert.Equal(t, map[string]any{"packages[0].weight": "lte=150"}, errBody["fieldErrors"])
}

func TestServer_Rates_BadRequests(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/v1/rates", `{"origin":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decode(t, rec)["error"].(map[string]any)["code"])

	rec = do(t, h, http.MethodGet, "/v1/rates", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestServer_Rates_UnknownCarrier(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/v1/rates?carrier=acme", rateBody)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CARRIER_NOT_FOUND", decode(t, rec)["error"].(map[string]any)["code"])
}

func TestServer_Rates_RateLimited(t *testing.T) {
	retryAfter := 30
	h := newTestHandler(t, failingShipper("ups", shipper.NewRateLimitError("ups", "slow down", &retryAfter)))

	rec := do(t, h, http.MethodPost, "/v1/rates?carrier=ups", rateBody)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	errBody := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, true, errBody["retryable"])
	assert.Equal(t, 30.0, errBody["retryAfterSeconds"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", shipper.NewValidationError("", map[string]string{"packages": "min=1"}), http.StatusBadRequest},
		{"rate limit", shipper.NewRateLimitError("ups", "slow down", nil), http.StatusTooManyRequests},
		{"not implemented", shipper.NewNotImplementedError("ups", "track"), http.StatusNotImplemented},
		{"authentication", shipper.NewAuthenticationError("ups", "denied"), http.StatusBadGateway},
		{"carrier api", shipper.NewCarrierAPIError("ups", "boom", 500, ""), http.StatusBadGateway},
		{"network timeout", shipper.NewNetworkError("ups", "timed out", true), http.StatusGatewayTimeout},
		{"network", shipper.NewNetworkError("ups", "refused", false), http.StatusServiceUnavailable},
		{"carrier not found", shipper.ErrCarrierNotFound, http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, server.StatusFor(tt.err))
		})
	}
}

func TestServer_GraphQL(t *testing.T) {
	h := newTestHandler(t)

	payload := `{
		"query": "query Rate($input: RateInput!) { rate(input: $input) { results { carrier quotes { serviceCode } } } }",
		"variables": {"input": ` + rateBody + `}
	}`
	rec := do(t, h, http.MethodPost, "/graphql", payload)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.NotContains(t, body, "errors")
	rate := body["data"].(map[string]any)["rate"].(map[string]any)
	results := rate["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{
		"carrier": "test-shipper",
		"quotes":  []any{map[string]any{"serviceCode": "STANDARD"}, map[string]any{"serviceCode": "EXPRESS"}},
	}, results[0])
}

func TestServer_GraphQL_Errors(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name    string
		method  string
		body    string
		status  int
		message string
	}{
		{"method not allowed", http.MethodGet, "", http.StatusMethodNotAllowed, "use POST"},
		{"invalid json", http.MethodPost, `{"query":`, http.StatusBadRequest, "could not be decoded"},
		{"syntax error", http.MethodPost, `{"query":"{ health "}`, http.StatusUnprocessableEntity, ""},
		{"mutation", http.MethodPost, `{"query":"mutation { health { status } }"}`, http.StatusUnprocessableEntity, "mutation"},
		{"unknown nested field", http.MethodPost, `{"query":"{ health { status bogus } }"}`, http.StatusUnprocessableEntity, `Cannot query field "bogus"`},
		{"missing variable", http.MethodPost, `{"query":"query($input: RateInput!) { rate(input: $input) { errors { code } } }"}`, http.StatusUnprocessableEntity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, "/graphql", tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Nil(t, body["data"])
			errs, ok := body["errors"].([]any)
			require.True(t, ok)
			require.NotEmpty(t, errs)
			if tt.message != "" {
				assert.Contains(t, errs[0].(map[string]any)["message"], tt.message)
			}
		})
	}
}

func TestServer_GraphQL_FieldErrorKeepsOtherFields(t *testing.T) {
	h := newTestHandler(t)

	payload := `{
		"query": "query($input: RateInput!) { health { status } rate(input: $input) { results { carrier } } }",
		"variables": {"input": {"origin": {"countryCode": "US"}, "destination": {"countryCode": "US"}, "packages": []}}
	}`
	rec := do(t, h, http.MethodPost, "/graphql", payload)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, map[string]any{"status": "ok"}, data["health"])
	assert.Nil(t, data["rate"])
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	ext := errs[0].(map[string]any)["extensions"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", ext["code"])
}

func TestServer_Playground(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/playground", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "ratebridge")
}
