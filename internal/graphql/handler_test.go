package graphql_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postGraphQL(t *testing.T, h http.Handler, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestHandler_Rate(t *testing.T) {
	resolver, _ := newTestResolver()
	h := resolver.NewHandler()

	body := `{
		"query": "query Rate($input: RateInput!) { rate(input: $input) { results { carrier quotes { serviceCode totalPrice { amount } } } errors { code } } }",
		"operationName": "Rate",
		"variables": {"input": {
			"carriers": ["ups"],
			"origin": {"countryCode": "US", "postalCode": "30301"},
			"destination": {"countryCode": "US", "postalCode": "98101"},
			"packages": [{"weight": 5.5, "length": "10", "weightUnit": "LB"}]
		}}
	}`

	// The second request is served from the parsed document cache.
	for i := 0; i < 2; i++ {
		status, out := postGraphQL(t, h, body)

		require.Equal(t, http.StatusOK, status, out)
		assert.NotContains(t, out, "errors")
		rate := out["data"].(map[string]any)["rate"].(map[string]any)
		assert.Equal(t, []any{}, rate["errors"])
		results := rate["results"].([]any)
		require.Len(t, results, 1)
		first := results[0].(map[string]any)
		assert.Equal(t, "ups", first["carrier"])
		assert.Equal(t, map[string]any{
			"serviceCode": "STANDARD",
			"totalPrice":  map[string]any{"amount": "15.82"},
		}, first["quotes"].([]any)[0])
	}
}

func TestHandler_FieldErrorExtensions(t *testing.T) {
	resolver, _ := newTestResolver()
	h := resolver.NewHandler()

	body := `{"query": "{ carriers { name } rate(input: {origin: {}, destination: {}, packages: [{weight: 0}]}) { results { carrier } } }"}`
	status, out := postGraphQL(t, h, body)

	require.Equal(t, http.StatusOK, status, out)
	data := out["data"].(map[string]any)
	assert.Len(t, data["carriers"], 2)
	assert.Nil(t, data["rate"])

	errs := out["errors"].([]any)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Equal(t, []any{"rate"}, first["path"])
	ext := first["extensions"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", ext["code"])
	assert.Contains(t, ext["fieldErrors"], "packages[0].weight")
}

func TestHandler_RejectsInvalidDocuments(t *testing.T) {
	resolver, metrics := newTestResolver()
	h := resolver.NewHandler()

	tests := []struct {
		name  string
		query string
	}{
		{"unknown field", `{ shipments { id } }`},
		{"unknown nested field", `{ carriers { name code } }`},
		{"mutation", `mutation { health { status } }`},
		{"wrong argument type", `{ rate(input: 5) { errors { code } } }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(map[string]string{"query": tt.query})
			require.NoError(t, err)

			status, out := postGraphQL(t, h, string(payload))

			assert.Equal(t, http.StatusUnprocessableEntity, status)
			assert.Nil(t, out["data"])
			assert.NotEmpty(t, out["errors"])
		})
	}
	assert.Zero(t, testutil.CollectAndCount(metrics.RequestsTotal), "rejected documents never reach a carrier")
}
