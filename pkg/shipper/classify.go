package shipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// messageFields are searched, in order, for a human readable error message
// in a carrier error body.
var messageFields = []string{"message", "error", "error_description", "errorMessage"}

// Classify turns a failed carrier call into exactly one ShipperError.
// Either err is the transport failure, or resp is a non-2xx response.
//
// Decision order (first match wins):
//  1. no response, timed out     -> network (timeout)
//  2. no response                -> network
//  3. 401                        -> authentication
//  4. 429                        -> rate limit, Retry-After seconds if numeric
//  5. any other non-2xx          -> carrier api, message extracted from the body
//  6. anything else              -> network, generic message
func Classify(carrier string, resp *Response, err error) *ShipperError {
	if err != nil {
		var shipperErr *ShipperError
		if errors.As(err, &shipperErr) {
			return shipperErr
		}

		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			switch transportErr.Kind {
			case FailureTimeout:
				return NewNetworkError(carrier, "request timed out", true).WithCause(err)
			case FailureNoResponse:
				return NewNetworkError(carrier, "no response from carrier", false).WithCause(err)
			}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return NewNetworkError(carrier, "request timed out", true).WithCause(err)
		}
		return NewNetworkError(carrier, "unexpected transport failure", false).WithCause(err)
	}

	if resp == nil || resp.OK() {
		return NewNetworkError(carrier, "unexpected transport failure", false)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return NewAuthenticationError(carrier, ExtractErrorMessage(resp.Body, "unauthorized")).
			WithStatusCode(resp.StatusCode)
	case http.StatusTooManyRequests:
		return NewRateLimitError(carrier,
			ExtractErrorMessage(resp.Body, "too many requests"),
			ParseRetryAfter(resp.Header.Get("Retry-After")))
	default:
		fallback := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		return NewCarrierAPIError(carrier,
			ExtractErrorMessage(resp.Body, fallback),
			resp.StatusCode,
			string(resp.Body))
	}
}

// ParseRetryAfter returns the Retry-After header as whole seconds, or nil if
// the header is absent or not a non-negative integer (HTTP-date values are
// not honoured).
func ParseRetryAfter(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// ExtractErrorMessage searches a JSON error body for a message. It looks at
// the known message fields, then the first element of an "errors" array, at
// the top level and then inside a nested "response" object. fallback is
// returned when nothing matches or the body is not a JSON object.
func ExtractErrorMessage(body []byte, fallback string) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fallback
	}
	if msg := messageFrom(doc); msg != "" {
		return msg
	}
	if nested, ok := doc["response"].(map[string]any); ok {
		if msg := messageFrom(nested); msg != "" {
			return msg
		}
	}
	return fallback
}

func messageFrom(doc map[string]any) string {
	for _, field := range messageFields {
		switch v := doc[field].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			// {"error": {"message": "..."}}
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	if list, ok := doc["errors"].([]any); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]any); ok {
			if msg, ok := first["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return ""
}
