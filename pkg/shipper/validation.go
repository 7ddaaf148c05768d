package shipper

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(f reflect.Value) any {
			if d, ok := f.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		validate = v
	})
	return validate
}

// ValidateRateRequest checks the structural constraints inbound rate requests
// must satisfy before they reach a carrier: 1 to 25 packages, two-letter
// uppercase country codes, weights in (0, 150], dimensions in (0, 108] and an
// ISO (YYYY-MM-DD) ship date. Failures are returned as a validation
// ShipperError keyed by JSON field path.
func ValidateRateRequest(req *RateRequest) error {
	if req == nil {
		return NewValidationError("", map[string]string{"request": "required"})
	}
	err := requestValidator().Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError("", map[string]string{"request": err.Error()}).WithCause(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		path := strings.TrimPrefix(fe.Namespace(), "RateRequest.")
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[path] = rule
	}
	return NewValidationError("", fields).WithCause(err)
}
