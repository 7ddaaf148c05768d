package graphql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tournevent/ratebridge/pkg/shipper"
)

func addressInputToModel(input *AddressInput) shipper.Address {
	if input == nil {
		return shipper.Address{}
	}
	addr := shipper.Address{
		Name:        input.Name,
		Company:     input.Company,
		Line1:       input.Line1,
		Line2:       input.Line2,
		City:        input.City,
		StateCode:   input.StateCode,
		PostalCode:  input.PostalCode,
		CountryCode: input.CountryCode,
	}
	if input.Residential != nil {
		addr.Residential = *input.Residential
	}
	return addr
}

// rateInputToModel converts API input to a domain request. Numbers that do
// not parse are reported as a validation error keyed by field path.
func rateInputToModel(input *RateInput) (*shipper.RateRequest, error) {
	if input == nil {
		return nil, shipper.NewValidationError("", map[string]string{"input": "required"})
	}

	fieldErrs := map[string]string{}
	req := &shipper.RateRequest{
		Origin:      addressInputToModel(input.Origin),
		Destination: addressInputToModel(input.Destination),
		Packages:    packagesInputToModel(input.Packages, fieldErrs),
	}
	if input.ShipDate != nil {
		req.ShipDate = *input.ShipDate
	}
	if input.Options != nil {
		req.Options = &shipper.RateOptions{NegotiatedRates: input.Options.NegotiatedRates}
		if input.Options.SaturdayDelivery != nil {
			req.Options.SaturdayDelivery = *input.Options.SaturdayDelivery
		}
	}

	if len(fieldErrs) > 0 {
		return nil, shipper.NewValidationError("", fieldErrs)
	}
	return req, nil
}

func packagesInputToModel(inputs []*PackageInput, fieldErrs map[string]string) []shipper.Package {
	if inputs == nil {
		return nil
	}
	packages := make([]shipper.Package, 0, len(inputs))
	for i, input := range inputs {
		if input == nil {
			fieldErrs[fmt.Sprintf("packages[%d]", i)] = "required"
			continue
		}
		path := func(field string) string { return fmt.Sprintf("packages[%d].%s", i, field) }

		pkg := shipper.Package{
			Weight: parseNumber(input.Weight.String(), path("weight"), fieldErrs),
			Length: parseNumber(input.Length.String(), path("length"), fieldErrs),
			Width:  parseNumber(input.Width.String(), path("width"), fieldErrs),
			Height: parseNumber(input.Height.String(), path("height"), fieldErrs),
		}
		if input.WeightUnit != nil {
			pkg.WeightUnit = weightUnitToModel(*input.WeightUnit)
		}
		if input.DimensionUnit != nil {
			pkg.DimensionUnit = dimensionUnitToModel(*input.DimensionUnit)
		}
		if input.PackagingType != nil {
			pkg.PackagingType = *input.PackagingType
		}
		if dv := input.DeclaredValue; dv != nil {
			amount, err := decimal.NewFromString(dv.Amount.String())
			if err != nil {
				fieldErrs[path("declaredValue.amount")] = "number"
			}
			pkg.DeclaredValue = &shipper.Money{Amount: amount, Currency: shipper.Currency(strings.ToUpper(dv.Currency))}
		}
		packages = append(packages, pkg)
	}
	return packages
}

func parseNumber(s, path string, fieldErrs map[string]string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		fieldErrs[path] = "number"
		return 0
	}
	return d.InexactFloat64()
}

func weightUnitToModel(u string) shipper.WeightUnit {
	switch strings.ToUpper(u) {
	case "LB", "LBS":
		return shipper.WeightLB
	case "KG", "KGS":
		return shipper.WeightKG
	default:
		return shipper.WeightUnit(strings.ToUpper(u))
	}
}

func dimensionUnitToModel(u string) shipper.DimensionUnit {
	switch strings.ToUpper(u) {
	case "IN":
		return shipper.DimensionIN
	case "CM":
		return shipper.DimensionCM
	default:
		return shipper.DimensionUnit(strings.ToUpper(u))
	}
}

// ResultToGraphQL renders a rate result with fixed two-decimal amounts.
func ResultToGraphQL(r *shipper.RateResult) *RateResult {
	quotes := make([]*RateQuote, len(r.Quotes))
	for i := range r.Quotes {
		quotes[i] = quoteToGraphQL(&r.Quotes[i])
	}
	return &RateResult{
		RequestID: r.RequestID,
		Carrier:   r.Carrier,
		Timestamp: r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Quotes:    quotes,
	}
}

func quoteToGraphQL(q *shipper.RateQuote) *RateQuote {
	surcharges := make([]*Surcharge, len(q.Surcharges))
	for i, s := range q.Surcharges {
		surcharges[i] = &Surcharge{
			Code:        s.Code,
			Description: s.Description,
			Amount:      moneyToGraphQL(s.Amount),
		}
	}
	out := &RateQuote{
		Carrier:          q.Carrier,
		ServiceCode:      q.ServiceCode,
		ServiceName:      q.ServiceName,
		TotalPrice:       moneyToGraphQL(q.TotalPrice),
		BasePrice:        moneyToGraphQL(q.BasePrice),
		Surcharges:       surcharges,
		TransitDays:      q.TransitDays,
		SaturdayDelivery: q.SaturdayDelivery,
		Guaranteed:       q.Guaranteed,
	}
	if q.EstimatedDeliveryDate != nil {
		d := q.EstimatedDeliveryDate.Format("2006-01-02")
		out.EstimatedDeliveryDate = &d
	}
	return out
}

func moneyToGraphQL(m shipper.Money) *Money {
	return &Money{
		Amount:   m.Amount.StringFixed(2),
		Currency: string(m.Currency),
	}
}

// ErrorToGraphQL describes err for API clients. Errors outside the carrier
// taxonomy are reported as internal.
func ErrorToGraphQL(err error) *Error {
	var shipperErr *shipper.ShipperError
	if !errors.As(err, &shipperErr) {
		code := "INTERNAL_ERROR"
		if errors.Is(err, shipper.ErrCarrierNotFound) {
			code = "CARRIER_NOT_FOUND"
		}
		return &Error{Code: code, Message: err.Error()}
	}
	return &Error{
		Code:              shipperErr.Code,
		Kind:              string(shipperErr.Kind),
		Carrier:           shipperErr.Carrier,
		Message:           shipperErr.Message,
		StatusCode:        shipperErr.StatusCode,
		Retryable:         shipperErr.Retryable(),
		RetryAfterSeconds: shipperErr.RetryAfterSeconds,
		FieldErrors:       shipperErr.FieldErrors,
	}
}

// NewRatePayload pairs the successful results of a fan-out with the
// failures of the carriers that did not answer.
func NewRatePayload(results []*shipper.RateResult, errs []error) *RatePayload {
	payload := &RatePayload{
		Results: make([]*RateResult, len(results)),
		Errors:  errorsToGraphQL(errs),
	}
	for i, res := range results {
		payload.Results[i] = ResultToGraphQL(res)
	}
	return payload
}

func errorsToGraphQL(errs []error) []*Error {
	result := make([]*Error, len(errs))
	for i, err := range errs {
		result[i] = ErrorToGraphQL(err)
	}
	return result
}
