package graphql

import "encoding/json"

// Input types. Numeric fields accept JSON numbers or numeric strings.

type AddressInput struct {
	Name        string `json:"name"`
	Company     string `json:"company"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2"`
	City        string `json:"city"`
	StateCode   string `json:"stateCode"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
	Residential *bool  `json:"residential"`
}

type MoneyInput struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

type PackageInput struct {
	Weight        json.Number `json:"weight"`
	WeightUnit    *string     `json:"weightUnit"`
	Length        json.Number `json:"length"`
	Width         json.Number `json:"width"`
	Height        json.Number `json:"height"`
	DimensionUnit *string     `json:"dimensionUnit"`
	PackagingType *string     `json:"packagingType"`
	DeclaredValue *MoneyInput `json:"declaredValue"`
}

type RateOptionsInput struct {
	NegotiatedRates  *bool `json:"negotiatedRates"`
	SaturdayDelivery *bool `json:"saturdayDelivery"`
}

type RateInput struct {
	Carriers    []string          `json:"carriers"`
	Origin      *AddressInput     `json:"origin"`
	Destination *AddressInput     `json:"destination"`
	Packages    []*PackageInput   `json:"packages"`
	ShipDate    *string           `json:"shipDate"`
	Options     *RateOptionsInput `json:"options"`
}

// Output types.

type Health struct {
	Status    string `json:"status"`
	Carriers  int    `json:"carriers"`
	Timestamp string `json:"timestamp"`
}

type Carrier struct {
	Name string `json:"name"`
}

type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type Surcharge struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Amount      *Money `json:"amount"`
}

type RateQuote struct {
	Carrier               string       `json:"carrier"`
	ServiceCode           string       `json:"serviceCode"`
	ServiceName           string       `json:"serviceName"`
	TotalPrice            *Money       `json:"totalPrice"`
	BasePrice             *Money       `json:"basePrice"`
	Surcharges            []*Surcharge `json:"surcharges"`
	EstimatedDeliveryDate *string      `json:"estimatedDeliveryDate"`
	TransitDays           *int         `json:"transitDays"`
	SaturdayDelivery      bool         `json:"saturdayDelivery"`
	Guaranteed            bool         `json:"guaranteed"`
}

type RateResult struct {
	RequestID string       `json:"requestId"`
	Carrier   string       `json:"carrier"`
	Timestamp string       `json:"timestamp"`
	Quotes    []*RateQuote `json:"quotes"`
}

// Error is a carrier or validation failure as exposed to API clients.
type Error struct {
	Code              string            `json:"code"`
	Kind              string            `json:"kind,omitempty"`
	Carrier           string            `json:"carrier,omitempty"`
	Message           string            `json:"message"`
	StatusCode        int               `json:"statusCode,omitempty"`
	Retryable         bool              `json:"retryable"`
	RetryAfterSeconds *int              `json:"retryAfterSeconds,omitempty"`
	FieldErrors       map[string]string `json:"fieldErrors,omitempty"`
}

type RatePayload struct {
	Results []*RateResult `json:"results"`
	Errors  []*Error      `json:"errors"`
}
