package shipper

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 currency code supported by the rating layer.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
)

// ParseCurrency returns the Currency for code, ignoring case and surrounding
// whitespace. Codes outside the supported set are rejected.
func ParseCurrency(code string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(code))); c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyCAD:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported currency code %q", code)
	}
}

// WeightUnit represents weight measurement unit.
type WeightUnit string

const (
	WeightLB WeightUnit = "LB"
	WeightKG WeightUnit = "KG"
)

// DimensionUnit represents dimension measurement unit.
type DimensionUnit string

const (
	DimensionIN DimensionUnit = "IN"
	DimensionCM DimensionUnit = "CM"
)

// Money represents a monetary amount.
type Money struct {
	Amount   decimal.Decimal `json:"amount" validate:"gte=0"`
	Currency Currency        `json:"currency" validate:"required,oneof=USD EUR GBP CAD"`
}

// NewMoney builds a Money value from a decimal string such as "12.99".
func NewMoney(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: d, Currency: currency}, nil
}

// String renders the amount with two decimals followed by the currency.
func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + string(m.Currency)
}

// Address represents a shipping address.
type Address struct {
	Name        string `json:"name,omitempty"`
	Company     string `json:"company,omitempty"`
	Line1       string `json:"line1,omitempty"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city,omitempty"`
	StateCode   string `json:"stateCode,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	CountryCode string `json:"countryCode" validate:"required,len=2,uppercase,alpha"` // ISO 3166-1 alpha-2
	Residential bool   `json:"residential,omitempty"`
}

// Package represents a package to be shipped.
type Package struct {
	Weight        float64       `json:"weight" validate:"gt=0,lte=150"`
	WeightUnit    WeightUnit    `json:"weightUnit,omitempty" validate:"omitempty,oneof=LB KG"`
	Length        float64       `json:"length,omitempty" validate:"omitempty,gt=0,lte=108"`
	Width         float64       `json:"width,omitempty" validate:"omitempty,gt=0,lte=108"`
	Height        float64       `json:"height,omitempty" validate:"omitempty,gt=0,lte=108"`
	DimensionUnit DimensionUnit `json:"dimensionUnit,omitempty" validate:"omitempty,oneof=IN CM"`
	PackagingType string        `json:"packagingType,omitempty"`
	DeclaredValue *Money        `json:"declaredValue,omitempty" validate:"omitempty"`
}

// RateOptions are caller preferences for a rate request. Unset fields fall
// back to the carrier's configured defaults.
type RateOptions struct {
	NegotiatedRates  *bool `json:"negotiatedRates,omitempty"`
	SaturdayDelivery bool  `json:"saturdayDelivery,omitempty"`
}

// RateRequest is the request for shopping rates across a carrier's services.
type RateRequest struct {
	Origin      Address      `json:"origin"`
	Destination Address      `json:"destination"`
	Packages    []Package    `json:"packages" validate:"required,min=1,max=25,dive"`
	ShipDate    string       `json:"shipDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Options     *RateOptions `json:"options,omitempty"`
}

// Surcharge is an itemized fee layered on top of the base charge.
type Surcharge struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
}

// RateQuote is one priced service level returned by a carrier.
type RateQuote struct {
	Carrier               string      `json:"carrier"`
	ServiceCode           string      `json:"serviceCode"`
	ServiceName           string      `json:"serviceName"`
	TotalPrice            Money       `json:"totalPrice"`
	BasePrice             Money       `json:"basePrice"`
	Surcharges            []Surcharge `json:"surcharges"`
	EstimatedDeliveryDate *time.Time  `json:"estimatedDeliveryDate,omitempty"`
	TransitDays           *int        `json:"transitDays,omitempty"`
	SaturdayDelivery      bool        `json:"saturdayDelivery"`
	Guaranteed            bool        `json:"guaranteed"`
}

// RateResult is the outcome of one successful rate call.
// Quotes are ordered ascending by total price.
type RateResult struct {
	RequestID       string       `json:"requestId"`
	Carrier         string       `json:"carrier"`
	Timestamp       time.Time    `json:"timestamp"`
	Quotes          []RateQuote  `json:"quotes"`
	OriginalRequest *RateRequest `json:"originalRequest,omitempty"`
}

// LabelRequest is the request for purchasing a shipping label.
type LabelRequest struct {
	Rate        RateRequest `json:"rate"`
	ServiceCode string      `json:"serviceCode"`
}

// LabelResponse is the response from purchasing a shipping label.
type LabelResponse struct {
	TrackingNumber string `json:"trackingNumber"`
	Format         string `json:"format"`
	Data           string `json:"data"` // Base64 encoded
}

// TrackRequest is the request for tracking a shipment.
type TrackRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

// TrackingEvent represents a tracking event.
type TrackingEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
}

// TrackResponse is the response from tracking a shipment.
type TrackResponse struct {
	TrackingNumber string          `json:"trackingNumber"`
	Events         []TrackingEvent `json:"events"`
}
