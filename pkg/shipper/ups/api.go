package ups

import (
	"bytes"
	"encoding/json"
)

// ============================================================================
// API Request/Response Types (match UPS Rating REST API structure)
// ============================================================================

// RateRequestEnvelope is the body of POST /api/rating/{version}/{requestOption}.
type RateRequestEnvelope struct {
	RateRequest RateRequest `json:"RateRequest"`
}

// RateRequest represents a UPS rate shopping request.
type RateRequest struct {
	Request  RequestInfo `json:"Request"`
	Shipment Shipment    `json:"Shipment"`
}

// RequestInfo carries the request option and caller context.
type RequestInfo struct {
	RequestOption        string                `json:"RequestOption,omitempty"`
	TransactionReference *TransactionReference `json:"TransactionReference,omitempty"`
}

// TransactionReference is echoed back by UPS.
type TransactionReference struct {
	CustomerContext string `json:"CustomerContext,omitempty"`
}

// Shipment describes what is being rated.
type Shipment struct {
	Shipper                 Party                    `json:"Shipper"`
	ShipTo                  Party                    `json:"ShipTo"`
	ShipFrom                Party                    `json:"ShipFrom"`
	Package                 []Package                `json:"Package"`
	ShipmentRatingOptions   *ShipmentRatingOptions   `json:"ShipmentRatingOptions,omitempty"`
	ShipmentServiceOptions  *ShipmentServiceOptions  `json:"ShipmentServiceOptions,omitempty"`
	DeliveryTimeInformation *DeliveryTimeInformation `json:"DeliveryTimeInformation,omitempty"`
	InvoiceLineTotal        *Charge                  `json:"InvoiceLineTotal,omitempty"`
}

// Party is a shipper, origin or destination.
type Party struct {
	Name          string  `json:"Name,omitempty"`
	AttentionName string  `json:"AttentionName,omitempty"`
	ShipperNumber string  `json:"ShipperNumber,omitempty"`
	Address       Address `json:"Address"`
}

// Address represents a UPS address block.
type Address struct {
	AddressLine                 []string `json:"AddressLine,omitempty"`
	City                        string   `json:"City,omitempty"`
	StateProvinceCode           string   `json:"StateProvinceCode,omitempty"`
	PostalCode                  string   `json:"PostalCode,omitempty"`
	CountryCode                 string   `json:"CountryCode"`
	ResidentialAddressIndicator *string  `json:"ResidentialAddressIndicator,omitempty"`
}

// Package represents a single package.
type Package struct {
	PackagingType  CodeDescription `json:"PackagingType"`
	Dimensions     *Dimensions     `json:"Dimensions,omitempty"`
	PackageWeight  PackageWeight   `json:"PackageWeight"`
	PackageOptions *PackageOptions `json:"PackageServiceOptions,omitempty"`
}

// PackageOptions holds per-package service options.
type PackageOptions struct {
	DeclaredValue *Charge `json:"DeclaredValue,omitempty"`
}

// Dimensions of a package. Values are decimal strings.
type Dimensions struct {
	UnitOfMeasurement CodeDescription `json:"UnitOfMeasurement"`
	Length            string          `json:"Length"`
	Width             string          `json:"Width"`
	Height            string          `json:"Height"`
}

// PackageWeight of a package. Weight is a decimal string.
type PackageWeight struct {
	UnitOfMeasurement CodeDescription `json:"UnitOfMeasurement"`
	Weight            string          `json:"Weight"`
}

// ShipmentRatingOptions toggles negotiated rates.
type ShipmentRatingOptions struct {
	NegotiatedRatesIndicator *string `json:"NegotiatedRatesIndicator,omitempty"`
}

// ShipmentServiceOptions toggles optional services.
type ShipmentServiceOptions struct {
	SaturdayDeliveryIndicator *string `json:"SaturdayDeliveryIndicator,omitempty"`
}

// DeliveryTimeInformation requests time-in-transit data.
type DeliveryTimeInformation struct {
	PackageBillType string  `json:"PackageBillType"`
	Pickup          *Pickup `json:"Pickup,omitempty"`
}

// Pickup date in YYYYMMDD.
type Pickup struct {
	Date string `json:"Date"`
}

// CodeDescription is UPS's ubiquitous {Code, Description} pair.
type CodeDescription struct {
	Code        string `json:"Code"`
	Description string `json:"Description,omitempty"`
}

// Charge is a monetary value as UPS reports it.
type Charge struct {
	CurrencyCode  string `json:"CurrencyCode"`
	MonetaryValue string `json:"MonetaryValue"`
}

// RateResponseEnvelope wraps a rating answer.
type RateResponseEnvelope struct {
	RateResponse RateResponse `json:"RateResponse"`
}

// RateResponse is the UPS rating answer.
type RateResponse struct {
	Response      ResponseInfo             `json:"Response"`
	RatedShipment oneOrMany[RatedShipment] `json:"RatedShipment"`
}

// ResponseInfo carries the embedded status. Code "1" means success.
type ResponseInfo struct {
	ResponseStatus CodeDescription            `json:"ResponseStatus"`
	Alert          oneOrMany[CodeDescription] `json:"Alert,omitempty"`
}

// RatedShipment is one priced service.
type RatedShipment struct {
	Service               CodeDescription           `json:"Service"`
	TransportationCharges *Charge                   `json:"TransportationCharges,omitempty"`
	BaseServiceCharge     *Charge                   `json:"BaseServiceCharge,omitempty"`
	ServiceOptionsCharges *Charge                   `json:"ServiceOptionsCharges,omitempty"`
	ItemizedCharges       oneOrMany[ItemizedCharge] `json:"ItemizedCharges,omitempty"`
	TotalCharges          *Charge                   `json:"TotalCharges,omitempty"`
	NegotiatedRateCharges *NegotiatedRateCharges    `json:"NegotiatedRateCharges,omitempty"`
	GuaranteedDelivery    *GuaranteedDelivery       `json:"GuaranteedDelivery,omitempty"`
	TimeInTransit         *TimeInTransit            `json:"TimeInTransit,omitempty"`
}

// ItemizedCharge is one surcharge line.
type ItemizedCharge struct {
	Code          string `json:"Code"`
	Description   string `json:"Description,omitempty"`
	CurrencyCode  string `json:"CurrencyCode"`
	MonetaryValue string `json:"MonetaryValue"`
}

// NegotiatedRateCharges holds account-specific pricing.
type NegotiatedRateCharges struct {
	TotalCharge *Charge `json:"TotalCharge,omitempty"`
}

// GuaranteedDelivery is present only for guaranteed services.
type GuaranteedDelivery struct {
	BusinessDaysInTransit string `json:"BusinessDaysInTransit,omitempty"`
	DeliveryByTime        string `json:"DeliveryByTime,omitempty"`
}

// TimeInTransit is the detailed delivery estimate.
type TimeInTransit struct {
	PickupDate     string          `json:"PickupDate,omitempty"`
	ServiceSummary *ServiceSummary `json:"ServiceSummary,omitempty"`
}

// ServiceSummary summarises the estimate for one service.
type ServiceSummary struct {
	Service          CodeDescription   `json:"Service"`
	EstimatedArrival *EstimatedArrival `json:"EstimatedArrival,omitempty"`
	SaturdayDelivery string            `json:"SaturdayDelivery,omitempty"`
}

// EstimatedArrival carries transit days and the arrival date.
type EstimatedArrival struct {
	Arrival               DateTime `json:"Arrival"`
	BusinessDaysInTransit string   `json:"BusinessDaysInTransit,omitempty"`
	DayOfWeek             string   `json:"DayOfWeek,omitempty"`
}

// DateTime is a YYYYMMDD date plus HHMMSS time.
type DateTime struct {
	Date string `json:"Date"`
	Time string `json:"Time,omitempty"`
}

// oneOrMany decodes a JSON array, or a single object as a one-element array.
// UPS collapses one-element arrays to bare objects.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}
