// Package mock provides mock shipper and transport implementations for testing.
package mock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/ratebridge/pkg/shipper"
)

// Client is a mock shipper for testing.
type Client struct {
	name string

	// OnRate, when set, replaces the canned quotes.
	OnRate func(ctx context.Context, req *shipper.RateRequest) (*shipper.RateResult, error)
}

// New creates a new mock shipper.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// Rate returns mock shipping quotes, cheapest first.
func (c *Client) Rate(ctx context.Context, req *shipper.RateRequest) (*shipper.RateResult, error) {
	if c.OnRate != nil {
		return c.OnRate(ctx, req)
	}

	now := time.Now().UTC()
	standardDays, expressDays := 5, 2
	expressDelivery := now.AddDate(0, 0, expressDays)

	return &shipper.RateResult{
		RequestID: uuid.NewString(),
		Carrier:   c.name,
		Timestamp: now,
		Quotes: []shipper.RateQuote{
			{
				Carrier:     c.name,
				ServiceCode: "STANDARD",
				ServiceName: c.name + " Standard",
				TotalPrice:  usd("15.82"),
				BasePrice:   usd("14.32"),
				Surcharges: []shipper.Surcharge{
					{Code: "FUEL", Description: "Fuel surcharge", Amount: usd("1.50")},
				},
				TransitDays: &standardDays,
			},
			{
				Carrier:               c.name,
				ServiceCode:           "EXPRESS",
				ServiceName:           c.name + " Express",
				TotalPrice:            usd("29.95"),
				BasePrice:             usd("27.45"),
				Surcharges:            []shipper.Surcharge{{Code: "FUEL", Description: "Fuel surcharge", Amount: usd("2.50")}},
				TransitDays:           &expressDays,
				EstimatedDeliveryDate: &expressDelivery,
				Guaranteed:            true,
			},
		},
		OriginalRequest: req,
	}, nil
}

// CreateLabel is not supported by the mock shipper.
func (c *Client) CreateLabel(ctx context.Context, req *shipper.LabelRequest) (*shipper.LabelResponse, error) {
	return nil, shipper.NewNotImplementedError(c.name, "createLabel")
}

// Track is not supported by the mock shipper.
func (c *Client) Track(ctx context.Context, req *shipper.TrackRequest) (*shipper.TrackResponse, error) {
	return nil, shipper.NewNotImplementedError(c.name, "track")
}

func usd(amount string) shipper.Money {
	return shipper.Money{Amount: decimal.RequireFromString(amount), Currency: shipper.CurrencyUSD}
}

var _ shipper.Shipper = (*Client)(nil)
