// Package shipper provides an abstraction layer for shipping carriers.
package shipper

import (
	"context"
)

// Shipper defines the interface that all shipping carriers must implement.
type Shipper interface {
	// Name returns the carrier identifier (e.g., "ups").
	Name() string

	// Rate returns shipping rate quotes for a shipment, cheapest first.
	Rate(ctx context.Context, req *RateRequest) (*RateResult, error)

	// CreateLabel purchases a shipping label for a selected service.
	CreateLabel(ctx context.Context, req *LabelRequest) (*LabelResponse, error)

	// Track returns the tracking history of a shipment.
	Track(ctx context.Context, req *TrackRequest) (*TrackResponse, error)
}
