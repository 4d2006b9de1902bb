package clients

import (
	"context"
	"fmt"
)

// PriceUpdate is one product's new price as submitted to the marketplace.
// Prices are whole rubles; the marketplace rejects fractional values.
type PriceUpdate struct {
	NmID     int64 `json:"nmID"`
	Price    int   `json:"price"`
	Discount *int  `json:"discount,omitempty"`
}

// ItemRejection is a per-item refusal inside an otherwise accepted submission.
type ItemRejection struct {
	NmID   int64  `json:"nmId"`
	Reason string `json:"reason"`
}

// PriceUpdateResult reports the per-item outcome of one chunk submission.
type PriceUpdateResult struct {
	Accepted []int64         `json:"accepted"`
	Rejected []ItemRejection `json:"rejected,omitempty"`
}

// PricingClient is the interface the batch applier talks to. Implementations
// wrap one marketplace's pricing API for one seller's credentials.
type PricingClient interface {
	// SubmitPriceUpdate pushes one chunk of price updates. A returned
	// *TransportError means the whole chunk failed to reach the marketplace
	// (connectivity, auth, exhausted retries); per-item refusals come back in
	// the result instead.
	SubmitPriceUpdate(ctx context.Context, updates []PriceUpdate) (*PriceUpdateResult, error)

	// MaxChunkSize returns the largest number of updates one submission may
	// carry.
	MaxChunkSize() int

	// TestConnection verifies the credentials work
	TestConnection(ctx context.Context) error
}

// TransportError is a whole-chunk delivery failure: nothing in the chunk was
// accepted or rejected individually, the request itself did not go through.
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: marketplace returned status %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
