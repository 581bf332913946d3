package broker

import (
	"context"
)

// Status is the terminal outcome of an execution attempt. Execution calls
// always return a status; they never raise out of the call.
type Status string

const (
	StatusSimulated Status = "simulated"
	StatusFilled    Status = "filled"
	StatusFailed    Status = "failed"
	StatusNotFound  Status = "not_found"
	StatusClosed    Status = "closed"
	StatusError     Status = "error"
)

// FillPolicy is the order matching mode requested from the venue. Retries
// downgrade the policy stepwise so a partially available book can still
// fill.
type FillPolicy string

const (
	FillOrKill        FillPolicy = "fok"
	ImmediateOrCancel FillPolicy = "ioc"
	ReturnRemainder   FillPolicy = "return"
)

// OrderRequest describes one market order.
type OrderRequest struct {
	Symbol         string  `json:"symbol"`
	Direction      string  `json:"direction"` // long | short
	Lot            float64 `json:"lot"`
	SL             float64 `json:"sl"`
	TP             float64 `json:"tp"`
	SlippagePoints int     `json:"slippage_points"`
	MaxRetries     int     `json:"max_retries"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// Result is the terminal outcome of PlaceOrder or ClosePosition.
type Result struct {
	Ticket int64   `json:"ticket"`
	Status Status  `json:"status"`
	Price  float64 `json:"price,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// Broker executes orders. Implementations must return a terminal status for
// every call and degrade to simulated results when disconnected.
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) Result
	ClosePosition(ctx context.Context, ticket int64, slippagePoints int) Result
	OpenPositions() int
}

// Venue is the raw submission surface a Broker retries against. An error
// return marks a transient failure worth retrying; a Result with a failure
// status is terminal.
type Venue interface {
	Submit(ctx context.Context, req OrderRequest, policy FillPolicy) (Result, error)
	Close(ctx context.Context, ticket int64, slippagePoints int) (Result, error)
	OpenPositions() int
}
