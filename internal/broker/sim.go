package broker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hannlab/autotrader/internal/observ"
	"github.com/hannlab/autotrader/internal/outbox"
)

// SimVenue is the paper execution venue: it fills orders instantly at the
// reference price plus random slippage, tracks open positions, and appends
// every order and fill to the outbox. Results carry the simulated status so
// downstream consumers can tell paper fills from live ones.
type SimVenue struct {
	mu         sync.Mutex
	nextTicket int64
	positions  map[int64]OrderRequest
	refPrice   func(symbol string) float64
	rng        *rand.Rand
	audit      *outbox.Outbox
	failEvery  int // 0 disables injected transient failures
	submits    int
}

type fillRecord struct {
	CorrelationID  string  `json:"correlation_id"`
	Ticket         int64   `json:"ticket"`
	Symbol         string  `json:"symbol"`
	Direction      string  `json:"direction"`
	Lot            float64 `json:"lot"`
	Price          float64 `json:"price"`
	SlippagePts    float64 `json:"slippage_points"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// NewSimVenue creates a paper venue. refPrice supplies the current market
// price per symbol; audit may be nil to skip the JSONL trail.
func NewSimVenue(refPrice func(symbol string) float64, audit *outbox.Outbox, seed int64) *SimVenue {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimVenue{
		nextTicket: 1,
		positions:  map[int64]OrderRequest{},
		refPrice:   refPrice,
		rng:        rand.New(rand.NewSource(seed)),
		audit:      audit,
	}
}

// FailEveryN injects a transient submit failure on every nth attempt, for
// exercising the retry path in replay runs and tests.
func (v *SimVenue) FailEveryN(n int) { v.failEvery = n }

func (v *SimVenue) Submit(ctx context.Context, req OrderRequest, policy FillPolicy) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.submits++
	if v.failEvery > 0 && v.submits%v.failEvery == 0 {
		return Result{}, fmt.Errorf("requote under fill policy %s", policy)
	}

	price := v.refPrice(req.Symbol)
	slip := float64(v.rng.Intn(req.SlippagePoints + 1))
	if req.Direction == "short" {
		slip = -slip
	}
	// points to price with a fixed 0.01 point size for the paper book
	fillPrice := price + slip*0.01

	ticket := v.nextTicket
	v.nextTicket++
	v.positions[ticket] = req

	if v.audit != nil {
		rec := fillRecord{
			CorrelationID:  uuid.NewString(),
			Ticket:         ticket,
			Symbol:         req.Symbol,
			Direction:      req.Direction,
			Lot:            req.Lot,
			Price:          fillPrice,
			SlippagePts:    slip,
			IdempotencyKey: req.IdempotencyKey,
		}
		if err := v.audit.Append("order", req); err != nil {
			observ.Error("outbox_order_append_failed", err, nil)
		}
		if err := v.audit.Append("fill", rec); err != nil {
			observ.Error("outbox_fill_append_failed", err, nil)
		}
	}

	observ.IncCounter("orders_placed_total", map[string]string{"status": string(StatusSimulated)})
	return Result{Ticket: ticket, Status: StatusSimulated, Price: fillPrice}, nil
}

func (v *SimVenue) Close(ctx context.Context, ticket int64, slippagePoints int) (Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	req, ok := v.positions[ticket]
	if !ok {
		return Result{Ticket: ticket, Status: StatusNotFound}, nil
	}
	delete(v.positions, ticket)

	price := v.refPrice(req.Symbol)
	if v.audit != nil {
		if err := v.audit.Append("close", map[string]any{"ticket": ticket, "price": price}); err != nil {
			observ.Error("outbox_close_append_failed", err, nil)
		}
	}
	return Result{Ticket: ticket, Status: StatusClosed, Price: price}, nil
}

func (v *SimVenue) OpenPositions() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.positions)
}
