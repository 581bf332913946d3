package broker

import (
	"context"
	"time"

	"github.com/hannlab/autotrader/internal/observ"
)

// fill-policy downgrade ladder across retry attempts
var downgradeLadder = []FillPolicy{FillOrKill, ImmediateOrCancel, ReturnRemainder}

// Retrying wraps a Venue with bounded retries and linear backoff. Each
// attempt downgrades the fill policy one step, mirroring how a requoting
// venue is coaxed into a fill. The backoff blocks the calling goroutine;
// the daemon loop is single-threaded and at most one order per account is
// ever in flight.
type Retrying struct {
	venue       Venue
	backoffBase time.Duration
}

func NewRetrying(venue Venue, backoffBase time.Duration) *Retrying {
	if backoffBase <= 0 {
		backoffBase = 200 * time.Millisecond
	}
	return &Retrying{venue: venue, backoffBase: backoffBase}
}

func (r *Retrying) PlaceOrder(ctx context.Context, req OrderRequest) Result {
	attempts := req.MaxRetries
	if attempts < 0 {
		attempts = 0
	}
	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		policy := downgradeLadder[minInt(attempt, len(downgradeLadder)-1)]
		res, err := r.venue.Submit(ctx, req, policy)
		if err == nil {
			if attempt > 0 {
				observ.Log("order_retry_recovered", map[string]any{
					"attempt": attempt,
					"policy":  string(policy),
				})
			}
			return res
		}
		lastErr = err
		observ.IncCounter("broker_retries_total", nil)
		observ.Warn("order_attempt_failed", map[string]any{
			"attempt": attempt,
			"policy":  string(policy),
			"reason":  err.Error(),
		})
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return Result{Status: StatusError, Reason: ctx.Err().Error()}
		case <-time.After(r.backoffBase * time.Duration(attempt+1)):
		}
	}
	return Result{Status: StatusFailed, Reason: lastErr.Error()}
}

func (r *Retrying) ClosePosition(ctx context.Context, ticket int64, slippagePoints int) Result {
	res, err := r.venue.Close(ctx, ticket, slippagePoints)
	if err != nil {
		return Result{Ticket: ticket, Status: StatusError, Reason: err.Error()}
	}
	return res
}

func (r *Retrying) OpenPositions() int { return r.venue.OpenPositions() }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
