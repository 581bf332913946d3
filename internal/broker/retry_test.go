package broker

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedVenue fails the first n submits and records the fill policy of
// every attempt.
type scriptedVenue struct {
	failFirst int
	policies  []FillPolicy
	submits   int
}

func (v *scriptedVenue) Submit(ctx context.Context, req OrderRequest, policy FillPolicy) (Result, error) {
	v.submits++
	v.policies = append(v.policies, policy)
	if v.submits <= v.failFirst {
		return Result{}, errors.New("requote")
	}
	return Result{Ticket: 1, Status: StatusSimulated, Price: 1950}, nil
}

func (v *scriptedVenue) Close(ctx context.Context, ticket int64, slippagePoints int) (Result, error) {
	return Result{Ticket: ticket, Status: StatusClosed}, nil
}

func (v *scriptedVenue) OpenPositions() int { return 0 }

func TestPlaceOrder_DowngradesFillPolicy(t *testing.T) {
	venue := &scriptedVenue{failFirst: 3}
	r := NewRetrying(venue, time.Millisecond)

	res := r.PlaceOrder(context.Background(), OrderRequest{MaxRetries: 3})
	if res.Status != StatusSimulated {
		t.Fatalf("want recovery on the last attempt, got %s", res.Status)
	}
	want := []FillPolicy{FillOrKill, ImmediateOrCancel, ReturnRemainder, ReturnRemainder}
	if len(venue.policies) != len(want) {
		t.Fatalf("want %d attempts, got %d", len(want), len(venue.policies))
	}
	for i, p := range want {
		if venue.policies[i] != p {
			t.Fatalf("attempt %d: want policy %s, got %s", i, p, venue.policies[i])
		}
	}
}

func TestPlaceOrder_ExhaustedRetriesFail(t *testing.T) {
	venue := &scriptedVenue{failFirst: 100}
	r := NewRetrying(venue, time.Millisecond)

	res := r.PlaceOrder(context.Background(), OrderRequest{MaxRetries: 2})
	if res.Status != StatusFailed {
		t.Fatalf("want failed after exhausting retries, got %s", res.Status)
	}
	if res.Reason == "" {
		t.Fatalf("terminal failure must carry the last error")
	}
	if venue.submits != 3 {
		t.Fatalf("MaxRetries=2 means 3 attempts, got %d", venue.submits)
	}
}

func TestPlaceOrder_FinalAttemptSkipsBackoff(t *testing.T) {
	venue := &scriptedVenue{failFirst: 100}
	r := NewRetrying(venue, time.Hour) // would hang if the last attempt backed off

	done := make(chan Result, 1)
	go func() { done <- r.PlaceOrder(context.Background(), OrderRequest{MaxRetries: 0}) }()
	select {
	case res := <-done:
		if res.Status != StatusFailed {
			t.Fatalf("want failed, got %s", res.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("terminal failure must return without backing off")
	}
}

func TestPlaceOrder_FirstTrySkipsBackoff(t *testing.T) {
	venue := &scriptedVenue{}
	r := NewRetrying(venue, time.Hour) // would hang if backoff ran

	done := make(chan Result, 1)
	go func() { done <- r.PlaceOrder(context.Background(), OrderRequest{MaxRetries: 5}) }()
	select {
	case res := <-done:
		if res.Status != StatusSimulated {
			t.Fatalf("want simulated, got %s", res.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("clean first attempt must not back off")
	}
}

func TestPlaceOrder_ContextCancellation(t *testing.T) {
	venue := &scriptedVenue{failFirst: 100}
	r := NewRetrying(venue, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- r.PlaceOrder(ctx, OrderRequest{MaxRetries: 5}) }()
	cancel()

	select {
	case res := <-done:
		if res.Status != StatusError {
			t.Fatalf("cancelled order must report error status, got %s", res.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancellation must interrupt the backoff")
	}
}

func TestClosePosition_WrapsVenueError(t *testing.T) {
	r := NewRetrying(&scriptedVenue{}, time.Millisecond)
	res := r.ClosePosition(context.Background(), 7, 10)
	if res.Status != StatusClosed || res.Ticket != 7 {
		t.Fatalf("unexpected close result: %+v", res)
	}
}
