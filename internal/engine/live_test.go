package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"marlin/internal/domain"
)

// fakePlacer scripts PlaceOrder and OrderStatus responses.
type fakePlacer struct {
	placeErrs   []error // consumed first, one per call
	placeAck    domain.OrderAck
	statusAcks  []domain.OrderAck
	placeCalls  int
	statusCalls int
}

func (f *fakePlacer) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	f.placeCalls++
	if len(f.placeErrs) > 0 {
		err := f.placeErrs[0]
		f.placeErrs = f.placeErrs[1:]
		return domain.OrderAck{}, err
	}
	ack := f.placeAck
	if ack.OrderID == "" {
		ack.OrderID = req.ID
	}
	return ack, nil
}

func (f *fakePlacer) OrderStatus(_ context.Context, _ string, clientOrderID string) (domain.OrderAck, error) {
	f.statusCalls++
	if len(f.statusAcks) == 0 {
		return domain.OrderAck{OrderID: clientOrderID, Status: domain.OrderStatusPending}, nil
	}
	ack := f.statusAcks[0]
	if len(f.statusAcks) > 1 {
		f.statusAcks = f.statusAcks[1:]
	}
	if ack.OrderID == "" {
		ack.OrderID = clientOrderID
	}
	return ack, nil
}

func liveReq() domain.OrderRequest {
	return domain.OrderRequest{
		ID: "ord-1", Symbol: "XRP/USDT", Direction: domain.Long,
		Size: 10, ReferencePrice: 100, Timestamp: testStart,
	}
}

func fastExecutor(p *fakePlacer) *LiveExecutor {
	e := NewLiveExecutor(p, 0.001, 2*time.Second, discard())
	e.pollInterval = time.Millisecond
	return e
}

func TestLiveExecutorImmediateFill(t *testing.T) {
	p := &fakePlacer{placeAck: domain.OrderAck{
		Status: domain.OrderStatusFilled, ExecutedPrice: 100.02, ExecutedSize: 10,
	}}
	fill, err := fastExecutor(p).Execute(context.Background(), liveReq(), domain.Bar{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fill.OrderID != "ord-1" || fill.ExecutedPrice != 100.02 || fill.Size != 10 {
		t.Errorf("fill = %+v", fill)
	}
	// Fee estimated from the taker rate when the venue reports none.
	approx(t, fill.Fee, 100.02*10*0.001, 1e-9, "estimated fee")
}

func TestLiveExecutorRetriesTransientErrors(t *testing.T) {
	p := &fakePlacer{
		placeErrs: []error{errors.New("502"), errors.New("timeout")},
		placeAck:  domain.OrderAck{Status: domain.OrderStatusFilled, ExecutedPrice: 100, ExecutedSize: 10},
	}
	e := fastExecutor(p)
	e.maxAttempts = 4

	if _, err := e.Execute(context.Background(), liveReq(), domain.Bar{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if p.placeCalls != 3 {
		t.Errorf("place calls = %d, want 3", p.placeCalls)
	}
}

func TestLiveExecutorRecoversFillAfterLostResponses(t *testing.T) {
	// Every submission response is lost in transit, but the first attempt
	// reached the venue and executed. The final status lookup by client order
	// ID must surface that fill instead of an error.
	p := &fakePlacer{
		placeErrs: []error{errors.New("502"), errors.New("502")},
		statusAcks: []domain.OrderAck{
			{Status: domain.OrderStatusFilled, ExecutedPrice: 100.01, ExecutedSize: 10},
		},
	}
	e := fastExecutor(p)
	e.maxAttempts = 2

	fill, err := e.Execute(context.Background(), liveReq(), domain.Bar{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fill.OrderID != "ord-1" || fill.ExecutedPrice != 100.01 || fill.Size != 10 {
		t.Errorf("fill = %+v", fill)
	}
	if p.statusCalls == 0 {
		t.Error("venue never asked about the order after submission failures")
	}
}

func TestLiveExecutorSubmissionFailureWithNoVenueFill(t *testing.T) {
	// Submissions fail and the venue has no execution for the order: the
	// error surfaces, nothing is invented.
	p := &fakePlacer{placeErrs: []error{errors.New("502"), errors.New("502")}}
	e := fastExecutor(p)
	e.maxAttempts = 2

	if _, err := e.Execute(context.Background(), liveReq(), domain.Bar{}); err == nil {
		t.Fatal("Execute should fail when the venue reports no fill")
	}
	if p.statusCalls == 0 {
		t.Error("venue never asked about the order after submission failures")
	}
}

func TestLiveExecutorRejectionIsNotRetried(t *testing.T) {
	p := &fakePlacer{placeAck: domain.OrderAck{Status: domain.OrderStatusRejected}}
	_, err := fastExecutor(p).Execute(context.Background(), liveReq(), domain.Bar{})
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("got %v, want ErrInvalidOrder", err)
	}
	if p.placeCalls != 1 {
		t.Errorf("place calls = %d, want 1 (no retry on rejection)", p.placeCalls)
	}
}

func TestLiveExecutorPollsPendingOrder(t *testing.T) {
	p := &fakePlacer{
		placeAck: domain.OrderAck{Status: domain.OrderStatusPending},
		statusAcks: []domain.OrderAck{
			{Status: domain.OrderStatusPending},
			{Status: domain.OrderStatusFilled, ExecutedPrice: 100.05, ExecutedSize: 10},
		},
	}
	fill, err := fastExecutor(p).Execute(context.Background(), liveReq(), domain.Bar{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fill.ExecutedPrice != 100.05 {
		t.Errorf("price = %v, want 100.05", fill.ExecutedPrice)
	}
	if p.statusCalls < 2 {
		t.Errorf("status calls = %d, want >= 2", p.statusCalls)
	}
}

func TestLiveExecutorTimesOutOnStuckOrder(t *testing.T) {
	p := &fakePlacer{placeAck: domain.OrderAck{Status: domain.OrderStatusPending}}
	e := NewLiveExecutor(p, 0.001, 50*time.Millisecond, discard())
	e.pollInterval = time.Millisecond

	_, err := e.Execute(context.Background(), liveReq(), domain.Bar{})
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("got %v, want ErrExecutionTimeout", err)
	}
}

func TestLiveExecutorReconciliationConflict(t *testing.T) {
	// The venue confirms a fill under a different client order ID.
	p := &fakePlacer{placeAck: domain.OrderAck{
		OrderID: "someone-else", Status: domain.OrderStatusFilled, ExecutedPrice: 100, ExecutedSize: 10,
	}}
	_, err := fastExecutor(p).Execute(context.Background(), liveReq(), domain.Bar{})
	if !errors.Is(err, ErrReconciliationConflict) {
		t.Fatalf("got %v, want ErrReconciliationConflict", err)
	}
}

func TestLiveExecutorRejectsEmptyFill(t *testing.T) {
	p := &fakePlacer{placeAck: domain.OrderAck{
		Status: domain.OrderStatusFilled, ExecutedPrice: 0, ExecutedSize: 0,
	}}
	_, err := fastExecutor(p).Execute(context.Background(), liveReq(), domain.Bar{})
	if !errors.Is(err, ErrReconciliationConflict) {
		t.Fatalf("got %v, want ErrReconciliationConflict", err)
	}
}

func TestLiveExecutorRejectsBadSize(t *testing.T) {
	p := &fakePlacer{}
	req := liveReq()
	req.Size = 0
	_, err := fastExecutor(p).Execute(context.Background(), req, domain.Bar{})
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("got %v, want ErrInvalidOrder", err)
	}
	if p.placeCalls != 0 {
		t.Errorf("place calls = %d, want 0", p.placeCalls)
	}
}
