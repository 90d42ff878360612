package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"marlin/internal/domain"
	"marlin/internal/exchange"
	"marlin/internal/util"
)

// Compile-time interface check.
var _ OrderExecutor = (*LiveExecutor)(nil)

// LiveExecutor routes orders to a real exchange and reconciles the response
// into a Fill. Submissions retry on transient errors; the client order ID
// stays fixed across retries so the venue deduplicates, and a resubmission
// after a lost response resolves to the already-placed order.
type LiveExecutor struct {
	placer       exchange.OrderPlacer
	feeRate      float64
	orderTimeout time.Duration
	pollInterval time.Duration
	maxAttempts  int
	log          *slog.Logger
}

// NewLiveExecutor creates an executor over the given order placer. feeRate
// estimates the venue's taker fee for fills whose fee the venue does not
// report per order.
func NewLiveExecutor(placer exchange.OrderPlacer, feeRate float64, orderTimeout time.Duration, log *slog.Logger) *LiveExecutor {
	if orderTimeout <= 0 {
		orderTimeout = 30 * time.Second
	}
	return &LiveExecutor{
		placer:       placer,
		feeRate:      feeRate,
		orderTimeout: orderTimeout,
		pollInterval: time.Second,
		maxAttempts:  4,
		log:          log,
	}
}

// Execute submits the order and blocks until it reaches a terminal state or
// the per-order timeout expires. A rejection is ErrInvalidOrder; a timeout is
// ErrExecutionTimeout; a confirmed fill that cannot be reconciled into a
// consistent Fill is ErrReconciliationConflict.
func (e *LiveExecutor) Execute(ctx context.Context, req domain.OrderRequest, bar domain.Bar) (domain.Fill, error) {
	if req.Size <= 0 || math.IsNaN(req.Size) {
		return domain.Fill{}, fmt.Errorf("%w: size %v", ErrInvalidOrder, req.Size)
	}

	ctx, cancel := context.WithTimeout(ctx, e.orderTimeout)
	defer cancel()

	var ack domain.OrderAck
	err := util.Retry(ctx, e.maxAttempts, 500*time.Millisecond, func() error {
		a, err := e.placer.PlaceOrder(ctx, req)
		if err != nil {
			e.log.Warn("order submission failed", "order_id", req.ID, "error", err)
			return err
		}
		if a.Status == domain.OrderStatusRejected {
			return util.Permanent(fmt.Errorf("%w: order %s rejected by exchange", ErrInvalidOrder, req.ID))
		}
		ack = a
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOrder) {
			return domain.Fill{}, err
		}
		// An errored submission may still have reached the venue with only
		// the response lost. Ask the venue about our client order ID before
		// surfacing the error; a fill found there is our fill.
		if ack, ok := e.recoverLostOrder(ctx, req); ok {
			return e.reconcile(req, ack)
		}
		if ctx.Err() != nil {
			return domain.Fill{}, fmt.Errorf("%w: order %s: %v", ErrExecutionTimeout, req.ID, err)
		}
		return domain.Fill{}, fmt.Errorf("submitting order %s: %w", req.ID, err)
	}

	if ack.Status == domain.OrderStatusPending {
		ack, err = e.awaitFill(ctx, req)
		if err != nil {
			return domain.Fill{}, err
		}
	}
	return e.reconcile(req, ack)
}

// recoverLostOrder checks whether an order whose submission responses were all
// lost nevertheless executed at the venue. The order-scoped deadline may have
// expired by now, so the lookup runs on its own short context.
func (e *LiveExecutor) recoverLostOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, bool) {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	ack, err := e.placer.OrderStatus(lctx, req.Symbol, req.ID)
	if err != nil || ack.Status != domain.OrderStatusFilled {
		return domain.OrderAck{}, false
	}
	e.log.Warn("recovered fill for order with lost submission response", "order_id", req.ID)
	return ack, true
}

// awaitFill polls order status until the order leaves the pending state.
func (e *LiveExecutor) awaitFill(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.OrderAck{}, fmt.Errorf("%w: order %s still pending", ErrExecutionTimeout, req.ID)
		case <-ticker.C:
		}

		ack, err := e.placer.OrderStatus(ctx, req.Symbol, req.ID)
		if err != nil {
			e.log.Warn("order status poll failed", "order_id", req.ID, "error", err)
			continue
		}
		switch ack.Status {
		case domain.OrderStatusFilled:
			return ack, nil
		case domain.OrderStatusRejected:
			return domain.OrderAck{}, fmt.Errorf("%w: order %s rejected by exchange", ErrInvalidOrder, req.ID)
		}
	}
}

// reconcile turns a terminal ack into the Fill the ledger will apply. The
// exchange's view is authoritative for price and size, but an ack that
// contradicts the request means the local book can no longer be trusted.
func (e *LiveExecutor) reconcile(req domain.OrderRequest, ack domain.OrderAck) (domain.Fill, error) {
	if ack.Status != domain.OrderStatusFilled {
		return domain.Fill{}, fmt.Errorf("%w: order %s in state %s after submission",
			ErrReconciliationConflict, req.ID, ack.Status)
	}
	if ack.OrderID != req.ID {
		return domain.Fill{}, fmt.Errorf("%w: ack for order %s carries id %s",
			ErrReconciliationConflict, req.ID, ack.OrderID)
	}
	if ack.ExecutedSize <= 0 || ack.ExecutedPrice <= 0 {
		return domain.Fill{}, fmt.Errorf("%w: order %s filled with size %v price %v",
			ErrReconciliationConflict, req.ID, ack.ExecutedSize, ack.ExecutedPrice)
	}

	fee := ack.Fee
	if fee == 0 {
		fee = ack.ExecutedPrice * ack.ExecutedSize * e.feeRate
	}
	return domain.Fill{
		OrderID:       req.ID,
		Symbol:        req.Symbol,
		Direction:     req.Direction,
		ExecutedPrice: ack.ExecutedPrice,
		Size:          ack.ExecutedSize,
		Fee:           fee,
		Timestamp:     time.Now().UTC(),
	}, nil
}
