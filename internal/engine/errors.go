package engine

import "errors"

var (
	// ErrDataGap reports a missing or out-of-order bar. It is fatal to a
	// run: indicators computed past a gap are invalid.
	ErrDataGap = errors.New("data gap in bar series")

	// ErrInvalidOrder reports an order that cannot be executed: zero or
	// negative size, or a reference price stale relative to the bar.
	// Recovered locally by skipping the order.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrExecutionTimeout reports that a live order's confirmation never
	// arrived within the retry budget. Trading halts until an operator
	// intervenes.
	ErrExecutionTimeout = errors.New("order execution timed out")

	// ErrReconciliationConflict reports a fill confirmation that matches no
	// pending order. Fatal to live trading: the real and modeled positions
	// can no longer be trusted to agree.
	ErrReconciliationConflict = errors.New("fill reconciliation conflict")

	// ErrHalted reports that the live executor refuses new submissions
	// after an integrity failure.
	ErrHalted = errors.New("trading halted")
)
