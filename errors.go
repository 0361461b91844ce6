package tradecost

import (
	"errors"
	"fmt"
)

var (
	// ErrNonPositiveAmount is returned when an operation amount is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrNegativeAmount is returned when a valuation is negative.
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrCurrencyMismatch is returned when amounts in different currencies are combined.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrUnsupportedBucket is returned when aggregating on a period other than month, quarter or year.
	ErrUnsupportedBucket = errors.New("unsupported aggregation bucket")
	// ErrInvalidBenchmark is returned for a non positive industry reference.
	ErrInvalidBenchmark = errors.New("industry cost percentage must be positive")
	// ErrNotEffective is returned when pricing a month before a schedule takes effect.
	ErrNotEffective = errors.New("fee schedule not yet effective")
)

// IntegrityKind classifies a DataIntegrityError.
type IntegrityKind int

const (
	Oversell IntegrityKind = iota + 1
	InvalidQuantity
	InvalidPrice
	NegativeFee
	Chronology
	DuplicateTrade
	InvalidReversal
	CurrencyMismatch
	InvalidSide
	InstrumentMismatch
)

func (k IntegrityKind) String() string {
	switch k {
	case Oversell:
		return "oversell"
	case InvalidQuantity:
		return "invalid quantity"
	case InvalidPrice:
		return "invalid price"
	case NegativeFee:
		return "negative fee"
	case Chronology:
		return "chronology"
	case DuplicateTrade:
		return "duplicate trade"
	case InvalidReversal:
		return "invalid reversal"
	case CurrencyMismatch:
		return "currency mismatch"
	case InvalidSide:
		return "invalid side"
	case InstrumentMismatch:
		return "instrument mismatch"
	default:
		return "unknown"
	}
}

// DataIntegrityError reports a trade sequence that cannot be matched. It is
// fatal for the matching run of one instrument only.
type DataIntegrityError struct {
	InstrumentID string
	TradeID      int64
	Kind         IntegrityKind
	Shortfall    Quantity // set for Oversell
	Detail       string
}

func (e *DataIntegrityError) Error() string {
	msg := fmt.Sprintf("instrument %s: trade %d: %s", e.InstrumentID, e.TradeID, e.Kind)
	if e.Kind == Oversell {
		msg += fmt.Sprintf(" (shortfall %s)", e.Shortfall)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// InvalidScheduleError reports a malformed fee schedule, or a schedule with
// no tier for the requested amount.
type InvalidScheduleError struct {
	ScheduleID string
	Reason     string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid fee schedule %q: %s", e.ScheduleID, e.Reason)
}
