package service

import (
	"errors"
	"fmt"
)

// Domain errors implement Code() string so the router can log a stable error
// code without inspecting concrete types.

// ErrSessionExpired is returned when a conversation references a session the
// reaper has already evicted.
var ErrSessionExpired = codedError{code: "session_expired", msg: "session expired, start over"}

// ErrNoSlotAvailable is returned when every generated delivery window is
// booked or in the past.
var ErrNoSlotAvailable = codedError{code: "no_slot_available", msg: "no delivery slot available"}

// ErrNoCourierAvailable is returned when scheduling finds no free courier for
// the chosen window.
var ErrNoCourierAvailable = codedError{code: "no_courier_available", msg: "no courier available for slot"}

type codedError struct {
	code string
	msg  string
}

func (e codedError) Error() string { return e.msg }

// Code returns the stable error code for logs.
func (e codedError) Code() string { return e.code }

// ValidationError rejects user input before it touches storage. Reason is
// shown to the user as-is; Cause carries internal detail for the logs.
type ValidationError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Code returns the stable error code for logs.
func (e *ValidationError) Code() string { return "validation" }

// Validatef builds a ValidationError with a formatted reason.
func Validatef(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StockError reports that a product cannot cover the requested quantity at
// commit time. Available carries what is left so the prompt can say so.
type StockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Name, e.Requested, e.Available)
}

// Code returns the stable error code for logs.
func (e *StockError) Code() string { return "stock_unavailable" }

// PaymentError reports a declined or failed payment capture. The pending
// order is cancelled by the checkout service before this surfaces.
type PaymentError struct {
	Method string
	Reason string
	Cause  error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment via %s failed: %s", e.Method, e.Reason)
}

func (e *PaymentError) Unwrap() error { return e.Cause }

// Code returns the stable error code for logs.
func (e *PaymentError) Code() string { return "payment_failed" }

// CollaboratorError wraps a failure in storage or an external gateway so the
// conversation can keep its step and drafts intact while reporting a retry.
type CollaboratorError struct {
	Op    string
	Cause error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *CollaboratorError) Unwrap() error { return e.Cause }

// Code returns the stable error code for logs.
func (e *CollaboratorError) Code() string { return "collaborator" }

// Collab wraps err as a CollaboratorError unless it already carries a domain
// code of its own.
func Collab(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return err
	}
	return &CollaboratorError{Op: op, Cause: err}
}
