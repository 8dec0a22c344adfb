// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDataUnavailable    = errors.New("market data unavailable")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrSignalExpired      = errors.New("signal expired")
	ErrDuplicateSignal    = errors.New("duplicate signal")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrOrderNotWorking    = errors.New("order not in a working state")
	ErrOverfill           = errors.New("fill exceeds order quantity")
	ErrPositionNotFound   = errors.New("position not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoActiveSession    = errors.New("no active session")
	ErrSessionActive      = errors.New("session already active")
	ErrMarketClosed       = errors.New("market is closed")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDatabaseError      = errors.New("database error")
)

// DataError represents a market-data retrieval failure. The affected symbol
// is skipped; a scan never aborts on one of these.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// ValidationError represents a signal or input validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Reason  string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Action, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Action, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, symbol, action, reason string, err error) *OrderError {
	return &OrderError{
		OrderID: orderID,
		Symbol:  symbol,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// RiskError represents a position-sizing or risk-limit violation. The
// candidate is rejected before any execution request is issued.
type RiskError struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.2f, limit: %.2f)", e.Rule, e.Message, e.Current, e.Limit)
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// ExecutionError represents a rejection from the execution sink. No position
// is created; a still-fresh signal stays eligible for another attempt.
type ExecutionError struct {
	Symbol string
	Side   string
	Reason string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution rejected [%s %s]: %s: %v", e.Side, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("execution rejected [%s %s]: %s", e.Side, e.Symbol, e.Reason)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError creates a new ExecutionError.
func NewExecutionError(symbol, side, reason string, err error) *ExecutionError {
	return &ExecutionError{
		Symbol: symbol,
		Side:   side,
		Reason: reason,
		Err:    err,
	}
}

// StoreError represents a persistence failure. Fatal to the owning session:
// once a write cannot be confirmed, in-memory state can no longer be trusted.
type StoreError struct {
	Operation string
	Entity    string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s %s]: %v", e.Operation, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, entity string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Entity:    entity,
		Err:       err,
	}
}

// StateError represents an illegal session state transition. Rejected at the
// API boundary with no state change.
type StateError struct {
	SessionID string
	From      string
	To        string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal state transition [%s]: %s -> %s", e.SessionID, e.From, e.To)
}

// NewStateError creates a new StateError.
func NewStateError(sessionID, from, to string) *StateError {
	return &StateError{
		SessionID: sessionID,
		From:      from,
		To:        to,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
