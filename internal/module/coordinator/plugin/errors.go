package plugin

import "errors"

// FinancialError indicates the gateway processed the request and declined
// it. The adapter is expected to have written the decline details onto the
// transaction before returning it.
type FinancialError struct {
	Msg string
}

func NewFinancialError(msg string) *FinancialError {
	return &FinancialError{Msg: msg}
}

func (e *FinancialError) Error() string {
	if e.Msg == "" {
		return "financial error"
	}
	return e.Msg
}

// TimeoutError indicates the outcome of the request is not yet known. The
// attempt stays pending and may be retried later with the same transaction.
type TimeoutError struct {
	Msg string
}

func NewTimeoutError(msg string) *TimeoutError {
	return &TimeoutError{Msg: msg}
}

func (e *TimeoutError) Error() string {
	if e.Msg == "" {
		return "timeout"
	}
	return e.Msg
}

// FunctionNotSupportedError is returned by adapters for operations the
// underlying gateway cannot perform.
type FunctionNotSupportedError struct {
	Function string
}

func NewFunctionNotSupportedError(function string) *FunctionNotSupportedError {
	return &FunctionNotSupportedError{Function: function}
}

func (e *FunctionNotSupportedError) Error() string {
	return "function not supported: " + e.Function
}

// InvalidPaymentInstructionError reports why an instruction failed
// validation, with per-field messages keyed by extended data name and
// messages that apply to the instruction as a whole.
type InvalidPaymentInstructionError struct {
	DataErrors   map[string]string
	GlobalErrors []string
}

func (e *InvalidPaymentInstructionError) Error() string {
	return "invalid payment instruction"
}

// IsFinancialError reports whether err is or wraps a FinancialError.
func IsFinancialError(err error) bool {
	var fe *FinancialError
	return errors.As(err, &fe)
}

// IsTimeoutError reports whether err is or wraps a TimeoutError.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
