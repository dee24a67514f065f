package coordinator

import "errors"

var (
	// ErrNoPluginFound indicates no registered adapter processes the
	// instruction's payment system.
	ErrNoPluginFound = errors.New("no plugin found")

	// ErrInvalidInstruction indicates the payment instruction is in a
	// state that does not permit the requested operation.
	ErrInvalidInstruction = errors.New("invalid payment instruction")

	// ErrInvalidPayment indicates the payment is in a state that does
	// not permit the requested operation.
	ErrInvalidPayment = errors.New("invalid payment state")

	// ErrInvalidCredit indicates the credit is in a state that does not
	// permit the requested operation.
	ErrInvalidCredit = errors.New("invalid credit state")

	// ErrInvalidAmount indicates the requested amount violates the
	// ledger bounds for the operation.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInstructionNotFound indicates no stored instruction matches the
	// requested id.
	ErrInstructionNotFound = errors.New("payment instruction not found")

	// ErrPaymentNotFound indicates the payment does not belong to the
	// instruction it was looked up on.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrCreditNotFound indicates the credit does not belong to the
	// instruction it was looked up on.
	ErrCreditNotFound = errors.New("credit not found")

	// ErrIndependentCreditNotSupported indicates the adapter cannot pay
	// out funds that are not tied to a prior payment.
	ErrIndependentCreditNotSupported = errors.New("independent credit not supported")
)
