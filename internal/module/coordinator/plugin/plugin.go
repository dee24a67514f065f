// Package plugin defines the contract between the coordination engine and
// payment gateway adapters. An adapter mutates the transaction it is handed
// (response code, reason code, processed amount, tracking id) and signals its
// outcome through the returned error: nil for a normal return, FinancialError
// for a gateway decline, TimeoutError for a recoverable pending condition.
// Any other error is fatal and propagated to the caller unmodified.
package plugin

import (
	"context"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
)

// Response codes written onto transactions by adapters.
const (
	ResponseCodeSuccess = "success"
	ResponseCodePending = "pending"
)

// Reason codes carried by transactions and results.
const (
	ReasonCodeSuccess        = "none"
	ReasonCodeTimeout        = "timeout"
	ReasonCodeBlocked        = "blocked"
	ReasonCodeInvalidData    = "invalid_data"
	ReasonCodeActionRequired = "action_required"
)

// Plugin is the capability set a gateway adapter exposes to the engine.
// Every money-moving method receives the transaction anchoring the attempt
// and a retry flag telling the adapter whether this transaction was
// dispatched before.
type Plugin interface {
	// Processes reports whether this adapter handles the given payment
	// system. The registry binds the first adapter that returns true.
	Processes(paymentSystemName string) bool

	Approve(ctx context.Context, t *entity.FinancialTransaction, retry bool) error
	ApproveAndDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error
	Deposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error
	Credit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error
	ReverseApproval(ctx context.Context, t *entity.FinancialTransaction, retry bool) error
	ReverseCredit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error
	ReverseDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error

	// CheckPaymentInstruction performs fast, local validation of a new
	// instruction (amount bounds, currency support, required extended
	// data). A *InvalidPaymentInstructionError return carries field-level
	// feedback for the caller.
	CheckPaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error

	// ValidatePaymentInstruction performs full validation, possibly
	// involving the gateway.
	ValidatePaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error

	// IndependentCreditSupported reports whether the gateway can pay out
	// funds that are not tied to a specific prior payment.
	IndependentCreditSupported() bool
}
