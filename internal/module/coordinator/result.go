package coordinator

import "github.com/uniedit/paycore/internal/module/coordinator/entity"

// Status classifies the outcome of an engine operation.
type Status int

const (
	StatusUnknown Status = iota
	StatusSuccess
	StatusFailed
	StatusPending
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Result describes the outcome of a single engine operation. The anchored
// transaction gives access to the affected payment or credit and, through
// either, the instruction.
type Result struct {
	Transaction *entity.FinancialTransaction
	Status      Status
	ReasonCode  string

	// Recoverable is set when the attempt timed out and may be retried
	// with the same pending transaction.
	Recoverable bool

	// PluginError holds the adapter error that produced a failed or
	// pending outcome, when there was one.
	PluginError error
}

func newResult(t *entity.FinancialTransaction, status Status, reasonCode string) *Result {
	return &Result{Transaction: t, Status: status, ReasonCode: reasonCode}
}

// Payment returns the payment the result's transaction belongs to, or nil.
func (r *Result) Payment() *entity.Payment {
	if r.Transaction == nil {
		return nil
	}
	return r.Transaction.Payment()
}

// Credit returns the credit the result's transaction belongs to, or nil.
func (r *Result) Credit() *entity.Credit {
	if r.Transaction == nil {
		return nil
	}
	return r.Transaction.Credit()
}

// Instruction returns the payment instruction the result's transaction
// belongs to, or nil.
func (r *Result) Instruction() *entity.PaymentInstruction {
	if r.Transaction == nil {
		return nil
	}
	return r.Transaction.Instruction()
}
