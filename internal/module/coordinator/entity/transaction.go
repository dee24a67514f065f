package entity

import (
	"time"

	"github.com/google/uuid"
)

// TransactionState represents the state of a financial transaction.
type TransactionState int

const (
	TransactionStateNew TransactionState = iota
	TransactionStatePending
	TransactionStateSuccess
	TransactionStateFailed
	TransactionStateCanceled
)

// String returns the state name.
func (s TransactionState) String() string {
	switch s {
	case TransactionStateNew:
		return "new"
	case TransactionStatePending:
		return "pending"
	case TransactionStateSuccess:
		return "success"
	case TransactionStateFailed:
		return "failed"
	case TransactionStateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// TransactionType identifies the gateway capability a transaction exercises.
// The zero value is intentionally invalid so an untyped transaction never
// matches a retry lookup.
type TransactionType int

const (
	TransactionTypeApprove TransactionType = iota + 1
	TransactionTypeApproveAndDeposit
	TransactionTypeCredit
	TransactionTypeDeposit
	TransactionTypeReverseApproval
	TransactionTypeReverseCredit
	TransactionTypeReverseDeposit
)

// String returns the type name.
func (t TransactionType) String() string {
	switch t {
	case TransactionTypeApprove:
		return "approve"
	case TransactionTypeApproveAndDeposit:
		return "approve_and_deposit"
	case TransactionTypeCredit:
		return "credit"
	case TransactionTypeDeposit:
		return "deposit"
	case TransactionTypeReverseApproval:
		return "reverse_approval"
	case TransactionTypeReverseCredit:
		return "reverse_credit"
	case TransactionTypeReverseDeposit:
		return "reverse_deposit"
	default:
		return "unknown"
	}
}

// FinancialTransaction records one gateway call attempt. It is created by the
// coordinator on the first attempt of an operation and reused on retries; it
// is never deleted, only transitioned.
type FinancialTransaction struct {
	ID              uuid.UUID
	TransactionType TransactionType
	State           TransactionState
	RequestedAmount float64
	ProcessedAmount float64
	ResponseCode    string
	ReasonCode      string
	ReferenceNumber string
	TrackingID      string
	ExtendedData    *ExtendedData
	CreatedAt       time.Time
	UpdatedAt       *time.Time

	payment *Payment
	credit  *Credit
}

// NewFinancialTransaction creates a transaction in state NEW.
func NewFinancialTransaction() *FinancialTransaction {
	return &FinancialTransaction{
		ID:        uuid.New(),
		State:     TransactionStateNew,
		CreatedAt: time.Now(),
	}
}

// Payment returns the owning payment, or nil for credit transactions.
func (t *FinancialTransaction) Payment() *Payment {
	return t.payment
}

// Credit returns the owning credit, or nil for payment transactions.
func (t *FinancialTransaction) Credit() *Credit {
	return t.credit
}

// Instruction returns the payment instruction this transaction ultimately
// belongs to, via its owning payment or credit.
func (t *FinancialTransaction) Instruction() *PaymentInstruction {
	if t.payment != nil {
		return t.payment.Instruction()
	}
	if t.credit != nil {
		return t.credit.Instruction()
	}
	return nil
}

// OnPreSave updates bookkeeping timestamps; the persistence collaborator
// calls it before writing.
func (t *FinancialTransaction) OnPreSave() {
	now := time.Now()
	t.UpdatedAt = &now
}
