package entity

import (
	"time"

	"github.com/google/uuid"
)

// PaymentState represents the state of a payment.
type PaymentState int

const (
	PaymentStateNew PaymentState = iota
	PaymentStateApproving
	PaymentStateApproved
	PaymentStateDepositing
	PaymentStateDeposited
	PaymentStateCanceled
	PaymentStateExpired
	PaymentStateFailed
)

// String returns the state name.
func (s PaymentState) String() string {
	switch s {
	case PaymentStateNew:
		return "new"
	case PaymentStateApproving:
		return "approving"
	case PaymentStateApproved:
		return "approved"
	case PaymentStateDepositing:
		return "depositing"
	case PaymentStateDeposited:
		return "deposited"
	case PaymentStateCanceled:
		return "canceled"
	case PaymentStateExpired:
		return "expired"
	case PaymentStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Payment is one attempt to collect up to TargetAmount against an
// instruction. Its pending buckets plus settled buckets never exceed
// TargetAmount; every bucket delta applied here is mirrored on the owning
// instruction by the coordinator.
type Payment struct {
	ID           uuid.UUID
	TargetAmount float64
	State        PaymentState

	ApprovingAmount          float64
	ApprovedAmount           float64
	DepositingAmount         float64
	DepositedAmount          float64
	CreditingAmount          float64
	CreditedAmount           float64
	ReversingApprovedAmount  float64
	ReversingCreditedAmount  float64
	ReversingDepositedAmount float64

	AttentionRequired bool
	Expired           bool
	ExpirationDate    *time.Time
	CreatedAt         time.Time
	UpdatedAt         *time.Time

	instruction  *PaymentInstruction
	transactions []*FinancialTransaction
}

// NewPayment creates a payment against the given instruction and registers
// it with the instruction's payment collection.
func NewPayment(instruction *PaymentInstruction, targetAmount float64) *Payment {
	p := &Payment{
		ID:           uuid.New(),
		TargetAmount: targetAmount,
		State:        PaymentStateNew,
		CreatedAt:    time.Now(),
		instruction:  instruction,
	}
	instruction.payments = append(instruction.payments, p)
	return p
}

// Instruction returns the owning payment instruction.
func (p *Payment) Instruction() *PaymentInstruction {
	return p.instruction
}

// AddTransaction registers a transaction with this payment and sets its
// back-reference.
func (p *Payment) AddTransaction(t *FinancialTransaction) {
	p.transactions = append(p.transactions, t)
	t.payment = p
}

// Transactions returns all transactions recorded against this payment.
func (p *Payment) Transactions() []*FinancialTransaction {
	return p.transactions
}

// PendingTransaction returns the single transaction currently awaiting
// resolution, or nil. It is the anchor for retries.
func (p *Payment) PendingTransaction() *FinancialTransaction {
	for _, t := range p.transactions {
		if t.State == TransactionStatePending {
			return t
		}
	}
	return nil
}

// HasPendingTransaction reports whether a pending transaction exists.
func (p *Payment) HasPendingTransaction() bool {
	return p.PendingTransaction() != nil
}

// ApproveTransaction returns the approval transaction (plain or combined
// approve-and-deposit), or nil.
func (p *Payment) ApproveTransaction() *FinancialTransaction {
	for _, t := range p.transactions {
		if t.TransactionType == TransactionTypeApprove || t.TransactionType == TransactionTypeApproveAndDeposit {
			return t
		}
	}
	return nil
}

// DepositTransactions returns all deposit transactions.
func (p *Payment) DepositTransactions() []*FinancialTransaction {
	return p.transactionsOfType(TransactionTypeDeposit)
}

// ReverseApprovalTransactions returns all approval-reversal transactions.
func (p *Payment) ReverseApprovalTransactions() []*FinancialTransaction {
	return p.transactionsOfType(TransactionTypeReverseApproval)
}

// ReverseDepositTransactions returns all deposit-reversal transactions.
func (p *Payment) ReverseDepositTransactions() []*FinancialTransaction {
	return p.transactionsOfType(TransactionTypeReverseDeposit)
}

func (p *Payment) transactionsOfType(typ TransactionType) []*FinancialTransaction {
	var out []*FinancialTransaction
	for _, t := range p.transactions {
		if t.TransactionType == typ {
			out = append(out, t)
		}
	}
	return out
}

// IsExpired reports whether the payment is expired, either explicitly or by
// its expiration date.
func (p *Payment) IsExpired() bool {
	if p.Expired {
		return true
	}
	if p.ExpirationDate != nil {
		return p.ExpirationDate.Before(time.Now())
	}
	return false
}

// OnPreSave updates bookkeeping timestamps; the persistence collaborator
// calls it before writing.
func (p *Payment) OnPreSave() {
	now := time.Now()
	p.UpdatedAt = &now
}
