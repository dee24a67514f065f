package entity

import (
	"time"

	"github.com/google/uuid"
)

// CreditState represents the state of a credit.
type CreditState int

const (
	CreditStateNew CreditState = iota
	CreditStateCrediting
	CreditStateCredited
	CreditStateCanceled
	CreditStateFailed
)

// String returns the state name.
func (s CreditState) String() string {
	switch s {
	case CreditStateNew:
		return "new"
	case CreditStateCrediting:
		return "crediting"
	case CreditStateCredited:
		return "credited"
	case CreditStateCanceled:
		return "canceled"
	case CreditStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Credit is a refund or payout against an instruction. A dependent credit is
// tied to one payment and draws from that payment's settled funds; an
// independent credit draws from the instruction's aggregate deposited funds.
type Credit struct {
	ID           uuid.UUID
	TargetAmount float64
	State        CreditState

	CreditingAmount float64
	CreditedAmount  float64
	ReversingAmount float64

	AttentionRequired bool
	CreatedAt         time.Time
	UpdatedAt         *time.Time

	instruction  *PaymentInstruction
	payment      *Payment
	transactions []*FinancialTransaction
}

// NewCredit creates a credit against the given instruction and registers it
// with the instruction's credit collection. The credit is independent until
// SetPayment binds it to a payment.
func NewCredit(instruction *PaymentInstruction, targetAmount float64) *Credit {
	c := &Credit{
		ID:           uuid.New(),
		TargetAmount: targetAmount,
		State:        CreditStateNew,
		CreatedAt:    time.Now(),
		instruction:  instruction,
	}
	instruction.credits = append(instruction.credits, c)
	return c
}

// Instruction returns the owning payment instruction.
func (c *Credit) Instruction() *PaymentInstruction {
	return c.instruction
}

// Payment returns the payment this credit depends on, or nil for independent
// credits.
func (c *Credit) Payment() *Payment {
	return c.payment
}

// SetPayment binds the credit to a payment, making it dependent. The payment
// must belong to the same instruction.
func (c *Credit) SetPayment(p *Payment) error {
	if p.Instruction() != c.instruction {
		return ErrDifferentInstruction
	}
	c.payment = p
	return nil
}

// IsIndependent reports whether the credit draws from the instruction's
// aggregate funds rather than a specific payment's.
func (c *Credit) IsIndependent() bool {
	return c.payment == nil
}

// AddTransaction registers a transaction with this credit and sets its
// back-reference.
func (c *Credit) AddTransaction(t *FinancialTransaction) {
	c.transactions = append(c.transactions, t)
	t.credit = c
}

// Transactions returns all transactions recorded against this credit.
func (c *Credit) Transactions() []*FinancialTransaction {
	return c.transactions
}

// PendingTransaction returns the single transaction currently awaiting
// resolution, or nil.
func (c *Credit) PendingTransaction() *FinancialTransaction {
	for _, t := range c.transactions {
		if t.State == TransactionStatePending {
			return t
		}
	}
	return nil
}

// HasPendingTransaction reports whether a pending transaction exists.
func (c *Credit) HasPendingTransaction() bool {
	return c.PendingTransaction() != nil
}

// CreditTransaction returns the credit transaction, or nil.
func (c *Credit) CreditTransaction() *FinancialTransaction {
	for _, t := range c.transactions {
		if t.TransactionType == TransactionTypeCredit {
			return t
		}
	}
	return nil
}

// ReverseCreditTransactions returns all credit-reversal transactions.
func (c *Credit) ReverseCreditTransactions() []*FinancialTransaction {
	var out []*FinancialTransaction
	for _, t := range c.transactions {
		if t.TransactionType == TransactionTypeReverseCredit {
			out = append(out, t)
		}
	}
	return out
}

// OnPreSave updates bookkeeping timestamps; the persistence collaborator
// calls it before writing.
func (c *Credit) OnPreSave() {
	now := time.Now()
	c.UpdatedAt = &now
}
