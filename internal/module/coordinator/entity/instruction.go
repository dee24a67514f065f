package entity

import (
	"time"

	"github.com/google/uuid"
)

// InstructionState represents the state of a payment instruction.
type InstructionState int

const (
	InstructionStateNew InstructionState = iota
	InstructionStateValid
	InstructionStateInvalid
	InstructionStateClosed
)

// String returns the state name.
func (s InstructionState) String() string {
	switch s {
	case InstructionStateNew:
		return "new"
	case InstructionStateValid:
		return "valid"
	case InstructionStateInvalid:
		return "invalid"
	case InstructionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PaymentInstruction is the root of one payment relationship. Each of its
// amount buckets equals the sum of the corresponding bucket across all of its
// payments and credits at all times; the coordinator maintains this by
// applying every bucket delta to both the acting entity and the instruction.
type PaymentInstruction struct {
	ID                uuid.UUID
	Amount            float64
	Currency          string
	PaymentSystemName string
	State             InstructionState
	ExtendedData      *ExtendedData

	ApprovingAmount          float64
	ApprovedAmount           float64
	DepositingAmount         float64
	DepositedAmount          float64
	CreditingAmount          float64
	CreditedAmount           float64
	ReversingApprovedAmount  float64
	ReversingCreditedAmount  float64
	ReversingDepositedAmount float64

	CreatedAt time.Time
	UpdatedAt *time.Time

	payments []*Payment
	credits  []*Credit
}

// NewPaymentInstruction creates an instruction in state NEW.
func NewPaymentInstruction(amount float64, currency, paymentSystemName string, data *ExtendedData) *PaymentInstruction {
	if data == nil {
		data = NewExtendedData()
	}
	return &PaymentInstruction{
		ID:                uuid.New(),
		Amount:            amount,
		Currency:          currency,
		PaymentSystemName: paymentSystemName,
		State:             InstructionStateNew,
		ExtendedData:      data,
		CreatedAt:         time.Now(),
	}
}

// Payments returns the instruction's payments.
func (in *PaymentInstruction) Payments() []*Payment {
	return in.payments
}

// Credits returns the instruction's credits.
func (in *PaymentInstruction) Credits() []*Credit {
	return in.credits
}

// AddPayment registers a payment constructed against this instruction.
// NewPayment registers automatically; AddPayment exists for re-attachment
// after loading and rejects payments built against another instruction.
func (in *PaymentInstruction) AddPayment(p *Payment) error {
	if p.Instruction() != in {
		return ErrDifferentInstruction
	}
	for _, existing := range in.payments {
		if existing == p {
			return nil
		}
	}
	in.payments = append(in.payments, p)
	return nil
}

// AddCredit registers a credit constructed against this instruction,
// rejecting credits built against another instruction.
func (in *PaymentInstruction) AddCredit(c *Credit) error {
	if c.Instruction() != in {
		return ErrDifferentInstruction
	}
	for _, existing := range in.credits {
		if existing == c {
			return nil
		}
	}
	in.credits = append(in.credits, c)
	return nil
}

// Payment returns the payment with the given id, or nil.
func (in *PaymentInstruction) Payment(id uuid.UUID) *Payment {
	for _, p := range in.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Credit returns the credit with the given id, or nil.
func (in *PaymentInstruction) Credit(id uuid.UUID) *Credit {
	for _, c := range in.credits {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// PendingTransaction returns the pending transaction of any of the
// instruction's payments or credits, or nil.
func (in *PaymentInstruction) PendingTransaction() *FinancialTransaction {
	for _, p := range in.payments {
		if t := p.PendingTransaction(); t != nil {
			return t
		}
	}
	for _, c := range in.credits {
		if t := c.PendingTransaction(); t != nil {
			return t
		}
	}
	return nil
}

// HasPendingTransaction reports whether any payment or credit of this
// instruction has a pending transaction.
func (in *PaymentInstruction) HasPendingTransaction() bool {
	return in.PendingTransaction() != nil
}

// OnPreSave updates bookkeeping timestamps; the persistence collaborator
// calls it before writing.
func (in *PaymentInstruction) OnPreSave() {
	now := time.Now()
	in.UpdatedAt = &now
}
