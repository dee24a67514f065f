package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaymentInstruction(t *testing.T) {
	in := NewPaymentInstruction(100, "EUR", "test_gateway", nil)

	assert.Equal(t, InstructionStateNew, in.State)
	assert.Equal(t, "EUR", in.Currency)
	assert.NotNil(t, in.ExtendedData)
	assert.Empty(t, in.Payments())
	assert.Empty(t, in.Credits())
}

func TestNewPayment_RegistersWithInstruction(t *testing.T) {
	in := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	p := NewPayment(in, 100)

	assert.Same(t, in, p.Instruction())
	require.Len(t, in.Payments(), 1)
	assert.Same(t, p, in.Payments()[0])
	assert.Same(t, p, in.Payment(p.ID))
}

func TestAddPayment_RejectsForeignInstruction(t *testing.T) {
	a := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	b := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	p := NewPayment(a, 100)

	assert.ErrorIs(t, b.AddPayment(p), ErrDifferentInstruction)
	assert.Empty(t, b.Payments())
}

func TestAddCredit_RejectsForeignInstruction(t *testing.T) {
	a := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	b := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	c := NewCredit(a, 50)

	assert.ErrorIs(t, b.AddCredit(c), ErrDifferentInstruction)
}

func TestCredit_SetPaymentRejectsForeignInstruction(t *testing.T) {
	a := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	b := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	p := NewPayment(a, 100)
	c := NewCredit(b, 50)

	assert.ErrorIs(t, c.SetPayment(p), ErrDifferentInstruction)
	assert.True(t, c.IsIndependent())
}

func TestAddPayment_Idempotent(t *testing.T) {
	in := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	p := NewPayment(in, 100)

	require.NoError(t, in.AddPayment(p))
	assert.Len(t, in.Payments(), 1)
}

func TestPayment_PendingTransaction(t *testing.T) {
	in := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	p := NewPayment(in, 100)

	assert.Nil(t, p.PendingTransaction())
	assert.False(t, p.HasPendingTransaction())

	done := NewFinancialTransaction()
	done.TransactionType = TransactionTypeApprove
	done.State = TransactionStateSuccess
	p.AddTransaction(done)

	pending := NewFinancialTransaction()
	pending.TransactionType = TransactionTypeDeposit
	pending.State = TransactionStatePending
	p.AddTransaction(pending)

	assert.Same(t, pending, p.PendingTransaction())
	assert.Same(t, p, pending.Payment())
	assert.Same(t, in, pending.Instruction())
}

func TestInstruction_PendingTransactionSpansPaymentsAndCredits(t *testing.T) {
	in := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	NewPayment(in, 100)
	c := NewCredit(in, 20)

	assert.Nil(t, in.PendingTransaction())

	pending := NewFinancialTransaction()
	pending.TransactionType = TransactionTypeCredit
	pending.State = TransactionStatePending
	c.AddTransaction(pending)

	assert.Same(t, pending, in.PendingTransaction())
	assert.True(t, in.HasPendingTransaction())
	assert.Same(t, c, pending.Credit())
	assert.Nil(t, pending.Payment())
}

func TestPayment_TransactionLookups(t *testing.T) {
	in := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	p := NewPayment(in, 100)

	approve := NewFinancialTransaction()
	approve.TransactionType = TransactionTypeApprove
	p.AddTransaction(approve)

	deposit := NewFinancialTransaction()
	deposit.TransactionType = TransactionTypeDeposit
	p.AddTransaction(deposit)

	reversal := NewFinancialTransaction()
	reversal.TransactionType = TransactionTypeReverseDeposit
	p.AddTransaction(reversal)

	assert.Same(t, approve, p.ApproveTransaction())
	assert.Equal(t, []*FinancialTransaction{deposit}, p.DepositTransactions())
	assert.Equal(t, []*FinancialTransaction{reversal}, p.ReverseDepositTransactions())
	assert.Empty(t, p.ReverseApprovalTransactions())
}

func TestPayment_IsExpired(t *testing.T) {
	in := NewPaymentInstruction(100, "EUR", "test_gateway", nil)

	p := NewPayment(in, 100)
	assert.False(t, p.IsExpired())

	p.Expired = true
	assert.True(t, p.IsExpired())

	q := NewPayment(in, 100)
	past := time.Now().Add(-time.Hour)
	q.ExpirationDate = &past
	assert.True(t, q.IsExpired())

	future := time.Now().Add(time.Hour)
	q.ExpirationDate = &future
	assert.False(t, q.IsExpired())
}

func TestOnPreSave_SetsUpdatedAt(t *testing.T) {
	in := NewPaymentInstruction(100, "EUR", "test_gateway", nil)
	p := NewPayment(in, 100)
	tx := NewFinancialTransaction()

	require.Nil(t, in.UpdatedAt)
	in.OnPreSave()
	p.OnPreSave()
	tx.OnPreSave()

	assert.NotNil(t, in.UpdatedAt)
	assert.NotNil(t, p.UpdatedAt)
	assert.NotNil(t, tx.UpdatedAt)
}
