package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/uniedit/paycore/internal/module/coordinator/entity"
)

func buildAggregate(t *testing.T) *domain.PaymentInstruction {
	t.Helper()

	data := domain.NewExtendedData()
	data.Set("payment_method", "pm_123")
	require.NoError(t, data.SetWithOptions("cvv", "123", false, false))

	in := domain.NewPaymentInstruction(1000, "EUR", "stripe", data)
	in.State = domain.InstructionStateValid
	in.ApprovingAmount = 100
	in.DepositedAmount = 50

	pay := domain.NewPayment(in, 200)
	pay.State = domain.PaymentStateApproving
	pay.ApprovingAmount = 100
	pay.DepositedAmount = 50
	pay.AttentionRequired = true
	exp := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	pay.ExpirationDate = &exp

	tx := domain.NewFinancialTransaction()
	tx.TransactionType = domain.TransactionTypeApprove
	tx.State = domain.TransactionStatePending
	tx.RequestedAmount = 100
	tx.TrackingID = "pi_123"
	pay.AddTransaction(tx)

	cr := domain.NewCredit(in, 30)
	require.NoError(t, cr.SetPayment(pay))
	cr.State = domain.CreditStateCrediting
	cr.CreditingAmount = 30

	crTx := domain.NewFinancialTransaction()
	crTx.TransactionType = domain.TransactionTypeCredit
	crTx.State = domain.TransactionStatePending
	crTx.RequestedAmount = 30
	cr.AddTransaction(crTx)

	indep := domain.NewCredit(in, 10)
	indep.State = domain.CreditStateNew

	return in
}

func TestInstructionRoundTrip(t *testing.T) {
	in := buildAggregate(t)

	ent, err := FromDomainInstruction(in)
	require.NoError(t, err)

	restored, err := ent.ToDomain()
	require.NoError(t, err)

	assert.Equal(t, in.ID, restored.ID)
	assert.Equal(t, in.Amount, restored.Amount)
	assert.Equal(t, in.Currency, restored.Currency)
	assert.Equal(t, in.PaymentSystemName, restored.PaymentSystemName)
	assert.Equal(t, in.State, restored.State)
	assert.Equal(t, in.ApprovingAmount, restored.ApprovingAmount)
	assert.Equal(t, in.DepositedAmount, restored.DepositedAmount)

	require.Len(t, restored.Payments(), 1)
	pay := restored.Payments()[0]
	orig := in.Payments()[0]
	assert.Equal(t, orig.ID, pay.ID)
	assert.Equal(t, orig.State, pay.State)
	assert.Equal(t, orig.ApprovingAmount, pay.ApprovingAmount)
	assert.True(t, pay.AttentionRequired)
	require.NotNil(t, pay.ExpirationDate)
	assert.True(t, orig.ExpirationDate.Equal(*pay.ExpirationDate))
	assert.Same(t, restored, pay.Instruction())

	require.Len(t, pay.Transactions(), 1)
	tx := pay.Transactions()[0]
	assert.Equal(t, domain.TransactionTypeApprove, tx.TransactionType)
	assert.Equal(t, domain.TransactionStatePending, tx.State)
	assert.Equal(t, "pi_123", tx.TrackingID)
	assert.Same(t, pay, tx.Payment())
	assert.Same(t, restored, tx.Instruction())

	require.Len(t, restored.Credits(), 2)
	dep := restored.Credit(in.Credits()[0].ID)
	require.NotNil(t, dep)
	assert.False(t, dep.IsIndependent())
	assert.Same(t, pay, dep.Payment())
	require.Len(t, dep.Transactions(), 1)
	assert.Same(t, dep, dep.Transactions()[0].Credit())

	indep := restored.Credit(in.Credits()[1].ID)
	require.NotNil(t, indep)
	assert.True(t, indep.IsIndependent())
}

func TestInstructionRoundTrip_PendingTransactionSurvives(t *testing.T) {
	in := buildAggregate(t)

	ent, err := FromDomainInstruction(in)
	require.NoError(t, err)
	restored, err := ent.ToDomain()
	require.NoError(t, err)

	pending := restored.Payments()[0].PendingTransaction()
	require.NotNil(t, pending)
	assert.Equal(t, in.Payments()[0].PendingTransaction().ID, pending.ID)
}

func TestExtendedDataPersistenceFlags(t *testing.T) {
	data := domain.NewExtendedData()
	data.Set("keep", "value")
	require.NoError(t, data.SetWithOptions("secret", "s3cret", true, true))
	require.NoError(t, data.SetWithOptions("ephemeral", "gone", false, false))

	raw, err := marshalExtendedData(data)
	require.NoError(t, err)

	restored, err := unmarshalExtendedData(raw)
	require.NoError(t, err)

	v, err := restored.Get("keep")
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	encrypt, err := restored.IsEncryptionRequired("secret")
	require.NoError(t, err)
	assert.True(t, encrypt)

	assert.False(t, restored.Has("ephemeral"), "non-persistable values must not survive a save")
}

func TestMarshalExtendedData_Empty(t *testing.T) {
	raw, err := marshalExtendedData(domain.NewExtendedData())
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = marshalExtendedData(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	restored, err := unmarshalExtendedData(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.Len())
}
