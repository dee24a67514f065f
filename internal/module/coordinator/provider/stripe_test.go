package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
)

func TestStripePlugin_Processes(t *testing.T) {
	p := NewStripePlugin(&StripeConfig{APIKey: "sk_test"})

	assert.True(t, p.Processes("stripe"))
	assert.False(t, p.Processes("alipay"))
	assert.False(t, p.IndependentCreditSupported())
}

func TestStripePlugin_CheckPaymentInstruction(t *testing.T) {
	p := NewStripePlugin(&StripeConfig{APIKey: "sk_test"})

	t.Run("valid", func(t *testing.T) {
		data := entity.NewExtendedData()
		data.Set(stripeDataPaymentMethod, "pm_123")
		in := entity.NewPaymentInstruction(100, "EUR", "stripe", data)

		assert.NoError(t, p.CheckPaymentInstruction(context.Background(), in))
	})

	t.Run("unsupported currency", func(t *testing.T) {
		data := entity.NewExtendedData()
		data.Set(stripeDataPaymentMethod, "pm_123")
		in := entity.NewPaymentInstruction(100, "XXX", "stripe", data)

		err := p.CheckPaymentInstruction(context.Background(), in)

		var verr *plugin.InvalidPaymentInstructionError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.DataErrors, "currency")
	})

	t.Run("missing payment method", func(t *testing.T) {
		in := entity.NewPaymentInstruction(100, "USD", "stripe", entity.NewExtendedData())

		err := p.CheckPaymentInstruction(context.Background(), in)

		var verr *plugin.InvalidPaymentInstructionError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.DataErrors, stripeDataPaymentMethod)
	})
}

func TestStripePlugin_CreditRejectsIndependentCredit(t *testing.T) {
	p := NewStripePlugin(&StripeConfig{APIKey: "sk_test"})
	in := entity.NewPaymentInstruction(100, "USD", "stripe", entity.NewExtendedData())
	cr := entity.NewCredit(in, 50)
	require.NoError(t, in.AddCredit(cr))

	tx := entity.NewFinancialTransaction()
	tx.TransactionType = entity.TransactionTypeCredit
	cr.AddTransaction(tx)

	err := p.Credit(context.Background(), tx, false)

	var nse *plugin.FunctionNotSupportedError
	assert.ErrorAs(t, err, &nse)
}

func TestApprovedIntentID(t *testing.T) {
	in := entity.NewPaymentInstruction(100, "USD", "stripe", entity.NewExtendedData())
	pay := entity.NewPayment(in, 100)
	require.NoError(t, in.AddPayment(pay))

	t.Run("no tracked intent", func(t *testing.T) {
		_, err := approvedIntentIDOf(pay)
		assert.Error(t, err)
	})

	t.Run("from approve transaction", func(t *testing.T) {
		tx := entity.NewFinancialTransaction()
		tx.TransactionType = entity.TransactionTypeApprove
		tx.TrackingID = "pi_approve"
		pay.AddTransaction(tx)

		id, err := approvedIntentIDOf(pay)

		require.NoError(t, err)
		assert.Equal(t, "pi_approve", id)
	})

	t.Run("from combined transaction", func(t *testing.T) {
		pay2 := entity.NewPayment(in, 100)
		require.NoError(t, in.AddPayment(pay2))
		tx := entity.NewFinancialTransaction()
		tx.TransactionType = entity.TransactionTypeApproveAndDeposit
		tx.TrackingID = "pi_combined"
		pay2.AddTransaction(tx)

		id, err := approvedIntentIDOf(pay2)

		require.NoError(t, err)
		assert.Equal(t, "pi_combined", id)
	})

	t.Run("nil payment", func(t *testing.T) {
		_, err := approvedIntentIDOf(nil)
		assert.Error(t, err)
	})
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10050), toMinorUnits(100.50))
	assert.Equal(t, int64(1), toMinorUnits(0.01))
	assert.Equal(t, int64(30), toMinorUnits(0.1+0.2))
	assert.InDelta(t, 100.50, fromMinorUnits(10050), 1e-9)
}

func TestStripePlugin_ReverseCreditNotSupported(t *testing.T) {
	p := NewStripePlugin(&StripeConfig{APIKey: "sk_test"})

	err := p.ReverseCredit(context.Background(), entity.NewFinancialTransaction(), false)

	var nse *plugin.FunctionNotSupportedError
	require.True(t, errors.As(err, &nse))
	assert.Contains(t, nse.Error(), "reverse credit")
}
