package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
)

// Test RSA key generation is not worth it here; the client only signs on
// outbound calls, so local behavior is exercised through a bare plugin value.
func newTestAlipayPlugin() *AlipayPlugin {
	return &AlipayPlugin{}
}

func TestAlipayPlugin_Processes(t *testing.T) {
	p := newTestAlipayPlugin()

	assert.True(t, p.Processes("alipay"))
	assert.False(t, p.Processes("stripe"))
	assert.False(t, p.IndependentCreditSupported())
}

func TestAlipayPlugin_CheckPaymentInstruction(t *testing.T) {
	p := newTestAlipayPlugin()

	t.Run("valid", func(t *testing.T) {
		data := entity.NewExtendedData()
		data.Set(alipayDataSubject, "Pro subscription")
		in := entity.NewPaymentInstruction(100, "CNY", "alipay", data)

		assert.NoError(t, p.CheckPaymentInstruction(context.Background(), in))
	})

	t.Run("lowercase currency accepted", func(t *testing.T) {
		data := entity.NewExtendedData()
		data.Set(alipayDataSubject, "Pro subscription")
		in := entity.NewPaymentInstruction(100, "cny", "alipay", data)

		assert.NoError(t, p.CheckPaymentInstruction(context.Background(), in))
	})

	t.Run("foreign currency rejected", func(t *testing.T) {
		data := entity.NewExtendedData()
		data.Set(alipayDataSubject, "Pro subscription")
		in := entity.NewPaymentInstruction(100, "USD", "alipay", data)

		err := p.CheckPaymentInstruction(context.Background(), in)

		var verr *plugin.InvalidPaymentInstructionError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.DataErrors, "currency")
	})

	t.Run("missing subject rejected", func(t *testing.T) {
		in := entity.NewPaymentInstruction(100, "CNY", "alipay", entity.NewExtendedData())

		err := p.CheckPaymentInstruction(context.Background(), in)

		var verr *plugin.InvalidPaymentInstructionError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.DataErrors, alipayDataSubject)
	})
}

func TestAlipayPlugin_ValidateMatchesCheck(t *testing.T) {
	p := newTestAlipayPlugin()
	in := entity.NewPaymentInstruction(100, "USD", "alipay", entity.NewExtendedData())

	checkErr := p.CheckPaymentInstruction(context.Background(), in)
	validateErr := p.ValidatePaymentInstruction(context.Background(), in)

	require.Error(t, checkErr)
	assert.Equal(t, checkErr.Error(), validateErr.Error())
}

func TestAlipayPlugin_UnsupportedCapabilities(t *testing.T) {
	p := newTestAlipayPlugin()
	tx := entity.NewFinancialTransaction()

	var nse *plugin.FunctionNotSupportedError
	assert.ErrorAs(t, p.Approve(context.Background(), tx, false), &nse)
	assert.ErrorAs(t, p.Deposit(context.Background(), tx, false), &nse)
	assert.ErrorAs(t, p.ReverseCredit(context.Background(), tx, false), &nse)
}

func TestAlipayPlugin_RecordFailure(t *testing.T) {
	p := newTestAlipayPlugin()

	t.Run("busy code retries", func(t *testing.T) {
		tx := entity.NewFinancialTransaction()

		err := p.recordFailure(tx, "20000", "Service Currently Unavailable")

		assert.True(t, plugin.IsTimeoutError(err))
		assert.Equal(t, plugin.ResponseCodePending, tx.ResponseCode)
	})

	t.Run("business error declines", func(t *testing.T) {
		tx := entity.NewFinancialTransaction()

		err := p.recordFailure(tx, "40004", "Business Failed")

		assert.True(t, plugin.IsFinancialError(err))
		assert.Equal(t, "failed", tx.ResponseCode)
		assert.Equal(t, plugin.ReasonCodeBlocked, tx.ReasonCode)
	})
}

func TestApprovedTradeNo(t *testing.T) {
	in := entity.NewPaymentInstruction(100, "CNY", "alipay", entity.NewExtendedData())
	pay := entity.NewPayment(in, 100)
	require.NoError(t, in.AddPayment(pay))

	_, err := approvedTradeNo(pay)
	assert.Error(t, err)

	tx := entity.NewFinancialTransaction()
	tx.TransactionType = entity.TransactionTypeApproveAndDeposit
	tx.TrackingID = tx.ID.String()
	pay.AddTransaction(tx)

	no, err := approvedTradeNo(pay)
	require.NoError(t, err)
	assert.Equal(t, tx.ID.String(), no)
}
