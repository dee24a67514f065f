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

// stubPlugin returns canned errors so breaker behavior can be driven
// deterministically.
type stubPlugin struct {
	approveErr error
	calls      int
}

func (s *stubPlugin) Processes(name string) bool       { return name == "stub" }
func (s *stubPlugin) IndependentCreditSupported() bool { return true }

func (s *stubPlugin) Approve(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	s.calls++
	return s.approveErr
}

func (s *stubPlugin) ApproveAndDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return nil
}
func (s *stubPlugin) Deposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return nil
}
func (s *stubPlugin) Credit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return nil
}
func (s *stubPlugin) ReverseApproval(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return nil
}
func (s *stubPlugin) ReverseCredit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return nil
}
func (s *stubPlugin) ReverseDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return nil
}
func (s *stubPlugin) CheckPaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error {
	return nil
}
func (s *stubPlugin) ValidatePaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error {
	return nil
}

func TestBreakerPlugin_DelegatesIdentity(t *testing.T) {
	b := NewBreakerPlugin(&stubPlugin{}, "stub", nil, nil)

	assert.True(t, b.Processes("stub"))
	assert.False(t, b.Processes("other"))
	assert.True(t, b.IndependentCreditSupported())
}

func TestBreakerPlugin_PassesThroughSuccess(t *testing.T) {
	stub := &stubPlugin{}
	b := NewBreakerPlugin(stub, "stub", nil, nil)

	err := b.Approve(context.Background(), entity.NewFinancialTransaction(), false)

	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestBreakerPlugin_DeclinesDoNotTrip(t *testing.T) {
	stub := &stubPlugin{approveErr: plugin.NewFinancialError("card declined")}
	b := NewBreakerPlugin(stub, "stub", nil, nil)

	for i := 0; i < 20; i++ {
		err := b.Approve(context.Background(), entity.NewFinancialTransaction(), false)
		require.True(t, plugin.IsFinancialError(err))
	}
	assert.Equal(t, 20, stub.calls, "every decline should reach the gateway")
}

func TestBreakerPlugin_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubPlugin{approveErr: errors.New("connection reset")}
	b := NewBreakerPlugin(stub, "stub", nil, nil)

	for i := 0; i < 5; i++ {
		err := b.Approve(context.Background(), entity.NewFinancialTransaction(), false)
		require.Error(t, err)
		require.False(t, plugin.IsTimeoutError(err))
	}

	err := b.Approve(context.Background(), entity.NewFinancialTransaction(), false)

	assert.True(t, plugin.IsTimeoutError(err), "open circuit should look like a timeout")
	assert.Equal(t, 5, stub.calls, "open circuit must not reach the gateway")
}

func TestCallOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "success"},
		{"financial", plugin.NewFinancialError("declined"), "decline"},
		{"timeout", plugin.NewTimeoutError("gateway busy"), "timeout"},
		{"other", errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, callOutcome(tt.err))
		})
	}
}
