package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
	"github.com/uniedit/paycore/internal/shared/metrics"
)

// BreakerPlugin wraps another plugin with a circuit breaker per gateway.
// Declines count as healthy responses; only infrastructure failures trip the
// breaker. While the circuit is open every call reports a timeout, which
// keeps the affected operations in their retryable pending state.
type BreakerPlugin struct {
	inner   plugin.Plugin
	name    string
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewBreakerPlugin wraps inner, using name for breaker identity and metric
// labels.
func NewBreakerPlugin(inner plugin.Plugin, name string, m *metrics.Metrics, logger *zap.Logger) *BreakerPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BreakerPlugin{
		inner:   inner,
		name:    name,
		metrics: m,
		logger:  logger,
	}
	b.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:     name,
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || plugin.IsFinancialError(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logger.Warn("gateway breaker state changed",
				zap.String("gateway", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return b
}

func (b *BreakerPlugin) Processes(paymentSystemName string) bool {
	return b.inner.Processes(paymentSystemName)
}

func (b *BreakerPlugin) IndependentCreditSupported() bool {
	return b.inner.IndependentCreditSupported()
}

func (b *BreakerPlugin) Approve(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return b.call(ctx, "approve", func() error { return b.inner.Approve(ctx, t, retry) })
}

func (b *BreakerPlugin) ApproveAndDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return b.call(ctx, "approve_and_deposit", func() error { return b.inner.ApproveAndDeposit(ctx, t, retry) })
}

func (b *BreakerPlugin) Deposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return b.call(ctx, "deposit", func() error { return b.inner.Deposit(ctx, t, retry) })
}

func (b *BreakerPlugin) Credit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return b.call(ctx, "credit", func() error { return b.inner.Credit(ctx, t, retry) })
}

func (b *BreakerPlugin) ReverseApproval(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return b.call(ctx, "reverse_approval", func() error { return b.inner.ReverseApproval(ctx, t, retry) })
}

func (b *BreakerPlugin) ReverseCredit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return b.call(ctx, "reverse_credit", func() error { return b.inner.ReverseCredit(ctx, t, retry) })
}

func (b *BreakerPlugin) ReverseDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return b.call(ctx, "reverse_deposit", func() error { return b.inner.ReverseDeposit(ctx, t, retry) })
}

func (b *BreakerPlugin) CheckPaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error {
	return b.inner.CheckPaymentInstruction(ctx, in)
}

func (b *BreakerPlugin) ValidatePaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error {
	return b.call(ctx, "validate_instruction", func() error { return b.inner.ValidatePaymentInstruction(ctx, in) })
}

func (b *BreakerPlugin) call(ctx context.Context, capability string, fn func() error) error {
	start := time.Now()
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = plugin.NewTimeoutError("gateway circuit open")
	}
	if b.metrics != nil {
		b.metrics.RecordGatewayCall(b.name, capability, callOutcome(err), time.Since(start))
	}
	return err
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case plugin.IsFinancialError(err):
		return "decline"
	case plugin.IsTimeoutError(err):
		return "timeout"
	default:
		return "error"
	}
}
