package coordinator

import (
	"context"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
)

// Notifier receives state-change notifications emitted by the engine after
// it transitions an entity. Transitions that leave the state unchanged are
// not reported.
type Notifier interface {
	PaymentStateChanged(ctx context.Context, p *entity.Payment, oldState entity.PaymentState)
	CreditStateChanged(ctx context.Context, c *entity.Credit, oldState entity.CreditState)
	InstructionStateChanged(ctx context.Context, in *entity.PaymentInstruction, oldState entity.InstructionState)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) PaymentStateChanged(context.Context, *entity.Payment, entity.PaymentState) {}

func (NopNotifier) CreditStateChanged(context.Context, *entity.Credit, entity.CreditState) {}

func (NopNotifier) InstructionStateChanged(context.Context, *entity.PaymentInstruction, entity.InstructionState) {
}
