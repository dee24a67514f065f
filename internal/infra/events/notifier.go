package events

import (
	"context"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
	sharedevents "github.com/uniedit/paycore/internal/shared/events"
)

// BusNotifier adapts the event bus to the coordinator's Notifier interface.
// Events are published synchronously before the triggering operation returns.
type BusNotifier struct {
	bus *Bus
}

// NewBusNotifier creates a notifier publishing to the given bus.
func NewBusNotifier(bus *Bus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) PaymentStateChanged(ctx context.Context, p *entity.Payment, oldState entity.PaymentState) {
	n.bus.Publish(ctx, sharedevents.NewPaymentStateChangedEvent(
		p.ID,
		p.Instruction().ID,
		oldState.String(),
		p.State.String(),
	))
}

func (n *BusNotifier) CreditStateChanged(ctx context.Context, c *entity.Credit, oldState entity.CreditState) {
	n.bus.Publish(ctx, sharedevents.NewCreditStateChangedEvent(
		c.ID,
		c.Instruction().ID,
		c.IsIndependent(),
		oldState.String(),
		c.State.String(),
	))
}

func (n *BusNotifier) InstructionStateChanged(ctx context.Context, in *entity.PaymentInstruction, oldState entity.InstructionState) {
	n.bus.Publish(ctx, sharedevents.NewInstructionStateChangedEvent(
		in.ID,
		in.PaymentSystemName,
		oldState.String(),
		in.State.String(),
	))
}
