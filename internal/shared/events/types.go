package events

import "github.com/google/uuid"

// State-change event type constants.
const (
	PaymentStateChangedType     = "PaymentStateChanged"
	CreditStateChangedType      = "CreditStateChanged"
	InstructionStateChangedType = "InstructionStateChanged"
)

// PaymentStateChangedEvent is emitted after the coordinator transitions a
// payment to a new state.
type PaymentStateChangedEvent struct {
	BaseEvent

	// PaymentID is the unique identifier of the payment.
	PaymentID uuid.UUID `json:"payment_id"`

	// InstructionID is the ID of the owning payment instruction.
	InstructionID uuid.UUID `json:"instruction_id"`

	// OldState is the state name before the transition.
	OldState string `json:"old_state"`

	// NewState is the state name after the transition.
	NewState string `json:"new_state"`
}

// NewPaymentStateChangedEvent creates a new PaymentStateChangedEvent.
func NewPaymentStateChangedEvent(paymentID, instructionID uuid.UUID, oldState, newState string) *PaymentStateChangedEvent {
	return &PaymentStateChangedEvent{
		BaseEvent:     NewBaseEvent(PaymentStateChangedType, paymentID, "Payment"),
		PaymentID:     paymentID,
		InstructionID: instructionID,
		OldState:      oldState,
		NewState:      newState,
	}
}

// CreditStateChangedEvent is emitted after the coordinator transitions a
// credit to a new state.
type CreditStateChangedEvent struct {
	BaseEvent

	// CreditID is the unique identifier of the credit.
	CreditID uuid.UUID `json:"credit_id"`

	// InstructionID is the ID of the owning payment instruction.
	InstructionID uuid.UUID `json:"instruction_id"`

	// Independent reports whether the credit draws from the instruction's
	// aggregate funds rather than a specific payment's.
	Independent bool `json:"independent"`

	// OldState is the state name before the transition.
	OldState string `json:"old_state"`

	// NewState is the state name after the transition.
	NewState string `json:"new_state"`
}

// NewCreditStateChangedEvent creates a new CreditStateChangedEvent.
func NewCreditStateChangedEvent(creditID, instructionID uuid.UUID, independent bool, oldState, newState string) *CreditStateChangedEvent {
	return &CreditStateChangedEvent{
		BaseEvent:     NewBaseEvent(CreditStateChangedType, creditID, "Credit"),
		CreditID:      creditID,
		InstructionID: instructionID,
		Independent:   independent,
		OldState:      oldState,
		NewState:      newState,
	}
}

// InstructionStateChangedEvent is emitted after the coordinator transitions
// a payment instruction to a new state.
type InstructionStateChangedEvent struct {
	BaseEvent

	// InstructionID is the unique identifier of the instruction.
	InstructionID uuid.UUID `json:"instruction_id"`

	// PaymentSystemName identifies the gateway handling the instruction.
	PaymentSystemName string `json:"payment_system_name"`

	// OldState is the state name before the transition.
	OldState string `json:"old_state"`

	// NewState is the state name after the transition.
	NewState string `json:"new_state"`
}

// NewInstructionStateChangedEvent creates a new InstructionStateChangedEvent.
func NewInstructionStateChangedEvent(instructionID uuid.UUID, paymentSystemName, oldState, newState string) *InstructionStateChangedEvent {
	return &InstructionStateChangedEvent{
		BaseEvent:         NewBaseEvent(InstructionStateChangedType, instructionID, "PaymentInstruction"),
		InstructionID:     instructionID,
		PaymentSystemName: paymentSystemName,
		OldState:          oldState,
		NewState:          newState,
	}
}
