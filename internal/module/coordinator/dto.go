package coordinator

import (
	"time"

	"github.com/google/uuid"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
)

// CreateInstructionRequest represents a request to create a payment
// instruction.
type CreateInstructionRequest struct {
	Amount            float64        `json:"amount" binding:"required,gt=0"`
	Currency          string         `json:"currency" binding:"required,len=3"`
	PaymentSystemName string         `json:"payment_system_name" binding:"required"`
	ExtendedData      map[string]any `json:"extended_data,omitempty"`
}

// CreatePaymentRequest represents a request to create a payment under an
// instruction.
type CreatePaymentRequest struct {
	InstructionID uuid.UUID `json:"instruction_id" binding:"required"`
	TargetAmount  float64   `json:"target_amount" binding:"required,gt=0"`
}

// CreateCreditRequest represents a request to create a credit. A nil
// PaymentID creates an independent credit.
type CreateCreditRequest struct {
	InstructionID uuid.UUID  `json:"instruction_id" binding:"required"`
	PaymentID     *uuid.UUID `json:"payment_id,omitempty"`
	Amount        float64    `json:"amount" binding:"required,gt=0"`
}

// AmountRequest carries the amount for a money-moving operation.
type AmountRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// ResultResponse represents an operation outcome in API responses.
type ResultResponse struct {
	Status      string               `json:"status"`
	ReasonCode  string               `json:"reason_code,omitempty"`
	Recoverable bool                 `json:"recoverable"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

// TransactionResponse represents a financial transaction in API responses.
type TransactionResponse struct {
	ID              uuid.UUID `json:"id"`
	Type            string    `json:"type"`
	State           string    `json:"state"`
	RequestedAmount float64   `json:"requested_amount"`
	ProcessedAmount float64   `json:"processed_amount"`
	ResponseCode    string    `json:"response_code,omitempty"`
	ReasonCode      string    `json:"reason_code,omitempty"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	TrackingID      string    `json:"tracking_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID                       uuid.UUID `json:"id"`
	State                    string    `json:"state"`
	TargetAmount             float64   `json:"target_amount"`
	ApprovingAmount          float64   `json:"approving_amount"`
	ApprovedAmount           float64   `json:"approved_amount"`
	DepositingAmount         float64   `json:"depositing_amount"`
	DepositedAmount          float64   `json:"deposited_amount"`
	ReversingApprovedAmount  float64   `json:"reversing_approved_amount"`
	ReversingDepositedAmount float64   `json:"reversing_deposited_amount"`
	AttentionRequired        bool      `json:"attention_required"`
	CreatedAt                time.Time `json:"created_at"`
}

// CreditResponse represents a credit in API responses.
type CreditResponse struct {
	ID                uuid.UUID  `json:"id"`
	PaymentID         *uuid.UUID `json:"payment_id,omitempty"`
	State             string     `json:"state"`
	TargetAmount      float64    `json:"target_amount"`
	CreditingAmount   float64    `json:"crediting_amount"`
	CreditedAmount    float64    `json:"credited_amount"`
	ReversingAmount   float64    `json:"reversing_amount"`
	AttentionRequired bool       `json:"attention_required"`
	CreatedAt         time.Time  `json:"created_at"`
}

// InstructionResponse represents a payment instruction in API responses.
type InstructionResponse struct {
	ID                uuid.UUID          `json:"id"`
	Amount            float64            `json:"amount"`
	Currency          string             `json:"currency"`
	PaymentSystemName string             `json:"payment_system_name"`
	State             string             `json:"state"`
	ApprovingAmount   float64            `json:"approving_amount"`
	ApprovedAmount    float64            `json:"approved_amount"`
	DepositingAmount  float64            `json:"depositing_amount"`
	DepositedAmount   float64            `json:"deposited_amount"`
	CreditingAmount   float64            `json:"crediting_amount"`
	CreditedAmount    float64            `json:"credited_amount"`
	Payments          []*PaymentResponse `json:"payments"`
	Credits           []*CreditResponse  `json:"credits"`
	CreatedAt         time.Time          `json:"created_at"`
}

// ValidationErrorResponse carries field-level validation feedback.
type ValidationErrorResponse struct {
	DataErrors   map[string]string `json:"data_errors,omitempty"`
	GlobalErrors []string          `json:"global_errors,omitempty"`
}

// ResultToResponse converts an engine Result to its API representation.
func ResultToResponse(r *Result) *ResultResponse {
	resp := &ResultResponse{
		Status:      r.Status.String(),
		ReasonCode:  r.ReasonCode,
		Recoverable: r.Recoverable,
	}
	if r.Transaction != nil {
		resp.Transaction = TransactionToResponse(r.Transaction)
	}
	return resp
}

// TransactionToResponse converts a transaction to its API representation.
func TransactionToResponse(t *entity.FinancialTransaction) *TransactionResponse {
	return &TransactionResponse{
		ID:              t.ID,
		Type:            t.TransactionType.String(),
		State:           t.State.String(),
		RequestedAmount: t.RequestedAmount,
		ProcessedAmount: t.ProcessedAmount,
		ResponseCode:    t.ResponseCode,
		ReasonCode:      t.ReasonCode,
		ReferenceNumber: t.ReferenceNumber,
		TrackingID:      t.TrackingID,
		CreatedAt:       t.CreatedAt,
	}
}

// PaymentToResponse converts a payment to its API representation.
func PaymentToResponse(p *entity.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:                       p.ID,
		State:                    p.State.String(),
		TargetAmount:             p.TargetAmount,
		ApprovingAmount:          p.ApprovingAmount,
		ApprovedAmount:           p.ApprovedAmount,
		DepositingAmount:         p.DepositingAmount,
		DepositedAmount:          p.DepositedAmount,
		ReversingApprovedAmount:  p.ReversingApprovedAmount,
		ReversingDepositedAmount: p.ReversingDepositedAmount,
		AttentionRequired:        p.AttentionRequired,
		CreatedAt:                p.CreatedAt,
	}
}

// CreditToResponse converts a credit to its API representation.
func CreditToResponse(c *entity.Credit) *CreditResponse {
	resp := &CreditResponse{
		ID:                c.ID,
		State:             c.State.String(),
		TargetAmount:      c.TargetAmount,
		CreditingAmount:   c.CreditingAmount,
		CreditedAmount:    c.CreditedAmount,
		ReversingAmount:   c.ReversingAmount,
		AttentionRequired: c.AttentionRequired,
		CreatedAt:         c.CreatedAt,
	}
	if p := c.Payment(); p != nil {
		id := p.ID
		resp.PaymentID = &id
	}
	return resp
}

// InstructionToResponse converts an instruction aggregate to its API
// representation.
func InstructionToResponse(in *entity.PaymentInstruction) *InstructionResponse {
	resp := &InstructionResponse{
		ID:                in.ID,
		Amount:            in.Amount,
		Currency:          in.Currency,
		PaymentSystemName: in.PaymentSystemName,
		State:             in.State.String(),
		ApprovingAmount:   in.ApprovingAmount,
		ApprovedAmount:    in.ApprovedAmount,
		DepositingAmount:  in.DepositingAmount,
		DepositedAmount:   in.DepositedAmount,
		CreditingAmount:   in.CreditingAmount,
		CreditedAmount:    in.CreditedAmount,
		Payments:          make([]*PaymentResponse, 0, len(in.Payments())),
		Credits:           make([]*CreditResponse, 0, len(in.Credits())),
		CreatedAt:         in.CreatedAt,
	}
	for _, p := range in.Payments() {
		resp.Payments = append(resp.Payments, PaymentToResponse(p))
	}
	for _, c := range in.Credits() {
		resp.Credits = append(resp.Credits, CreditToResponse(c))
	}
	return resp
}
