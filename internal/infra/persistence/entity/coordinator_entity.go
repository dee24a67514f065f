package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/uniedit/paycore/internal/module/coordinator/entity"
)

// PaymentInstructionEntity is the GORM model for the payment_instructions
// table.
type PaymentInstructionEntity struct {
	ID                uuid.UUID `gorm:"primaryKey;type:uuid"`
	Amount            float64   `gorm:"not null"`
	Currency          string    `gorm:"not null;size:3"`
	PaymentSystemName string    `gorm:"not null;index"`
	State             int       `gorm:"not null"`
	ExtendedData      []byte    `gorm:"type:jsonb"`

	ApprovingAmount          float64
	ApprovedAmount           float64
	DepositingAmount         float64
	DepositedAmount          float64
	CreditingAmount          float64
	CreditedAmount           float64
	ReversingApprovedAmount  float64
	ReversingCreditedAmount  float64
	ReversingDepositedAmount float64

	CreatedAt time.Time
	UpdatedAt *time.Time

	Payments []PaymentEntity `gorm:"foreignKey:InstructionID"`
	Credits  []CreditEntity  `gorm:"foreignKey:InstructionID"`
}

// TableName returns the database table name.
func (PaymentInstructionEntity) TableName() string {
	return "payment_instructions"
}

// PaymentEntity is the GORM model for the payments table.
type PaymentEntity struct {
	ID            uuid.UUID `gorm:"primaryKey;type:uuid"`
	InstructionID uuid.UUID `gorm:"not null;index;type:uuid"`
	TargetAmount  float64   `gorm:"not null"`
	State         int       `gorm:"not null"`

	ApprovingAmount          float64
	ApprovedAmount           float64
	DepositingAmount         float64
	DepositedAmount          float64
	CreditingAmount          float64
	CreditedAmount           float64
	ReversingApprovedAmount  float64
	ReversingCreditedAmount  float64
	ReversingDepositedAmount float64

	AttentionRequired bool
	Expired           bool
	ExpirationDate    *time.Time
	CreatedAt         time.Time
	UpdatedAt         *time.Time

	Transactions []FinancialTransactionEntity `gorm:"foreignKey:PaymentID"`
}

// TableName returns the database table name.
func (PaymentEntity) TableName() string {
	return "payments"
}

// CreditEntity is the GORM model for the credits table.
type CreditEntity struct {
	ID            uuid.UUID  `gorm:"primaryKey;type:uuid"`
	InstructionID uuid.UUID  `gorm:"not null;index;type:uuid"`
	PaymentID     *uuid.UUID `gorm:"index;type:uuid"`
	TargetAmount  float64    `gorm:"not null"`
	State         int        `gorm:"not null"`

	CreditingAmount float64
	CreditedAmount  float64
	ReversingAmount float64

	AttentionRequired bool
	CreatedAt         time.Time
	UpdatedAt         *time.Time

	Transactions []FinancialTransactionEntity `gorm:"foreignKey:CreditID"`
}

// TableName returns the database table name.
func (CreditEntity) TableName() string {
	return "credits"
}

// FinancialTransactionEntity is the GORM model for the
// financial_transactions table. A row belongs to either a payment or a
// credit, never both.
type FinancialTransactionEntity struct {
	ID              uuid.UUID  `gorm:"primaryKey;type:uuid"`
	PaymentID       *uuid.UUID `gorm:"index;type:uuid"`
	CreditID        *uuid.UUID `gorm:"index;type:uuid"`
	TransactionType int        `gorm:"not null"`
	State           int        `gorm:"not null;index"`
	RequestedAmount float64
	ProcessedAmount float64
	ResponseCode    string
	ReasonCode      string
	ReferenceNumber string
	TrackingID      string
	ExtendedData    []byte `gorm:"type:jsonb"`
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// TableName returns the database table name.
func (FinancialTransactionEntity) TableName() string {
	return "financial_transactions"
}

// extendedDataEntry is the serialized form of one extended data value.
type extendedDataEntry struct {
	Value   any  `json:"value"`
	Encrypt bool `json:"encrypt"`
}

func marshalExtendedData(data *domain.ExtendedData) ([]byte, error) {
	if data == nil || data.Len() == 0 {
		return nil, nil
	}
	entries := make(map[string]extendedDataEntry, data.Len())
	for _, key := range data.Keys() {
		persist, err := data.MayBePersisted(key)
		if err != nil {
			return nil, err
		}
		if !persist {
			continue
		}
		value, err := data.Get(key)
		if err != nil {
			return nil, err
		}
		encrypt, err := data.IsEncryptionRequired(key)
		if err != nil {
			return nil, err
		}
		entries[key] = extendedDataEntry{Value: value, Encrypt: encrypt}
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return json.Marshal(entries)
}

func unmarshalExtendedData(raw []byte) (*domain.ExtendedData, error) {
	data := domain.NewExtendedData()
	if len(raw) == 0 {
		return data, nil
	}
	var entries map[string]extendedDataEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal extended data: %w", err)
	}
	for key, entry := range entries {
		if err := data.SetWithOptions(key, entry.Value, entry.Encrypt, true); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// FromDomainInstruction flattens an instruction aggregate into row entities.
func FromDomainInstruction(in *domain.PaymentInstruction) (*PaymentInstructionEntity, error) {
	extended, err := marshalExtendedData(in.ExtendedData)
	if err != nil {
		return nil, fmt.Errorf("marshal instruction data: %w", err)
	}

	ent := &PaymentInstructionEntity{
		ID:                in.ID,
		Amount:            in.Amount,
		Currency:          in.Currency,
		PaymentSystemName: in.PaymentSystemName,
		State:             int(in.State),
		ExtendedData:      extended,

		ApprovingAmount:          in.ApprovingAmount,
		ApprovedAmount:           in.ApprovedAmount,
		DepositingAmount:         in.DepositingAmount,
		DepositedAmount:          in.DepositedAmount,
		CreditingAmount:          in.CreditingAmount,
		CreditedAmount:           in.CreditedAmount,
		ReversingApprovedAmount:  in.ReversingApprovedAmount,
		ReversingCreditedAmount:  in.ReversingCreditedAmount,
		ReversingDepositedAmount: in.ReversingDepositedAmount,

		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	}

	for _, p := range in.Payments() {
		pe, err := fromDomainPayment(in.ID, p)
		if err != nil {
			return nil, err
		}
		ent.Payments = append(ent.Payments, *pe)
	}
	for _, c := range in.Credits() {
		ce, err := fromDomainCredit(in.ID, c)
		if err != nil {
			return nil, err
		}
		ent.Credits = append(ent.Credits, *ce)
	}
	return ent, nil
}

func fromDomainPayment(instructionID uuid.UUID, p *domain.Payment) (*PaymentEntity, error) {
	ent := &PaymentEntity{
		ID:            p.ID,
		InstructionID: instructionID,
		TargetAmount:  p.TargetAmount,
		State:         int(p.State),

		ApprovingAmount:          p.ApprovingAmount,
		ApprovedAmount:           p.ApprovedAmount,
		DepositingAmount:         p.DepositingAmount,
		DepositedAmount:          p.DepositedAmount,
		CreditingAmount:          p.CreditingAmount,
		CreditedAmount:           p.CreditedAmount,
		ReversingApprovedAmount:  p.ReversingApprovedAmount,
		ReversingCreditedAmount:  p.ReversingCreditedAmount,
		ReversingDepositedAmount: p.ReversingDepositedAmount,

		AttentionRequired: p.AttentionRequired,
		Expired:           p.Expired,
		ExpirationDate:    p.ExpirationDate,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	for _, t := range p.Transactions() {
		te, err := fromDomainTransaction(t)
		if err != nil {
			return nil, err
		}
		id := p.ID
		te.PaymentID = &id
		ent.Transactions = append(ent.Transactions, *te)
	}
	return ent, nil
}

func fromDomainCredit(instructionID uuid.UUID, c *domain.Credit) (*CreditEntity, error) {
	ent := &CreditEntity{
		ID:            c.ID,
		InstructionID: instructionID,
		TargetAmount:  c.TargetAmount,
		State:         int(c.State),

		CreditingAmount: c.CreditingAmount,
		CreditedAmount:  c.CreditedAmount,
		ReversingAmount: c.ReversingAmount,

		AttentionRequired: c.AttentionRequired,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	if p := c.Payment(); p != nil {
		id := p.ID
		ent.PaymentID = &id
	}
	for _, t := range c.Transactions() {
		te, err := fromDomainTransaction(t)
		if err != nil {
			return nil, err
		}
		id := c.ID
		te.CreditID = &id
		ent.Transactions = append(ent.Transactions, *te)
	}
	return ent, nil
}

func fromDomainTransaction(t *domain.FinancialTransaction) (*FinancialTransactionEntity, error) {
	extended, err := marshalExtendedData(t.ExtendedData)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction data: %w", err)
	}
	return &FinancialTransactionEntity{
		ID:              t.ID,
		TransactionType: int(t.TransactionType),
		State:           int(t.State),
		RequestedAmount: t.RequestedAmount,
		ProcessedAmount: t.ProcessedAmount,
		ResponseCode:    t.ResponseCode,
		ReasonCode:      t.ReasonCode,
		ReferenceNumber: t.ReferenceNumber,
		TrackingID:      t.TrackingID,
		ExtendedData:    extended,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}, nil
}

// ToDomain rebuilds the instruction aggregate with its object graph wired,
// reattaching payments, credits, transactions and credit-payment links.
func (e *PaymentInstructionEntity) ToDomain() (*domain.PaymentInstruction, error) {
	extended, err := unmarshalExtendedData(e.ExtendedData)
	if err != nil {
		return nil, err
	}

	in := domain.NewPaymentInstruction(e.Amount, e.Currency, e.PaymentSystemName, extended)
	in.ID = e.ID
	in.State = domain.InstructionState(e.State)
	in.ApprovingAmount = e.ApprovingAmount
	in.ApprovedAmount = e.ApprovedAmount
	in.DepositingAmount = e.DepositingAmount
	in.DepositedAmount = e.DepositedAmount
	in.CreditingAmount = e.CreditingAmount
	in.CreditedAmount = e.CreditedAmount
	in.ReversingApprovedAmount = e.ReversingApprovedAmount
	in.ReversingCreditedAmount = e.ReversingCreditedAmount
	in.ReversingDepositedAmount = e.ReversingDepositedAmount
	in.CreatedAt = e.CreatedAt
	in.UpdatedAt = e.UpdatedAt

	payments := make(map[uuid.UUID]*domain.Payment, len(e.Payments))
	for i := range e.Payments {
		p, err := e.Payments[i].toDomain(in)
		if err != nil {
			return nil, err
		}
		payments[p.ID] = p
	}

	for i := range e.Credits {
		if _, err := e.Credits[i].toDomain(in, payments); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (e *PaymentEntity) toDomain(in *domain.PaymentInstruction) (*domain.Payment, error) {
	p := domain.NewPayment(in, e.TargetAmount)
	p.ID = e.ID
	p.State = domain.PaymentState(e.State)
	p.ApprovingAmount = e.ApprovingAmount
	p.ApprovedAmount = e.ApprovedAmount
	p.DepositingAmount = e.DepositingAmount
	p.DepositedAmount = e.DepositedAmount
	p.CreditingAmount = e.CreditingAmount
	p.CreditedAmount = e.CreditedAmount
	p.ReversingApprovedAmount = e.ReversingApprovedAmount
	p.ReversingCreditedAmount = e.ReversingCreditedAmount
	p.ReversingDepositedAmount = e.ReversingDepositedAmount
	p.AttentionRequired = e.AttentionRequired
	p.Expired = e.Expired
	p.ExpirationDate = e.ExpirationDate
	p.CreatedAt = e.CreatedAt
	p.UpdatedAt = e.UpdatedAt

	for i := range e.Transactions {
		t, err := e.Transactions[i].toDomain()
		if err != nil {
			return nil, err
		}
		p.AddTransaction(t)
	}
	return p, nil
}

func (e *CreditEntity) toDomain(in *domain.PaymentInstruction, payments map[uuid.UUID]*domain.Payment) (*domain.Credit, error) {
	c := domain.NewCredit(in, e.TargetAmount)
	c.ID = e.ID
	c.State = domain.CreditState(e.State)
	c.CreditingAmount = e.CreditingAmount
	c.CreditedAmount = e.CreditedAmount
	c.ReversingAmount = e.ReversingAmount
	c.AttentionRequired = e.AttentionRequired
	c.CreatedAt = e.CreatedAt
	c.UpdatedAt = e.UpdatedAt

	if e.PaymentID != nil {
		p, ok := payments[*e.PaymentID]
		if !ok {
			return nil, fmt.Errorf("credit %s references unknown payment %s", e.ID, e.PaymentID)
		}
		if err := c.SetPayment(p); err != nil {
			return nil, err
		}
	}

	for i := range e.Transactions {
		t, err := e.Transactions[i].toDomain()
		if err != nil {
			return nil, err
		}
		c.AddTransaction(t)
	}
	return c, nil
}

func (e *FinancialTransactionEntity) toDomain() (*domain.FinancialTransaction, error) {
	extended, err := unmarshalExtendedData(e.ExtendedData)
	if err != nil {
		return nil, err
	}
	t := domain.NewFinancialTransaction()
	t.ID = e.ID
	t.TransactionType = domain.TransactionType(e.TransactionType)
	t.State = domain.TransactionState(e.State)
	t.RequestedAmount = e.RequestedAmount
	t.ProcessedAmount = e.ProcessedAmount
	t.ResponseCode = e.ResponseCode
	t.ReasonCode = e.ReasonCode
	t.ReferenceNumber = e.ReferenceNumber
	t.TrackingID = e.TrackingID
	t.ExtendedData = extended
	t.CreatedAt = e.CreatedAt
	t.UpdatedAt = e.UpdatedAt
	return t, nil
}
