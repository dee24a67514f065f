package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uniedit/paycore/internal/infra/persistence/entity"
	"github.com/uniedit/paycore/internal/module/coordinator"
	domain "github.com/uniedit/paycore/internal/module/coordinator/entity"
	"github.com/uniedit/paycore/internal/shared/metrics"
)

// InstructionRepository implements coordinator.InstructionStore on
// gorm/postgres. The instruction aggregate is written as a whole and read
// back with all payments, credits and transactions preloaded.
type InstructionRepository struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

// NewInstructionRepository creates a new instruction repository.
func NewInstructionRepository(db *gorm.DB, m *metrics.Metrics) *InstructionRepository {
	return &InstructionRepository{db: db, metrics: m}
}

// Migrate creates or updates the aggregate's tables.
func (r *InstructionRepository) Migrate() error {
	return r.db.AutoMigrate(
		&entity.PaymentInstructionEntity{},
		&entity.PaymentEntity{},
		&entity.CreditEntity{},
		&entity.FinancialTransactionEntity{},
	)
}

func (r *InstructionRepository) FindInstruction(ctx context.Context, id uuid.UUID) (*domain.PaymentInstruction, error) {
	defer r.observe("find_instruction", time.Now())

	var ent entity.PaymentInstructionEntity
	err := r.db.WithContext(ctx).
		Preload("Payments.Transactions").
		Preload("Credits.Transactions").
		First(&ent, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coordinator.ErrInstructionNotFound
		}
		return nil, fmt.Errorf("find instruction: %w", err)
	}
	return ent.ToDomain()
}

func (r *InstructionRepository) FindInstructionByPayment(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentInstruction, error) {
	defer r.observe("find_instruction_by_payment", time.Now())

	var row entity.PaymentEntity
	err := r.db.WithContext(ctx).
		Select("instruction_id").
		First(&row, "id = ?", paymentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coordinator.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find instruction by payment: %w", err)
	}
	return r.FindInstruction(ctx, row.InstructionID)
}

func (r *InstructionRepository) FindInstructionByCredit(ctx context.Context, creditID uuid.UUID) (*domain.PaymentInstruction, error) {
	defer r.observe("find_instruction_by_credit", time.Now())

	var row entity.CreditEntity
	err := r.db.WithContext(ctx).
		Select("instruction_id").
		First(&row, "id = ?", creditID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coordinator.ErrCreditNotFound
		}
		return nil, fmt.Errorf("find instruction by credit: %w", err)
	}
	return r.FindInstruction(ctx, row.InstructionID)
}

// SaveInstruction upserts the whole aggregate in one database transaction.
// OnPreSave hooks run before flattening so updated timestamps land in the
// rows.
func (r *InstructionRepository) SaveInstruction(ctx context.Context, in *domain.PaymentInstruction) error {
	defer r.observe("save_instruction", time.Now())

	in.OnPreSave()
	for _, p := range in.Payments() {
		p.OnPreSave()
		for _, t := range p.Transactions() {
			t.OnPreSave()
		}
	}
	for _, c := range in.Credits() {
		c.OnPreSave()
		for _, t := range c.Transactions() {
			t.OnPreSave()
		}
	}

	ent, err := entity.FromDomainInstruction(in)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}
		if err := tx.Omit("Payments", "Credits").Clauses(upsert).Create(ent).Error; err != nil {
			return fmt.Errorf("save instruction: %w", err)
		}
		for i := range ent.Payments {
			p := &ent.Payments[i]
			if err := tx.Omit("Transactions").Clauses(upsert).Create(p).Error; err != nil {
				return fmt.Errorf("save payment: %w", err)
			}
			for j := range p.Transactions {
				if err := tx.Clauses(upsert).Create(&p.Transactions[j]).Error; err != nil {
					return fmt.Errorf("save transaction: %w", err)
				}
			}
		}
		for i := range ent.Credits {
			c := &ent.Credits[i]
			if err := tx.Omit("Transactions").Clauses(upsert).Create(c).Error; err != nil {
				return fmt.Errorf("save credit: %w", err)
			}
			for j := range c.Transactions {
				if err := tx.Clauses(upsert).Create(&c.Transactions[j]).Error; err != nil {
					return fmt.Errorf("save transaction: %w", err)
				}
			}
		}
		return nil
	})
}

func (r *InstructionRepository) observe(operation string, start time.Time) {
	if r.metrics != nil {
		r.metrics.RecordDBQuery(operation, time.Since(start))
	}
}
