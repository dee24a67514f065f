package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
	"github.com/uniedit/paycore/internal/shared/metrics"
)

// InstructionStore loads and saves the instruction aggregate (the
// instruction with all its payments, credits and transactions).
type InstructionStore interface {
	FindInstruction(ctx context.Context, id uuid.UUID) (*entity.PaymentInstruction, error)
	FindInstructionByPayment(ctx context.Context, paymentID uuid.UUID) (*entity.PaymentInstruction, error)
	FindInstructionByCredit(ctx context.Context, creditID uuid.UUID) (*entity.PaymentInstruction, error)
	SaveInstruction(ctx context.Context, in *entity.PaymentInstruction) error
}

// Locker serializes operations per instruction. The engine assumes
// single-writer semantics; this is where the host enforces them.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Service drives the engine for external callers: it loads the instruction
// aggregate under the instruction lock, locates the acting entity, invokes
// the engine, and persists the aggregate afterwards. The aggregate is saved
// even when the engine returns a fatal error, so retained reservations and
// pending transactions survive for operator investigation.
type Service struct {
	engine  *Coordinator
	store   InstructionStore
	locker  Locker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a new coordination service.
func NewService(engine *Coordinator, store InstructionStore, locker Locker, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		engine:  engine,
		store:   store,
		locker:  locker,
		metrics: m,
		logger:  logger,
	}
}

// CreateInstruction builds a new payment instruction, runs the adapter's
// instruction check, and persists the result. The instruction is saved in
// whichever state the check left it, VALID or INVALID.
func (s *Service) CreateInstruction(ctx context.Context, amount float64, currency, paymentSystemName string, data map[string]any) (*entity.PaymentInstruction, *Result, error) {
	ed := entity.NewExtendedData()
	for k, v := range data {
		ed.Set(k, v)
	}
	in := entity.NewPaymentInstruction(amount, currency, paymentSystemName, ed)

	res, err := s.engine.CheckPaymentInstruction(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.SaveInstruction(ctx, in); err != nil {
		return nil, nil, fmt.Errorf("save instruction: %w", err)
	}

	s.logger.Info("created payment instruction",
		zap.String("instruction_id", in.ID.String()),
		zap.String("payment_system", paymentSystemName),
		zap.String("state", in.State.String()))
	return in, res, nil
}

// GetInstruction loads an instruction aggregate.
func (s *Service) GetInstruction(ctx context.Context, id uuid.UUID) (*entity.PaymentInstruction, error) {
	return s.store.FindInstruction(ctx, id)
}

// ValidateInstruction runs the adapter's full validation on a stored
// instruction.
func (s *Service) ValidateInstruction(ctx context.Context, id uuid.UUID) (*Result, error) {
	var res *Result
	err := s.withInstruction(ctx, id, func(in *entity.PaymentInstruction) error {
		var opErr error
		res, opErr = s.engine.ValidatePaymentInstruction(ctx, in)
		return opErr
	})
	return res, err
}

// CloseInstruction transitions an instruction to CLOSED.
func (s *Service) CloseInstruction(ctx context.Context, id uuid.UUID) (*entity.PaymentInstruction, error) {
	var closed *entity.PaymentInstruction
	err := s.withInstruction(ctx, id, func(in *entity.PaymentInstruction) error {
		s.engine.ClosePaymentInstruction(ctx, in)
		closed = in
		return nil
	})
	return closed, err
}

// CreatePayment registers a new payment against an instruction.
func (s *Service) CreatePayment(ctx context.Context, instructionID uuid.UUID, targetAmount float64) (*entity.Payment, error) {
	var p *entity.Payment
	err := s.withInstruction(ctx, instructionID, func(in *entity.PaymentInstruction) error {
		p = entity.NewPayment(in, targetAmount)
		return nil
	})
	return p, err
}

// CreateCredit registers a new credit against an instruction. When paymentID
// is non-nil the credit is created dependent on that payment; otherwise it
// is independent.
func (s *Service) CreateCredit(ctx context.Context, instructionID uuid.UUID, paymentID *uuid.UUID, amount float64) (*entity.Credit, error) {
	var cr *entity.Credit
	err := s.withInstruction(ctx, instructionID, func(in *entity.PaymentInstruction) error {
		if paymentID == nil {
			cr = entity.NewCredit(in, amount)
			return nil
		}
		p := in.Payment(*paymentID)
		if p == nil {
			return fmt.Errorf("%w: %s", ErrPaymentNotFound, *paymentID)
		}
		var opErr error
		cr, opErr = s.engine.CreateDependentCredit(ctx, p, amount)
		return opErr
	})
	return cr, err
}

// Approve authorizes funds on a payment.
func (s *Service) Approve(ctx context.Context, paymentID uuid.UUID, amount float64) (*Result, error) {
	return s.paymentOperation(ctx, "approve", paymentID, amount, s.engine.Approve)
}

// ApproveAndDeposit authorizes and captures in one gateway call.
func (s *Service) ApproveAndDeposit(ctx context.Context, paymentID uuid.UUID, amount float64) (*Result, error) {
	return s.paymentOperation(ctx, "approve_and_deposit", paymentID, amount, s.engine.ApproveAndDeposit)
}

// Deposit captures previously approved funds.
func (s *Service) Deposit(ctx context.Context, paymentID uuid.UUID, amount float64) (*Result, error) {
	return s.paymentOperation(ctx, "deposit", paymentID, amount, s.engine.Deposit)
}

// ReverseApproval gives back approved funds.
func (s *Service) ReverseApproval(ctx context.Context, paymentID uuid.UUID, amount float64) (*Result, error) {
	return s.paymentOperation(ctx, "reverse_approval", paymentID, amount, s.engine.ReverseApproval)
}

// ReverseDeposit refunds deposited funds.
func (s *Service) ReverseDeposit(ctx context.Context, paymentID uuid.UUID, amount float64) (*Result, error) {
	return s.paymentOperation(ctx, "reverse_deposit", paymentID, amount, s.engine.ReverseDeposit)
}

// Credit pays out against a credit.
func (s *Service) Credit(ctx context.Context, creditID uuid.UUID, amount float64) (*Result, error) {
	return s.creditOperation(ctx, "credit", creditID, amount, s.engine.Credit)
}

// ReverseCredit takes back credited funds.
func (s *Service) ReverseCredit(ctx context.Context, creditID uuid.UUID, amount float64) (*Result, error) {
	return s.creditOperation(ctx, "reverse_credit", creditID, amount, s.engine.ReverseCredit)
}

func (s *Service) paymentOperation(
	ctx context.Context,
	name string,
	paymentID uuid.UUID,
	amount float64,
	op func(context.Context, *entity.Payment, float64) (*Result, error),
) (*Result, error) {
	start := time.Now()

	located, err := s.store.FindInstructionByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var res *Result
	err = s.withInstruction(ctx, located.ID, func(in *entity.PaymentInstruction) error {
		p := in.Payment(paymentID)
		if p == nil {
			return fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		var opErr error
		res, opErr = op(ctx, p, amount)
		return opErr
	})

	s.recordOperation(name, res, err, start)
	return res, err
}

func (s *Service) creditOperation(
	ctx context.Context,
	name string,
	creditID uuid.UUID,
	amount float64,
	op func(context.Context, *entity.Credit, float64) (*Result, error),
) (*Result, error) {
	start := time.Now()

	located, err := s.store.FindInstructionByCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}

	var res *Result
	err = s.withInstruction(ctx, located.ID, func(in *entity.PaymentInstruction) error {
		cr := in.Credit(creditID)
		if cr == nil {
			return fmt.Errorf("%w: %s", ErrCreditNotFound, creditID)
		}
		var opErr error
		res, opErr = op(ctx, cr, amount)
		return opErr
	})

	s.recordOperation(name, res, err, start)
	return res, err
}

// withInstruction runs fn on a freshly loaded aggregate under the
// instruction lock and persists the aggregate afterwards, regardless of
// whether fn failed.
func (s *Service) withInstruction(ctx context.Context, id uuid.UUID, fn func(in *entity.PaymentInstruction) error) error {
	release, err := s.locker.Acquire(ctx, "instruction:"+id.String())
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLockAcquisition("contended")
		}
		return fmt.Errorf("lock instruction %s: %w", id, err)
	}
	defer release()
	if s.metrics != nil {
		s.metrics.RecordLockAcquisition("acquired")
	}

	in, err := s.store.FindInstruction(ctx, id)
	if err != nil {
		return err
	}

	opErr := fn(in)

	if saveErr := s.store.SaveInstruction(ctx, in); saveErr != nil {
		if opErr != nil {
			s.logger.Error("failed to save aggregate after failed operation",
				zap.String("instruction_id", id.String()),
				zap.NamedError("operation_error", opErr),
				zap.Error(saveErr))
			return opErr
		}
		return fmt.Errorf("save instruction: %w", saveErr)
	}
	return opErr
}

func (s *Service) recordOperation(name string, res *Result, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	status := "error"
	if err == nil && res != nil {
		status = res.Status.String()
	}
	s.metrics.RecordOperation(name, status, time.Since(start))
}
