// Package coordinator implements the payment coordination engine: it
// validates operation preconditions, maintains the reserve/resolve amount
// ledger across payments, credits and their owning instruction, dispatches
// to the gateway adapter bound to the instruction's payment system, and
// classifies the adapter outcome into a uniform Result.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
)

// CreditFactory constructs the Credit entity for CreateDependentCredit.
// Callers with custom credit types supply their own.
type CreditFactory func(in *entity.PaymentInstruction, amount float64) *entity.Credit

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCreditFactory overrides the default credit construction.
func WithCreditFactory(f CreditFactory) Option {
	return func(c *Coordinator) { c.creditFactory = f }
}

// Coordinator is the orchestration engine. It performs no locking and no
// persistence; callers serialize operations per instruction and persist the
// aggregate after each call.
type Coordinator struct {
	registry      *Registry
	notifier      Notifier
	creditFactory CreditFactory
	logger        *zap.Logger
}

func NewCoordinator(registry *Registry, notifier Notifier, logger *zap.Logger, opts ...Option) *Coordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		registry: registry,
		notifier: notifier,
		creditFactory: func(in *entity.PaymentInstruction, amount float64) *entity.Credit {
			return entity.NewCredit(in, amount)
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// outcome classifies one adapter invocation.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeDecline
	outcomePending
	outcomeFatal
)

// classify maps an adapter return to an outcome. A nil error means the
// adapter wrote the result onto the transaction; the response code decides
// between success and decline. Unknown error types are fatal and handed back
// to the caller unmodified.
func classify(t *entity.FinancialTransaction, err error) outcome {
	if err == nil {
		if t.ResponseCode == plugin.ResponseCodeSuccess {
			return outcomeSuccess
		}
		return outcomeDecline
	}
	if plugin.IsFinancialError(err) {
		return outcomeDecline
	}
	if plugin.IsTimeoutError(err) {
		return outcomePending
	}
	return outcomeFatal
}

// Approve reserves amount against the payment and asks the gateway to
// authorize it. On a new payment the amount may not exceed targetAmount
// minus what is already approved; approval retries are all-or-nothing
// against the target amount.
func (c *Coordinator) Approve(ctx context.Context, p *entity.Payment, amount float64) (*Result, error) {
	in := p.Instruction()
	if err := requireValidInstruction(in); err != nil {
		return nil, err
	}

	var (
		t     *entity.FinancialTransaction
		retry bool
	)
	switch p.State {
	case entity.PaymentStateNew:
		if err := requireNoPendingTransaction(in); err != nil {
			return nil, err
		}
		if entity.CompareAmounts(amount, p.TargetAmount-p.ApprovedAmount) > 0 {
			return nil, fmt.Errorf("%w: requested %.2f exceeds approvable %.2f", ErrInvalidAmount, amount, p.TargetAmount-p.ApprovedAmount)
		}
		t = c.anchorTransaction(p, entity.TransactionTypeApprove, amount)
		p.ApprovingAmount += amount
		in.ApprovingAmount += amount
		c.setPaymentState(ctx, p, entity.PaymentStateApproving)

	case entity.PaymentStateApproving:
		var err error
		if t, err = pendingOfType(p.PendingTransaction(), entity.TransactionTypeApprove, ErrInvalidPayment); err != nil {
			return nil, err
		}
		if !entity.AmountsEqual(amount, p.TargetAmount) {
			return nil, fmt.Errorf("%w: approval retries must request the full target amount %.2f", ErrInvalidAmount, p.TargetAmount)
		}
		retry = true

	default:
		return nil, fmt.Errorf("%w: cannot approve payment in state %s", ErrInvalidPayment, p.State)
	}

	c.logger.Debug("dispatching approve",
		zap.String("payment_id", p.ID.String()),
		zap.Float64("amount", amount),
		zap.Bool("retry", retry))

	pl, err := c.registry.PluginFor(in.PaymentSystemName)
	if err != nil {
		return nil, err
	}
	pluginErr := pl.Approve(ctx, t, retry)

	switch classify(t, pluginErr) {
	case outcomeSuccess:
		t.State = entity.TransactionStateSuccess
		p.ApprovingAmount -= amount
		in.ApprovingAmount -= amount
		p.ApprovedAmount += t.ProcessedAmount
		in.ApprovedAmount += t.ProcessedAmount
		c.setPaymentState(ctx, p, entity.PaymentStateApproved)
		return newResult(t, StatusSuccess, t.ReasonCode), nil

	case outcomeDecline:
		t.State = entity.TransactionStateFailed
		p.ApprovingAmount -= amount
		in.ApprovingAmount -= amount
		c.setPaymentState(ctx, p, entity.PaymentStateFailed)
		r := newResult(t, StatusFailed, t.ReasonCode)
		r.PluginError = pluginErr
		return r, nil

	case outcomePending:
		t.ReasonCode = plugin.ReasonCodeTimeout
		r := newResult(t, StatusPending, plugin.ReasonCodeTimeout)
		r.Recoverable = true
		r.PluginError = pluginErr
		return r, nil

	default:
		return nil, pluginErr
	}
}

// ApproveAndDeposit performs authorization and capture in one gateway call,
// reserving both the approving and depositing buckets and settling both from
// the single processed amount.
func (c *Coordinator) ApproveAndDeposit(ctx context.Context, p *entity.Payment, amount float64) (*Result, error) {
	in := p.Instruction()
	if err := requireValidInstruction(in); err != nil {
		return nil, err
	}

	var (
		t     *entity.FinancialTransaction
		retry bool
	)
	switch p.State {
	case entity.PaymentStateNew:
		if err := requireNoPendingTransaction(in); err != nil {
			return nil, err
		}
		if entity.CompareAmounts(amount, p.TargetAmount-p.ApprovedAmount) > 0 {
			return nil, fmt.Errorf("%w: requested %.2f exceeds approvable %.2f", ErrInvalidAmount, amount, p.TargetAmount-p.ApprovedAmount)
		}
		t = c.anchorTransaction(p, entity.TransactionTypeApproveAndDeposit, amount)
		p.ApprovingAmount += amount
		in.ApprovingAmount += amount
		p.DepositingAmount += amount
		in.DepositingAmount += amount
		c.setPaymentState(ctx, p, entity.PaymentStateApproving)

	case entity.PaymentStateApproving:
		var err error
		if t, err = pendingOfType(p.PendingTransaction(), entity.TransactionTypeApproveAndDeposit, ErrInvalidPayment); err != nil {
			return nil, err
		}
		if !entity.AmountsEqual(amount, p.ApprovingAmount) || !entity.AmountsEqual(amount, p.DepositingAmount) {
			return nil, fmt.Errorf("%w: retries must request the reserved amount %.2f", ErrInvalidAmount, p.ApprovingAmount)
		}
		retry = true

	default:
		return nil, fmt.Errorf("%w: cannot approve and deposit payment in state %s", ErrInvalidPayment, p.State)
	}

	c.logger.Debug("dispatching approve and deposit",
		zap.String("payment_id", p.ID.String()),
		zap.Float64("amount", amount),
		zap.Bool("retry", retry))

	pl, err := c.registry.PluginFor(in.PaymentSystemName)
	if err != nil {
		return nil, err
	}
	pluginErr := pl.ApproveAndDeposit(ctx, t, retry)

	switch classify(t, pluginErr) {
	case outcomeSuccess:
		t.State = entity.TransactionStateSuccess
		p.ApprovingAmount -= amount
		in.ApprovingAmount -= amount
		p.DepositingAmount -= amount
		in.DepositingAmount -= amount
		p.ApprovedAmount += t.ProcessedAmount
		in.ApprovedAmount += t.ProcessedAmount
		p.DepositedAmount += t.ProcessedAmount
		in.DepositedAmount += t.ProcessedAmount
		c.setPaymentState(ctx, p, entity.PaymentStateDeposited)
		return newResult(t, StatusSuccess, t.ReasonCode), nil

	case outcomeDecline:
		t.State = entity.TransactionStateFailed
		p.ApprovingAmount -= amount
		in.ApprovingAmount -= amount
		p.DepositingAmount -= amount
		in.DepositingAmount -= amount
		c.setPaymentState(ctx, p, entity.PaymentStateFailed)
		r := newResult(t, StatusFailed, t.ReasonCode)
		r.PluginError = pluginErr
		return r, nil

	case outcomePending:
		t.ReasonCode = plugin.ReasonCodeTimeout
		r := newResult(t, StatusPending, plugin.ReasonCodeTimeout)
		r.Recoverable = true
		r.PluginError = pluginErr
		return r, nil

	default:
		return nil, pluginErr
	}
}

// Deposit captures previously approved funds. The amount may not exceed what
// is approved and not yet deposited; a successful capture moves the
// processed amount out of the approved bucket.
func (c *Coordinator) Deposit(ctx context.Context, p *entity.Payment, amount float64) (*Result, error) {
	in := p.Instruction()
	if err := requireValidInstruction(in); err != nil {
		return nil, err
	}

	var (
		t     *entity.FinancialTransaction
		retry bool
	)
	switch p.State {
	case entity.PaymentStateApproved:
		if err := requireNoPendingTransaction(in); err != nil {
			return nil, err
		}
		if entity.CompareAmounts(amount, p.ApprovedAmount-p.DepositedAmount) > 0 {
			return nil, fmt.Errorf("%w: requested %.2f exceeds depositable %.2f", ErrInvalidAmount, amount, p.ApprovedAmount-p.DepositedAmount)
		}
		t = c.anchorTransaction(p, entity.TransactionTypeDeposit, amount)
		p.DepositingAmount += amount
		in.DepositingAmount += amount
		c.setPaymentState(ctx, p, entity.PaymentStateDepositing)

	case entity.PaymentStateDepositing:
		var err error
		if t, err = pendingOfType(p.PendingTransaction(), entity.TransactionTypeDeposit, ErrInvalidPayment); err != nil {
			return nil, err
		}
		if !entity.AmountsEqual(amount, p.DepositingAmount) {
			return nil, fmt.Errorf("%w: retries must request the reserved amount %.2f", ErrInvalidAmount, p.DepositingAmount)
		}
		retry = true

	default:
		return nil, fmt.Errorf("%w: cannot deposit payment in state %s", ErrInvalidPayment, p.State)
	}

	c.logger.Debug("dispatching deposit",
		zap.String("payment_id", p.ID.String()),
		zap.Float64("amount", amount),
		zap.Bool("retry", retry))

	pl, err := c.registry.PluginFor(in.PaymentSystemName)
	if err != nil {
		return nil, err
	}
	pluginErr := pl.Deposit(ctx, t, retry)

	switch classify(t, pluginErr) {
	case outcomeSuccess:
		t.State = entity.TransactionStateSuccess
		p.DepositingAmount -= amount
		in.DepositingAmount -= amount
		p.DepositedAmount += t.ProcessedAmount
		in.DepositedAmount += t.ProcessedAmount
		p.ApprovedAmount -= t.ProcessedAmount
		in.ApprovedAmount -= t.ProcessedAmount
		c.setPaymentState(ctx, p, entity.PaymentStateDeposited)
		return newResult(t, StatusSuccess, t.ReasonCode), nil

	case outcomeDecline:
		t.State = entity.TransactionStateFailed
		p.DepositingAmount -= amount
		in.DepositingAmount -= amount
		c.setPaymentState(ctx, p, entity.PaymentStateFailed)
		r := newResult(t, StatusFailed, t.ReasonCode)
		r.PluginError = pluginErr
		return r, nil

	case outcomePending:
		t.ReasonCode = plugin.ReasonCodeTimeout
		r := newResult(t, StatusPending, plugin.ReasonCodeTimeout)
		r.Recoverable = true
		r.PluginError = pluginErr
		return r, nil

	default:
		return nil, pluginErr
	}
}

// Credit pays out against a credit. A dependent credit draws from its
// payment's deposited funds, an independent credit from the instruction's
// aggregate deposited funds; either way the bound subtracts what is already
// crediting, credited or being reversed.
func (c *Coordinator) Credit(ctx context.Context, cr *entity.Credit, amount float64) (*Result, error) {
	in := cr.Instruction()
	if err := requireValidInstruction(in); err != nil {
		return nil, err
	}

	var bound float64
	if cr.IsIndependent() {
		bound = in.DepositedAmount - in.CreditingAmount - in.CreditedAmount - in.ReversingDepositedAmount
	} else {
		p := cr.Payment()
		switch p.State {
		case entity.PaymentStateApproved, entity.PaymentStateDepositing, entity.PaymentStateDeposited:
		default:
			return nil, fmt.Errorf("%w: cannot credit against payment in state %s", ErrInvalidPayment, p.State)
		}
		bound = p.DepositedAmount - p.CreditingAmount - p.CreditedAmount - p.ReversingDepositedAmount
	}

	pl, err := c.registry.PluginFor(in.PaymentSystemName)
	if err != nil {
		return nil, err
	}
	if cr.IsIndependent() && !pl.IndependentCreditSupported() {
		return nil, fmt.Errorf("%w: payment system %q", ErrIndependentCreditNotSupported, in.PaymentSystemName)
	}

	var (
		t     *entity.FinancialTransaction
		retry bool
	)
	switch cr.State {
	case entity.CreditStateNew:
		if err := requireNoPendingTransaction(in); err != nil {
			return nil, err
		}
		if entity.CompareAmounts(amount, bound) > 0 {
			return nil, fmt.Errorf("%w: requested %.2f exceeds creditable %.2f", ErrInvalidAmount, amount, bound)
		}
		t = entity.NewFinancialTransaction()
		t.TransactionType = entity.TransactionTypeCredit
		t.RequestedAmount = amount
		t.State = entity.TransactionStatePending
		cr.AddTransaction(t)
		cr.CreditingAmount += amount
		in.CreditingAmount += amount
		c.setCreditState(ctx, cr, entity.CreditStateCrediting)

	case entity.CreditStateCrediting:
		if t, err = pendingOfType(cr.PendingTransaction(), entity.TransactionTypeCredit, ErrInvalidCredit); err != nil {
			return nil, err
		}
		if !entity.AmountsEqual(amount, t.RequestedAmount) {
			return nil, fmt.Errorf("%w: retries must request the pending amount %.2f", ErrInvalidAmount, t.RequestedAmount)
		}
		// The reservation from the first attempt is already counted in
		// the crediting bucket, so it is added back before re-checking
		// the bound.
		if entity.CompareAmounts(amount, bound+t.RequestedAmount) > 0 {
			return nil, fmt.Errorf("%w: requested %.2f exceeds creditable %.2f", ErrInvalidAmount, amount, bound+t.RequestedAmount)
		}
		retry = true

	default:
		return nil, fmt.Errorf("%w: cannot credit in state %s", ErrInvalidCredit, cr.State)
	}

	c.logger.Debug("dispatching credit",
		zap.String("credit_id", cr.ID.String()),
		zap.Float64("amount", amount),
		zap.Bool("independent", cr.IsIndependent()),
		zap.Bool("retry", retry))

	pluginErr := pl.Credit(ctx, t, retry)

	switch classify(t, pluginErr) {
	case outcomeSuccess:
		t.State = entity.TransactionStateSuccess
		cr.CreditingAmount -= amount
		in.CreditingAmount -= amount
		cr.CreditedAmount += t.ProcessedAmount
		in.CreditedAmount += t.ProcessedAmount
		c.setCreditState(ctx, cr, entity.CreditStateCredited)
		return newResult(t, StatusSuccess, t.ReasonCode), nil

	case outcomeDecline:
		t.State = entity.TransactionStateFailed
		cr.CreditingAmount -= amount
		in.CreditingAmount -= amount
		c.setCreditState(ctx, cr, entity.CreditStateFailed)
		r := newResult(t, StatusFailed, t.ReasonCode)
		r.PluginError = pluginErr
		return r, nil

	case outcomePending:
		t.ReasonCode = plugin.ReasonCodeTimeout
		r := newResult(t, StatusPending, plugin.ReasonCodeTimeout)
		r.Recoverable = true
		r.PluginError = pluginErr
		return r, nil

	default:
		return nil, pluginErr
	}
}

// CreateDependentCredit constructs a credit bound to the given payment. No
// gateway call is made and no transaction is created; a later Credit call
// performs the payout.
func (c *Coordinator) CreateDependentCredit(ctx context.Context, p *entity.Payment, amount float64) (*entity.Credit, error) {
	_ = ctx
	in := p.Instruction()
	if err := requireValidInstruction(in); err != nil {
		return nil, err
	}
	switch p.State {
	case entity.PaymentStateApproved, entity.PaymentStateDepositing, entity.PaymentStateDeposited:
	default:
		return nil, fmt.Errorf("%w: cannot create dependent credit for payment in state %s", ErrInvalidPayment, p.State)
	}
	cr := c.creditFactory(in, amount)
	if err := cr.SetPayment(p); err != nil {
		return nil, err
	}
	return cr, nil
}

// ClosePaymentInstruction transitions the instruction to CLOSED. Ledgers are
// untouched; pending transactions on its payments and credits may still be
// retried to resolution.
func (c *Coordinator) ClosePaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) {
	c.setInstructionState(ctx, in, entity.InstructionStateClosed)
}

// ReverseApproval gives back part or all of an approved amount. The payment
// state is unchanged by a successful reversal; a decline flags the payment
// for operator attention.
func (c *Coordinator) ReverseApproval(ctx context.Context, p *entity.Payment, amount float64) (*Result, error) {
	in := p.Instruction()
	if err := requireValidInstruction(in); err != nil {
		return nil, err
	}
	if p.State != entity.PaymentStateApproved {
		return nil, fmt.Errorf("%w: cannot reverse approval of payment in state %s", ErrInvalidPayment, p.State)
	}

	var (
		t     *entity.FinancialTransaction
		retry bool
		err   error
	)
	if pending := p.PendingTransaction(); pending != nil {
		if t, err = pendingOfType(pending, entity.TransactionTypeReverseApproval, ErrInvalidPayment); err != nil {
			return nil, err
		}
		if !entity.AmountsEqual(amount, t.RequestedAmount) {
			return nil, fmt.Errorf("%w: retries must request the pending amount %.2f", ErrInvalidAmount, t.RequestedAmount)
		}
		retry = true
	} else {
		if err = requireNoPendingTransaction(in); err != nil {
			return nil, err
		}
		if entity.CompareAmounts(amount, p.ApprovedAmount) > 0 {
			return nil, fmt.Errorf("%w: requested %.2f exceeds approved %.2f", ErrInvalidAmount, amount, p.ApprovedAmount)
		}
		t = c.anchorTransaction(p, entity.TransactionTypeReverseApproval, amount)
		p.ReversingApprovedAmount += amount
		in.ReversingApprovedAmount += amount
	}

	pl, err := c.registry.PluginFor(in.PaymentSystemName)
	if err != nil {
		return nil, err
	}
	pluginErr := pl.ReverseApproval(ctx, t, retry)

	switch classify(t, pluginErr) {
	case outcomeSuccess:
		t.State = entity.TransactionStateSuccess
		p.ReversingApprovedAmount -= amount
		in.ReversingApprovedAmount -= amount
		p.ApprovedAmount -= t.ProcessedAmount
		in.ApprovedAmount -= t.ProcessedAmount
		return newResult(t, StatusSuccess, t.ReasonCode), nil

	case outcomeDecline:
		t.State = entity.TransactionStateFailed
		p.ReversingApprovedAmount -= amount
		in.ReversingApprovedAmount -= amount
		p.AttentionRequired = true
		r := newResult(t, StatusFailed, t.ReasonCode)
		r.PluginError = pluginErr
		return r, nil

	case outcomePending:
		t.ReasonCode = plugin.ReasonCodeTimeout
		r := newResult(t, StatusPending, plugin.ReasonCodeTimeout)
		r.Recoverable = true
		r.PluginError = pluginErr
		return r, nil

	default:
		return nil, pluginErr
	}
}

// ReverseDeposit refunds part or all of a deposited amount back through the
// gateway.
func (c *Coordinator) ReverseDeposit(ctx context.Context, p *entity.Payment, amount float64) (*Result, error) {
	in := p.Instruction()
	if err := requireValidInstruction(in); err != nil {
		return nil, err
	}
	switch p.State {
	case entity.PaymentStateDeposited, entity.PaymentStateDepositing:
	default:
		return nil, fmt.Errorf("%w: cannot reverse deposit of payment in state %s", ErrInvalidPayment, p.State)
	}

	var (
		t     *entity.FinancialTransaction
		retry bool
		err   error
	)
	if pending := p.PendingTransaction(); pending != nil {
		if t, err = pendingOfType(pending, entity.TransactionTypeReverseDeposit, ErrInvalidPayment); err != nil {
			return nil, err
		}
		if !entity.AmountsEqual(amount, t.RequestedAmount) {
			return nil, fmt.Errorf("%w: retries must request the pending amount %.2f", ErrInvalidAmount, t.RequestedAmount)
		}
		retry = true
	} else {
		if err = requireNoPendingTransaction(in); err != nil {
			return nil, err
		}
		if entity.CompareAmounts(amount, p.DepositedAmount) > 0 {
			return nil, fmt.Errorf("%w: requested %.2f exceeds deposited %.2f", ErrInvalidAmount, amount, p.DepositedAmount)
		}
		t = c.anchorTransaction(p, entity.TransactionTypeReverseDeposit, amount)
		p.ReversingDepositedAmount += amount
		in.ReversingDepositedAmount += amount
	}

	pl, err := c.registry.PluginFor(in.PaymentSystemName)
	if err != nil {
		return nil, err
	}
	pluginErr := pl.ReverseDeposit(ctx, t, retry)

	switch classify(t, pluginErr) {
	case outcomeSuccess:
		t.State = entity.TransactionStateSuccess
		p.ReversingDepositedAmount -= amount
		in.ReversingDepositedAmount -= amount
		p.DepositedAmount -= t.ProcessedAmount
		in.DepositedAmount -= t.ProcessedAmount
		return newResult(t, StatusSuccess, t.ReasonCode), nil

	case outcomeDecline:
		t.State = entity.TransactionStateFailed
		p.ReversingDepositedAmount -= amount
		in.ReversingDepositedAmount -= amount
		p.AttentionRequired = true
		r := newResult(t, StatusFailed, t.ReasonCode)
		r.PluginError = pluginErr
		return r, nil

	case outcomePending:
		t.ReasonCode = plugin.ReasonCodeTimeout
		r := newResult(t, StatusPending, plugin.ReasonCodeTimeout)
		r.Recoverable = true
		r.PluginError = pluginErr
		return r, nil

	default:
		return nil, pluginErr
	}
}

// ReverseCredit takes back part or all of a credited amount.
func (c *Coordinator) ReverseCredit(ctx context.Context, cr *entity.Credit, amount float64) (*Result, error) {
	in := cr.Instruction()
	if err := requireValidInstruction(in); err != nil {
		return nil, err
	}
	if cr.State != entity.CreditStateCredited {
		return nil, fmt.Errorf("%w: cannot reverse credit in state %s", ErrInvalidCredit, cr.State)
	}

	var (
		t     *entity.FinancialTransaction
		retry bool
		err   error
	)
	if pending := cr.PendingTransaction(); pending != nil {
		if t, err = pendingOfType(pending, entity.TransactionTypeReverseCredit, ErrInvalidCredit); err != nil {
			return nil, err
		}
		if !entity.AmountsEqual(amount, t.RequestedAmount) {
			return nil, fmt.Errorf("%w: retries must request the pending amount %.2f", ErrInvalidAmount, t.RequestedAmount)
		}
		retry = true
	} else {
		if err = requireNoPendingTransaction(in); err != nil {
			return nil, err
		}
		if entity.CompareAmounts(amount, cr.CreditedAmount) > 0 {
			return nil, fmt.Errorf("%w: requested %.2f exceeds credited %.2f", ErrInvalidAmount, amount, cr.CreditedAmount)
		}
		t = entity.NewFinancialTransaction()
		t.TransactionType = entity.TransactionTypeReverseCredit
		t.RequestedAmount = amount
		t.State = entity.TransactionStatePending
		cr.AddTransaction(t)
		cr.ReversingAmount += amount
		in.ReversingCreditedAmount += amount
	}

	pl, err := c.registry.PluginFor(in.PaymentSystemName)
	if err != nil {
		return nil, err
	}
	pluginErr := pl.ReverseCredit(ctx, t, retry)

	switch classify(t, pluginErr) {
	case outcomeSuccess:
		t.State = entity.TransactionStateSuccess
		cr.ReversingAmount -= amount
		in.ReversingCreditedAmount -= amount
		cr.CreditedAmount -= t.ProcessedAmount
		in.CreditedAmount -= t.ProcessedAmount
		return newResult(t, StatusSuccess, t.ReasonCode), nil

	case outcomeDecline:
		t.State = entity.TransactionStateFailed
		cr.ReversingAmount -= amount
		in.ReversingCreditedAmount -= amount
		cr.AttentionRequired = true
		r := newResult(t, StatusFailed, t.ReasonCode)
		r.PluginError = pluginErr
		return r, nil

	case outcomePending:
		t.ReasonCode = plugin.ReasonCodeTimeout
		r := newResult(t, StatusPending, plugin.ReasonCodeTimeout)
		r.Recoverable = true
		r.PluginError = pluginErr
		return r, nil

	default:
		return nil, pluginErr
	}
}

// CheckPaymentInstruction runs the adapter's fast local validation of a new
// instruction. Success transitions the instruction to VALID, a validation
// error to INVALID with the field-level findings carried on the result.
func (c *Coordinator) CheckPaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) (*Result, error) {
	if in.State != entity.InstructionStateNew {
		return nil, fmt.Errorf("%w: cannot check instruction in state %s", ErrInvalidInstruction, in.State)
	}
	pl, err := c.registry.PluginFor(in.PaymentSystemName)
	if err != nil {
		return nil, err
	}
	return c.resolveInstructionValidation(ctx, in, pl.CheckPaymentInstruction(ctx, in))
}

// ValidatePaymentInstruction runs the adapter's full validation, which may
// involve the gateway.
func (c *Coordinator) ValidatePaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) (*Result, error) {
	switch in.State {
	case entity.InstructionStateNew, entity.InstructionStateValid:
	default:
		return nil, fmt.Errorf("%w: cannot validate instruction in state %s", ErrInvalidInstruction, in.State)
	}
	pl, err := c.registry.PluginFor(in.PaymentSystemName)
	if err != nil {
		return nil, err
	}
	return c.resolveInstructionValidation(ctx, in, pl.ValidatePaymentInstruction(ctx, in))
}

func (c *Coordinator) resolveInstructionValidation(ctx context.Context, in *entity.PaymentInstruction, err error) (*Result, error) {
	if err == nil {
		c.setInstructionState(ctx, in, entity.InstructionStateValid)
		return newResult(nil, StatusSuccess, plugin.ReasonCodeSuccess), nil
	}
	var verr *plugin.InvalidPaymentInstructionError
	if errors.As(err, &verr) {
		c.setInstructionState(ctx, in, entity.InstructionStateInvalid)
		r := newResult(nil, StatusFailed, plugin.ReasonCodeInvalidData)
		r.PluginError = verr
		return r, nil
	}
	return nil, err
}

// anchorTransaction creates the PENDING transaction for a first attempt
// against a payment. Fatal plugin errors leave it pending on purpose.
func (c *Coordinator) anchorTransaction(p *entity.Payment, typ entity.TransactionType, amount float64) *entity.FinancialTransaction {
	t := entity.NewFinancialTransaction()
	t.TransactionType = typ
	t.RequestedAmount = amount
	t.State = entity.TransactionStatePending
	p.AddTransaction(t)
	return t
}

func (c *Coordinator) setPaymentState(ctx context.Context, p *entity.Payment, state entity.PaymentState) {
	if p.State == state {
		return
	}
	old := p.State
	p.State = state
	c.notifier.PaymentStateChanged(ctx, p, old)
}

func (c *Coordinator) setCreditState(ctx context.Context, cr *entity.Credit, state entity.CreditState) {
	if cr.State == state {
		return
	}
	old := cr.State
	cr.State = state
	c.notifier.CreditStateChanged(ctx, cr, old)
}

func (c *Coordinator) setInstructionState(ctx context.Context, in *entity.PaymentInstruction, state entity.InstructionState) {
	if in.State == state {
		return
	}
	old := in.State
	in.State = state
	c.notifier.InstructionStateChanged(ctx, in, old)
}

func requireValidInstruction(in *entity.PaymentInstruction) error {
	if in.State != entity.InstructionStateValid {
		return fmt.Errorf("%w: instruction state is %s", ErrInvalidInstruction, in.State)
	}
	return nil
}

// requireNoPendingTransaction guards first attempts: at most one transaction
// may be pending across the whole instruction, so a new one may not be
// anchored while any payment or credit still has one open.
func requireNoPendingTransaction(in *entity.PaymentInstruction) error {
	if t := in.PendingTransaction(); t != nil {
		return fmt.Errorf("%w: a %s transaction is already pending", ErrInvalidInstruction, t.TransactionType)
	}
	return nil
}

// pendingOfType validates the retry anchor: the pending transaction must
// exist and match the requested operation type.
func pendingOfType(pending *entity.FinancialTransaction, typ entity.TransactionType, stateErr error) (*entity.FinancialTransaction, error) {
	if pending == nil {
		return nil, fmt.Errorf("%w: no pending %s transaction to retry", stateErr, typ)
	}
	if pending.TransactionType != typ {
		return nil, fmt.Errorf("%w: pending transaction is %s, not %s", stateErr, pending.TransactionType, typ)
	}
	return pending, nil
}
