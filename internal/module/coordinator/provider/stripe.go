package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/paymentmethod"
	"github.com/stripe/stripe-go/v76/refund"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
)

// Extended data keys the Stripe plugin reads from an instruction.
const (
	stripeDataPaymentMethod = "payment_method"
	stripeDataCustomer      = "customer"
)

var stripeCurrencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
	"JPY": true,
	"CNY": true,
	"AUD": true,
	"CAD": true,
	"CHF": true,
	"HKD": true,
	"SGD": true,
}

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	APIKey string
}

// StripePlugin processes instructions for the "stripe" payment system.
// Approvals map to manually captured PaymentIntents, deposits to captures,
// credits and deposit reversals to refunds.
type StripePlugin struct {
	apiKey string
}

// NewStripePlugin creates a new Stripe plugin.
func NewStripePlugin(config *StripeConfig) *StripePlugin {
	stripe.Key = config.APIKey
	return &StripePlugin{apiKey: config.APIKey}
}

// Processes reports whether this plugin handles the given payment system.
func (p *StripePlugin) Processes(paymentSystemName string) bool {
	return paymentSystemName == "stripe"
}

// IndependentCreditSupported reports payout capability. Stripe refunds
// always reference a charge, so credits without a payment are rejected.
func (p *StripePlugin) IndependentCreditSupported() bool {
	return false
}

func (p *StripePlugin) Approve(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	if retry && t.TrackingID != "" {
		return p.refreshIntent(t)
	}
	return p.createIntent(t, stripe.PaymentIntentCaptureMethodManual)
}

func (p *StripePlugin) ApproveAndDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	if retry && t.TrackingID != "" {
		return p.refreshIntent(t)
	}
	return p.createIntent(t, stripe.PaymentIntentCaptureMethodAutomatic)
}

func (p *StripePlugin) Deposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	intentID, err := approvedIntentID(t)
	if err != nil {
		return err
	}

	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(toMinorUnits(t.RequestedAmount)),
	}
	pi, err := paymentintent.Capture(intentID, params)
	if err != nil {
		return p.recordError(t, err)
	}
	return p.recordIntent(t, pi)
}

func (p *StripePlugin) Credit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	cr := t.Credit()
	if cr == nil || cr.IsIndependent() {
		return plugin.NewFunctionNotSupportedError("independent credit")
	}
	return p.refundIntent(t, cr.Payment())
}

func (p *StripePlugin) ReverseApproval(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	intentID, err := approvedIntentID(t)
	if err != nil {
		return err
	}

	pi, err := paymentintent.Cancel(intentID, nil)
	if err != nil {
		return p.recordError(t, err)
	}
	if pi.Status != stripe.PaymentIntentStatusCanceled {
		t.ResponseCode = "failed"
		t.ReasonCode = plugin.ReasonCodeBlocked
		return plugin.NewFinancialError(fmt.Sprintf("cancel left intent in status %s", pi.Status))
	}
	t.ProcessedAmount = t.RequestedAmount
	t.ResponseCode = plugin.ResponseCodeSuccess
	t.ReasonCode = plugin.ReasonCodeSuccess
	return nil
}

func (p *StripePlugin) ReverseCredit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return plugin.NewFunctionNotSupportedError("reverse credit")
}

func (p *StripePlugin) ReverseDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return p.refundIntent(t, t.Payment())
}

// CheckPaymentInstruction performs local sanity checks without calling Stripe.
func (p *StripePlugin) CheckPaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error {
	b := plugin.NewErrorBuilder()
	if !stripeCurrencies[strings.ToUpper(in.Currency)] {
		b.AddDataError("currency", fmt.Sprintf("currency %q is not supported", in.Currency))
	}
	if !in.ExtendedData.Has(stripeDataPaymentMethod) {
		b.AddDataError(stripeDataPaymentMethod, "a payment method is required")
	}
	return b.Build()
}

// ValidatePaymentInstruction runs the local checks and then verifies the
// payment method against the Stripe API.
func (p *StripePlugin) ValidatePaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error {
	if err := p.CheckPaymentInstruction(ctx, in); err != nil {
		return err
	}

	raw, err := in.ExtendedData.Get(stripeDataPaymentMethod)
	if err != nil {
		return err
	}
	pm, ok := raw.(string)
	if !ok || pm == "" {
		b := plugin.NewErrorBuilder()
		b.AddDataError(stripeDataPaymentMethod, "payment method must be a non-empty string")
		return b.Build()
	}

	if _, err := paymentmethod.Get(pm, nil); err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeInvalidRequest {
			b := plugin.NewErrorBuilder()
			b.AddDataError(stripeDataPaymentMethod, fmt.Sprintf("unknown payment method %q", pm))
			return b.Build()
		}
		return fmt.Errorf("verify payment method: %w", err)
	}
	return nil
}

// --- Internals ---

func (p *StripePlugin) createIntent(t *entity.FinancialTransaction, capture stripe.PaymentIntentCaptureMethod) error {
	in := t.Instruction()
	if in == nil {
		return errors.New("transaction has no instruction")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(t.RequestedAmount)),
		Currency:      stripe.String(strings.ToLower(in.Currency)),
		CaptureMethod: stripe.String(string(capture)),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if raw, err := in.ExtendedData.Get(stripeDataPaymentMethod); err == nil {
		if pm, ok := raw.(string); ok {
			params.PaymentMethod = stripe.String(pm)
		}
	}
	if raw, err := in.ExtendedData.Get(stripeDataCustomer); err == nil {
		if cust, ok := raw.(string); ok {
			params.Customer = stripe.String(cust)
		}
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return p.recordError(t, err)
	}
	t.TrackingID = pi.ID
	return p.recordIntent(t, pi)
}

func (p *StripePlugin) refreshIntent(t *entity.FinancialTransaction) error {
	pi, err := paymentintent.Get(t.TrackingID, nil)
	if err != nil {
		return p.recordError(t, err)
	}
	return p.recordIntent(t, pi)
}

func (p *StripePlugin) refundIntent(t *entity.FinancialTransaction, owner *entity.Payment) error {
	intentID, err := approvedIntentIDOf(owner)
	if err != nil {
		return err
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(toMinorUnits(t.RequestedAmount)),
	}
	r, err := refund.New(params)
	if err != nil {
		return p.recordError(t, err)
	}

	t.TrackingID = r.ID
	switch r.Status {
	case stripe.RefundStatusSucceeded:
		t.ProcessedAmount = fromMinorUnits(r.Amount)
		t.ResponseCode = plugin.ResponseCodeSuccess
		t.ReasonCode = plugin.ReasonCodeSuccess
		return nil
	case stripe.RefundStatusPending:
		t.ResponseCode = plugin.ResponseCodePending
		return plugin.NewTimeoutError("refund still pending")
	default:
		t.ResponseCode = "failed"
		t.ReasonCode = plugin.ReasonCodeBlocked
		return plugin.NewFinancialError(fmt.Sprintf("refund ended in status %s", r.Status))
	}
}

// recordIntent writes the intent outcome onto the transaction and translates
// non-terminal statuses into the retryable error contract.
func (p *StripePlugin) recordIntent(t *entity.FinancialTransaction, pi *stripe.PaymentIntent) error {
	if pi.LatestCharge != nil {
		t.ReferenceNumber = pi.LatestCharge.ID
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
		t.ProcessedAmount = fromMinorUnits(pi.Amount)
		t.ResponseCode = plugin.ResponseCodeSuccess
		t.ReasonCode = plugin.ReasonCodeSuccess
		return nil
	case stripe.PaymentIntentStatusSucceeded:
		t.ProcessedAmount = fromMinorUnits(pi.AmountReceived)
		t.ResponseCode = plugin.ResponseCodeSuccess
		t.ReasonCode = plugin.ReasonCodeSuccess
		return nil
	case stripe.PaymentIntentStatusProcessing:
		t.ResponseCode = plugin.ResponseCodePending
		return plugin.NewTimeoutError("payment intent still processing")
	case stripe.PaymentIntentStatusRequiresAction:
		t.ResponseCode = "failed"
		t.ReasonCode = plugin.ReasonCodeActionRequired
		return plugin.NewFinancialError("payment requires customer action")
	default:
		t.ResponseCode = "failed"
		t.ReasonCode = plugin.ReasonCodeBlocked
		return plugin.NewFinancialError(fmt.Sprintf("payment intent in status %s", pi.Status))
	}
}

// recordError maps a Stripe API error onto the transaction and the retryable
// error contract. Card declines become financial errors, infrastructure
// problems become timeouts so the operation stays retryable.
func (p *StripePlugin) recordError(t *entity.FinancialTransaction, err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("stripe call: %w", err)
	}

	switch serr.Type {
	case stripe.ErrorTypeCard:
		t.ResponseCode = "failed"
		t.ReasonCode = string(serr.DeclineCode)
		if t.ReasonCode == "" {
			t.ReasonCode = plugin.ReasonCodeBlocked
		}
		return plugin.NewFinancialError(serr.Msg)
	case stripe.ErrorTypeAPI:
		t.ResponseCode = plugin.ResponseCodePending
		return plugin.NewTimeoutError(serr.Msg)
	default:
		return fmt.Errorf("stripe call: %w", serr)
	}
}

func approvedIntentID(t *entity.FinancialTransaction) (string, error) {
	return approvedIntentIDOf(t.Payment())
}

func approvedIntentIDOf(p *entity.Payment) (string, error) {
	if p == nil {
		return "", errors.New("transaction has no payment")
	}
	if at := p.ApproveTransaction(); at != nil && at.TrackingID != "" {
		return at.TrackingID, nil
	}
	for _, tx := range p.Transactions() {
		if tx.TransactionType == entity.TransactionTypeApproveAndDeposit && tx.TrackingID != "" {
			return tx.TrackingID, nil
		}
	}
	return "", errors.New("payment has no tracked payment intent")
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
