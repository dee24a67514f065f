package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/alipay"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
)

// Extended data keys the Alipay plugin reads and writes.
const (
	alipayDataSubject = "subject"
	alipayDataQRCode  = "qr_code"
)

const alipaySuccessCode = "10000"

// AlipayConfig holds Alipay configuration.
type AlipayConfig struct {
	AppID           string
	PrivateKey      string
	AlipayPublicKey string
	IsProd          bool
}

// AlipayPlugin processes instructions for the "alipay" payment system.
// Alipay has no separate authorization step, so the plugin only supports the
// combined approve-and-deposit flow: the first attempt precreates a QR order
// and reports a timeout, retries poll the trade until the buyer has paid.
type AlipayPlugin struct {
	client *alipay.Client
}

// NewAlipayPlugin creates a new Alipay plugin.
func NewAlipayPlugin(config *AlipayConfig) (*AlipayPlugin, error) {
	client, err := alipay.NewClient(config.AppID, config.PrivateKey, config.IsProd)
	if err != nil {
		return nil, fmt.Errorf("create alipay client: %w", err)
	}
	client.AutoVerifySign([]byte(config.AlipayPublicKey))
	return &AlipayPlugin{client: client}, nil
}

// Processes reports whether this plugin handles the given payment system.
func (p *AlipayPlugin) Processes(paymentSystemName string) bool {
	return paymentSystemName == "alipay"
}

// IndependentCreditSupported reports payout capability. Refunds must
// reference a trade, so credits without a payment are rejected.
func (p *AlipayPlugin) IndependentCreditSupported() bool {
	return false
}

func (p *AlipayPlugin) Approve(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return plugin.NewFunctionNotSupportedError("approve")
}

func (p *AlipayPlugin) Deposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return plugin.NewFunctionNotSupportedError("deposit")
}

func (p *AlipayPlugin) ReverseCredit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return plugin.NewFunctionNotSupportedError("reverse credit")
}

func (p *AlipayPlugin) ApproveAndDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	if retry && t.TrackingID != "" {
		return p.queryTrade(ctx, t)
	}
	return p.precreateTrade(ctx, t)
}

func (p *AlipayPlugin) Credit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	cr := t.Credit()
	if cr == nil || cr.IsIndependent() {
		return plugin.NewFunctionNotSupportedError("independent credit")
	}
	return p.refundTrade(ctx, t, cr.Payment())
}

func (p *AlipayPlugin) ReverseApproval(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	tradeNo, err := approvedTradeNo(t.Payment())
	if err != nil {
		return err
	}

	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", tradeNo)

	resp, err := p.client.TradeClose(ctx, bm)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if resp.Response.Code != alipaySuccessCode {
		return p.recordFailure(t, resp.Response.Code, resp.Response.SubMsg)
	}
	t.ProcessedAmount = t.RequestedAmount
	t.ResponseCode = plugin.ResponseCodeSuccess
	t.ReasonCode = plugin.ReasonCodeSuccess
	return nil
}

func (p *AlipayPlugin) ReverseDeposit(ctx context.Context, t *entity.FinancialTransaction, retry bool) error {
	return p.refundTrade(ctx, t, t.Payment())
}

// CheckPaymentInstruction performs local sanity checks without calling Alipay.
func (p *AlipayPlugin) CheckPaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error {
	b := plugin.NewErrorBuilder()
	if !strings.EqualFold(in.Currency, "CNY") {
		b.AddDataError("currency", "alipay only settles CNY")
	}
	if !in.ExtendedData.Has(alipayDataSubject) {
		b.AddDataError(alipayDataSubject, "an order subject is required")
	}
	return b.Build()
}

// ValidatePaymentInstruction matches the cheap check. Alipay offers no
// instruction-level remote validation.
func (p *AlipayPlugin) ValidatePaymentInstruction(ctx context.Context, in *entity.PaymentInstruction) error {
	return p.CheckPaymentInstruction(ctx, in)
}

// --- Internals ---

func (p *AlipayPlugin) precreateTrade(ctx context.Context, t *entity.FinancialTransaction) error {
	in := t.Instruction()
	if in == nil {
		return fmt.Errorf("transaction has no instruction")
	}

	subject := "payment"
	if raw, err := in.ExtendedData.Get(alipayDataSubject); err == nil {
		if s, ok := raw.(string); ok && s != "" {
			subject = s
		}
	}

	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", t.ID.String())
	bm.Set("total_amount", fmt.Sprintf("%.2f", t.RequestedAmount))
	bm.Set("subject", subject)
	bm.Set("timeout_express", "30m")
	bm.Set("product_code", "FACE_TO_FACE_PAYMENT")

	resp, err := p.client.TradePrecreate(ctx, bm)
	if err != nil {
		return fmt.Errorf("precreate trade: %w", err)
	}
	if resp.Response.Code != alipaySuccessCode {
		return p.recordFailure(t, resp.Response.Code, resp.Response.SubMsg)
	}

	t.TrackingID = resp.Response.OutTradeNo
	in.ExtendedData.Set(alipayDataQRCode, resp.Response.QrCode)
	t.ResponseCode = plugin.ResponseCodePending
	return plugin.NewTimeoutError("awaiting buyer payment")
}

func (p *AlipayPlugin) queryTrade(ctx context.Context, t *entity.FinancialTransaction) error {
	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", t.TrackingID)

	resp, err := p.client.TradeQuery(ctx, bm)
	if err != nil {
		return fmt.Errorf("query trade: %w", err)
	}
	if resp.Response.Code != alipaySuccessCode {
		return p.recordFailure(t, resp.Response.Code, resp.Response.SubMsg)
	}

	switch resp.Response.TradeStatus {
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		amount, err := strconv.ParseFloat(resp.Response.TotalAmount, 64)
		if err != nil {
			return fmt.Errorf("parse trade amount %q: %w", resp.Response.TotalAmount, err)
		}
		t.ProcessedAmount = amount
		t.ReferenceNumber = resp.Response.TradeNo
		t.ResponseCode = plugin.ResponseCodeSuccess
		t.ReasonCode = plugin.ReasonCodeSuccess
		return nil
	case "WAIT_BUYER_PAY":
		t.ResponseCode = plugin.ResponseCodePending
		return plugin.NewTimeoutError("awaiting buyer payment")
	default:
		t.ResponseCode = "failed"
		t.ReasonCode = plugin.ReasonCodeBlocked
		return plugin.NewFinancialError(fmt.Sprintf("trade ended in status %s", resp.Response.TradeStatus))
	}
}

func (p *AlipayPlugin) refundTrade(ctx context.Context, t *entity.FinancialTransaction, owner *entity.Payment) error {
	tradeNo, err := approvedTradeNo(owner)
	if err != nil {
		return err
	}

	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", tradeNo)
	bm.Set("out_request_no", t.ID.String())
	bm.Set("refund_amount", fmt.Sprintf("%.2f", t.RequestedAmount))

	resp, err := p.client.TradeRefund(ctx, bm)
	if err != nil {
		return fmt.Errorf("refund trade: %w", err)
	}
	if resp.Response.Code != alipaySuccessCode {
		return p.recordFailure(t, resp.Response.Code, resp.Response.SubMsg)
	}

	amount, err := strconv.ParseFloat(resp.Response.RefundFee, 64)
	if err != nil {
		return fmt.Errorf("parse refund amount %q: %w", resp.Response.RefundFee, err)
	}
	t.ProcessedAmount = amount
	t.ReferenceNumber = resp.Response.TradeNo
	t.ResponseCode = plugin.ResponseCodeSuccess
	t.ReasonCode = plugin.ReasonCodeSuccess
	return nil
}

// recordFailure maps an Alipay business error onto the transaction. Code
// 20000 means the gateway could not process the request right now and is
// safe to retry, everything else is a terminal decline.
func (p *AlipayPlugin) recordFailure(t *entity.FinancialTransaction, code, msg string) error {
	if code == "20000" {
		t.ResponseCode = plugin.ResponseCodePending
		return plugin.NewTimeoutError(fmt.Sprintf("alipay busy: %s", msg))
	}
	t.ResponseCode = "failed"
	t.ReasonCode = plugin.ReasonCodeBlocked
	return plugin.NewFinancialError(fmt.Sprintf("alipay error %s: %s", code, msg))
}

func approvedTradeNo(p *entity.Payment) (string, error) {
	if p == nil {
		return "", fmt.Errorf("transaction has no payment")
	}
	for _, tx := range p.Transactions() {
		if tx.TransactionType == entity.TransactionTypeApproveAndDeposit && tx.TrackingID != "" {
			return tx.TrackingID, nil
		}
	}
	return "", fmt.Errorf("payment has no tracked trade")
}
