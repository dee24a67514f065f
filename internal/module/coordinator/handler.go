package coordinator

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
)

// Handler handles HTTP requests for coordination operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new coordination handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the coordination routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	instructions := r.Group("/instructions")
	{
		instructions.POST("", h.CreateInstruction)
		instructions.GET("/:id", h.GetInstruction)
		instructions.POST("/:id/validate", h.ValidateInstruction)
		instructions.POST("/:id/close", h.CloseInstruction)
	}

	payments := r.Group("/payments")
	{
		payments.POST("", h.CreatePayment)
		payments.POST("/:id/approve", h.Approve)
		payments.POST("/:id/approve-deposit", h.ApproveAndDeposit)
		payments.POST("/:id/deposit", h.Deposit)
		payments.POST("/:id/reverse-approval", h.ReverseApproval)
		payments.POST("/:id/reverse-deposit", h.ReverseDeposit)
	}

	credits := r.Group("/credits")
	{
		credits.POST("", h.CreateCredit)
		credits.POST("/:id/credit", h.Credit)
		credits.POST("/:id/reverse", h.ReverseCredit)
	}
}

// CreateInstruction creates a payment instruction and runs the adapter's
// instruction check.
func (h *Handler) CreateInstruction(c *gin.Context) {
	var req CreateInstructionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in, res, err := h.service.CreateInstruction(c.Request.Context(), req.Amount, req.Currency, req.PaymentSystemName, req.ExtendedData)
	if err != nil {
		handleOperationError(c, err)
		return
	}

	body := gin.H{
		"instruction": InstructionToResponse(in),
		"result":      ResultToResponse(res),
	}
	var verr *plugin.InvalidPaymentInstructionError
	if errors.As(res.PluginError, &verr) {
		body["validation"] = ValidationErrorResponse{
			DataErrors:   verr.DataErrors,
			GlobalErrors: verr.GlobalErrors,
		}
	}
	c.JSON(http.StatusCreated, body)
}

// GetInstruction returns an instruction aggregate by ID.
func (h *Handler) GetInstruction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	in, err := h.service.GetInstruction(c.Request.Context(), id)
	if err != nil {
		handleOperationError(c, err)
		return
	}

	c.JSON(http.StatusOK, InstructionToResponse(in))
}

// ValidateInstruction runs full validation on a stored instruction.
func (h *Handler) ValidateInstruction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	res, err := h.service.ValidateInstruction(c.Request.Context(), id)
	if err != nil {
		handleOperationError(c, err)
		return
	}

	respondResult(c, res)
}

// CloseInstruction transitions an instruction to CLOSED.
func (h *Handler) CloseInstruction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	in, err := h.service.CloseInstruction(c.Request.Context(), id)
	if err != nil {
		handleOperationError(c, err)
		return
	}

	c.JSON(http.StatusOK, InstructionToResponse(in))
}

// CreatePayment creates a payment under an instruction.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.service.CreatePayment(c.Request.Context(), req.InstructionID, req.TargetAmount)
	if err != nil {
		handleOperationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, PaymentToResponse(p))
}

// CreateCredit creates a dependent or independent credit.
func (h *Handler) CreateCredit(c *gin.Context) {
	var req CreateCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cr, err := h.service.CreateCredit(c.Request.Context(), req.InstructionID, req.PaymentID, req.Amount)
	if err != nil {
		handleOperationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreditToResponse(cr))
}

// Approve authorizes funds on a payment.
func (h *Handler) Approve(c *gin.Context) {
	h.paymentOperation(c, h.service.Approve)
}

// ApproveAndDeposit authorizes and captures in one call.
func (h *Handler) ApproveAndDeposit(c *gin.Context) {
	h.paymentOperation(c, h.service.ApproveAndDeposit)
}

// Deposit captures approved funds.
func (h *Handler) Deposit(c *gin.Context) {
	h.paymentOperation(c, h.service.Deposit)
}

// ReverseApproval gives back approved funds.
func (h *Handler) ReverseApproval(c *gin.Context) {
	h.paymentOperation(c, h.service.ReverseApproval)
}

// ReverseDeposit refunds deposited funds.
func (h *Handler) ReverseDeposit(c *gin.Context) {
	h.paymentOperation(c, h.service.ReverseDeposit)
}

// Credit pays out against a credit.
func (h *Handler) Credit(c *gin.Context) {
	h.paymentOperation(c, h.service.Credit)
}

// ReverseCredit takes back credited funds.
func (h *Handler) ReverseCredit(c *gin.Context) {
	h.paymentOperation(c, h.service.ReverseCredit)
}

// --- Helpers ---

func (h *Handler) paymentOperation(c *gin.Context, op func(ctx context.Context, id uuid.UUID, amount float64) (*Result, error)) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := op(c.Request.Context(), id, req.Amount)
	if err != nil {
		handleOperationError(c, err)
		return
	}

	respondResult(c, res)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func respondResult(c *gin.Context, res *Result) {
	body := gin.H{"result": ResultToResponse(res)}

	var verr *plugin.InvalidPaymentInstructionError
	if errors.As(res.PluginError, &verr) {
		body["validation"] = ValidationErrorResponse{
			DataErrors:   verr.DataErrors,
			GlobalErrors: verr.GlobalErrors,
		}
	}

	status := http.StatusOK
	if res.Status == StatusPending {
		status = http.StatusAccepted
	}
	c.JSON(status, body)
}

func handleOperationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInstructionNotFound),
		errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ErrCreditNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidInstruction),
		errors.Is(err, ErrInvalidPayment),
		errors.Is(err, ErrInvalidCredit):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNoPluginFound),
		errors.Is(err, ErrIndependentCreditNotSupported):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
