package handlers

import (
	"errors"

	"payverse/internal/models"
	"payverse/internal/repositories"
	"payverse/internal/services/balance"
	"payverse/internal/services/escrow"
	"payverse/internal/services/paygram"
	"payverse/internal/services/security"
	"payverse/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// TransferHandler exposes the value-moving flows: direct sends between
// accounts, invoice top-ups, and cash-outs.
type TransferHandler struct {
	escrow escrow.Service
	pins   security.Service
	users  repositories.UserRepository
}

func NewTransferHandler(escrowService escrow.Service, pins security.Service, users repositories.UserRepository) *TransferHandler {
	return &TransferHandler{escrow: escrowService, pins: pins, users: users}
}

func (h *TransferHandler) Send(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Receiver string  `json:"receiver"` // username or email
		Amount   float64 `json:"amount"`
		Note     string  `json:"note"`
		Pin      string  `json:"pin"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if input.Amount <= 0 {
		return utils.BadRequest(c, "amount must be greater than 0")
	}

	if err := h.pins.AuthorizeAmount(c.Context(), claims.UserID, input.Amount, input.Pin); err != nil {
		return pinError(c, err)
	}

	receiver, err := h.resolveAccount(input.Receiver)
	if err != nil {
		return utils.BadRequest(c, "recipient not found")
	}

	res, err := h.escrow.DirectSend(c.Context(), claims.UserID, receiver.ID, input.Amount, input.Note)
	if err != nil {
		return transferError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"reference": res.Receipt.UniqueTxID,
		"balance":   res.SenderBalance,
	})
}

func (h *TransferHandler) InitiateTopUp(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if input.Amount <= 0 {
		return utils.BadRequest(c, "amount must be greater than 0")
	}

	invoice, err := h.escrow.InitiateTopUp(c.Context(), claims.UserID, input.Amount)
	if err != nil {
		return transferError(c, err)
	}

	return utils.Respond(c, fiber.StatusCreated, fiber.Map{
		"invoice_code": invoice.InvoiceCode,
		"voucher_code": invoice.VoucherCode,
		"amount":       invoice.Amount,
		"status":       invoice.Status,
	})
}

func (h *TransferHandler) CompleteTopUp(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		InvoiceCode string `json:"invoice_code"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	res, err := h.escrow.CompleteTopUp(c.Context(), claims.UserID, input.InvoiceCode)
	if err != nil {
		return transferError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"invoice_code": res.Invoice.InvoiceCode,
		"credited":     res.Credited,
		"balance":      res.NewBalance,
	})
}

func (h *TransferHandler) InitiateCashOut(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Amount float64 `json:"amount"`
		Pin    string  `json:"pin"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if input.Amount <= 0 {
		return utils.BadRequest(c, "amount must be greater than 0")
	}

	if err := h.pins.AuthorizeAmount(c.Context(), claims.UserID, input.Amount, input.Pin); err != nil {
		return pinError(c, err)
	}

	res, err := h.escrow.InitiateCashOut(c.Context(), claims.UserID, input.Amount)
	if err != nil {
		if errors.Is(err, escrow.ErrPendingReconciliation) && res != nil {
			// The debit stands but the payment leg is unresolved; the
			// sweep or support will settle it.
			return utils.Respond(c, fiber.StatusAccepted, fiber.Map{
				"invoice_code": res.Invoice.InvoiceCode,
				"status":       "pending_reconciliation",
			})
		}
		return transferError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"invoice_code": res.Invoice.InvoiceCode,
		"voucher_code": res.Invoice.VoucherCode,
		"debited":      res.Debited,
		"balance":      res.NewBalance,
		"settled":      res.Settled,
	})
}

func (h *TransferHandler) CancelCashOut(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	invoiceCode := c.Params("code")
	if invoiceCode == "" {
		return utils.BadRequest(c, "invoice code is required")
	}

	if err := h.escrow.CancelCashOut(c.Context(), claims.UserID, invoiceCode); err != nil {
		return transferError(c, err)
	}

	return utils.Success(c, fiber.Map{"message": "cash-out cancelled"})
}

func (h *TransferHandler) resolveAccount(identifier string) (*models.User, error) {
	user, err := h.users.GetByEmail(identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}
	return h.users.GetByUsername(identifier)
}

func pinError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, security.ErrPinNotSet):
		return utils.BadRequest(c, err.Error())
	case errors.Is(err, security.ErrInvalidPin):
		return utils.Forbidden(c, err.Error())
	case errors.Is(err, security.ErrPinLocked):
		return utils.Respond(c, fiber.StatusLocked, fiber.Map{"error": err.Error()})
	}
	return utils.InternalError(c, "pin check failed")
}

// transferError maps the protocol's error taxonomy to HTTP statuses.
func transferError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, balance.ErrInsufficientBalance),
		errors.Is(err, balance.ErrInvalidAmount),
		errors.Is(err, balance.ErrSelfTransfer),
		errors.Is(err, escrow.ErrInvalidRecipient),
		errors.Is(err, escrow.ErrInvoiceNotPending),
		errors.Is(err, escrow.ErrNotTopupInvoice),
		errors.Is(err, escrow.ErrInvoiceNotPaid):
		return utils.BadRequest(c, err.Error())
	case errors.Is(err, balance.ErrAccountNotFound),
		errors.Is(err, repositories.ErrInvoiceNotFound):
		return utils.NotFound(c, err.Error())
	case errors.Is(err, escrow.ErrNotInvoiceOwner):
		return utils.Forbidden(c, err.Error())
	case errors.Is(err, escrow.ErrInvoiceAlreadyClaimed):
		return utils.Conflict(c, err.Error())
	case errors.Is(err, escrow.ErrPendingReconciliation):
		return utils.Respond(c, fiber.StatusAccepted, fiber.Map{"status": "pending_reconciliation"})
	case paygram.IsRejected(err):
		return utils.BadRequest(c, err.Error())
	case paygram.IsUnavailable(err):
		return utils.Respond(c, fiber.StatusServiceUnavailable, fiber.Map{"error": "wallet provider unavailable"})
	}
	return utils.InternalError(c, "operation failed")
}
