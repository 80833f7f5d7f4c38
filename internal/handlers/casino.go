package handlers

import (
	"context"
	"errors"

	"payverse/internal/models"
	"payverse/internal/repositories"
	"payverse/internal/services/balance"
	"payverse/internal/services/casino"
	"payverse/internal/services/paygram"
	"payverse/internal/services/security"
	"payverse/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type CasinoHandler struct {
	casino casino.Service
	pins   security.Service
	users  repositories.UserRepository
}

func NewCasinoHandler(casinoService casino.Service, pins security.Service, users repositories.UserRepository) *CasinoHandler {
	return &CasinoHandler{casino: casinoService, pins: pins, users: users}
}

// Link records the caller's casino-side account id. Chip legs address that
// identity from then on instead of the wallet identifier.
func (h *CasinoHandler) Link(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		CasinoClientID string `json:"casino_client_id"`
	}
	if err := c.BodyParser(&input); err != nil || input.CasinoClientID == "" {
		return utils.BadRequest(c, "casino_client_id is required")
	}

	user, err := h.users.GetByID(claims.UserID)
	if err != nil {
		return utils.NotFound(c, "account not found")
	}
	user.CasinoClientID = input.CasinoClientID
	if err := h.users.Update(user); err != nil {
		return utils.InternalError(c, "failed to link casino account")
	}

	return utils.Success(c, fiber.Map{"casino_client_id": user.CasinoClientID})
}

func (h *CasinoHandler) Buy(c *fiber.Ctx) error {
	return h.execute(c, h.casino.Buy)
}

func (h *CasinoHandler) Sell(c *fiber.Ctx) error {
	return h.execute(c, h.casino.Sell)
}

func (h *CasinoHandler) Status(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	refID := c.Params("ref")
	tx, err := h.casino.Status(c.Context(), refID)
	if err != nil {
		if errors.Is(err, repositories.ErrCasinoTxNotFound) {
			return utils.NotFound(c, "transaction not found")
		}
		return utils.InternalError(c, "failed to get transaction")
	}
	if tx.UserID != claims.UserID && claims.Role == models.RoleUser {
		return utils.Forbidden(c, "not your transaction")
	}

	return utils.Success(c, casinoTxView(tx))
}

func (h *CasinoHandler) execute(c *fiber.Ctx, op func(ctx context.Context, userID uint, amount float64) (*models.CasinoTransaction, error)) error {
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

	tx, err := op(c.Context(), claims.UserID, input.Amount)
	if err != nil {
		if tx != nil {
			// The transaction exists; report its state alongside the
			// failure so the client can track it.
			status := fiber.StatusUnprocessableEntity
			switch {
			case errors.Is(err, balance.ErrInsufficientBalance):
				status = fiber.StatusBadRequest
			case paygram.IsUnavailable(err):
				status = fiber.StatusServiceUnavailable
			case paygram.IsAmbiguous(err):
				status = fiber.StatusAccepted
			}
			return utils.Respond(c, status, casinoTxView(tx))
		}
		switch {
		case errors.Is(err, casino.ErrInvalidAmount):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, repositories.ErrUserNotFound):
			return utils.NotFound(c, err.Error())
		}
		return utils.InternalError(c, "casino operation failed")
	}

	return utils.Success(c, casinoTxView(tx))
}

func casinoTxView(tx *models.CasinoTransaction) fiber.Map {
	return fiber.Map{
		"ref":    tx.RefID,
		"type":   tx.Type,
		"amount": tx.Amount,
		"status": tx.Status,
	}
}
