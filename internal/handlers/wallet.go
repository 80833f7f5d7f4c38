package handlers

import (
	"errors"

	"payverse/internal/repositories"
	"payverse/internal/services/balance"
	"payverse/internal/services/card"
	"payverse/internal/services/security"
	"payverse/internal/services/syncer"
	"payverse/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	balances balance.Service
	txRepo   repositories.TransactionRepository
	pins     security.Service
	cards    card.Service
	syncs    syncer.Service
}

func NewWalletHandler(balances balance.Service, txRepo repositories.TransactionRepository, pins security.Service, cards card.Service, syncs syncer.Service) *WalletHandler {
	return &WalletHandler{
		balances: balances,
		txRepo:   txRepo,
		pins:     pins,
		cards:    cards,
		syncs:    syncs,
	}
}

func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	bal, err := h.balances.GetBalance(c.Context(), claims.UserID)
	if err != nil {
		return utils.InternalError(c, "failed to get balance")
	}

	return utils.Success(c, fiber.Map{"balance": bal})
}

func (h *WalletHandler) GetTransactions(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	txs, err := h.txRepo.ListByUser(claims.UserID, limit, offset)
	if err != nil {
		return utils.InternalError(c, "failed to list transactions")
	}

	return utils.Success(c, fiber.Map{
		"transactions": txs,
		"limit":        limit,
		"offset":       offset,
	})
}

// SetPin sets or replaces the transaction PIN for high-value operations.
func (h *WalletHandler) SetPin(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Pin string `json:"pin"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	if err := h.pins.SetPin(c.Context(), claims.UserID, input.Pin); err != nil {
		if errors.Is(err, security.ErrWeakPin) {
			return utils.BadRequest(c, err.Error())
		}
		return utils.InternalError(c, "failed to set pin")
	}

	return utils.Success(c, fiber.Map{"message": "pin set"})
}

// CardTopUp funds the balance from a payment card.
func (h *WalletHandler) CardTopUp(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input card.TopUpInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	res, err := h.cards.TopUp(c.Context(), claims.UserID, input)
	if err != nil {
		switch {
		case errors.Is(err, card.ErrInvalidAmount),
			errors.Is(err, card.ErrInvalidCard),
			errors.Is(err, card.ErrCardExpired):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, card.ErrChargeFailed):
			return utils.Respond(c, fiber.StatusPaymentRequired, fiber.Map{"error": err.Error()})
		}
		return utils.InternalError(c, "card top-up failed")
	}

	return utils.Success(c, fiber.Map{
		"charge_id": res.ChargeID,
		"card_type": res.CardType,
		"balance":   res.Ledger.NewBalance,
	})
}

// SyncBalance re-reads the provider balance for the caller's own account.
func (h *WalletHandler) SyncBalance(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	res, err := h.syncs.SyncAccount(c.Context(), claims.UserID, "user requested sync")
	if err != nil {
		return utils.InternalError(c, "balance sync failed")
	}

	return utils.Success(c, fiber.Map{
		"previous_balance": res.PreviousBalance,
		"balance":          res.NewBalance,
		"corrected":        res.Transaction != nil,
	})
}
