package handlers

import (
	"errors"

	"payverse/internal/models"
	"payverse/internal/repositories"
	"payverse/internal/services/balance"
	"payverse/internal/services/casino"
	"payverse/internal/services/escrow"
	"payverse/internal/services/syncer"
	"payverse/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler exposes the operational surface: escrow-mediated transfers,
// manual deposit approval, reconciliation sweeps, and resolution of stuck
// casino transactions.
type AdminHandler struct {
	escrow   escrow.Service
	balances balance.Service
	syncs    syncer.Service
	casino   casino.Service
	users    repositories.UserRepository
	casinoTx repositories.CasinoRepository
}

func NewAdminHandler(
	escrowService escrow.Service,
	balances balance.Service,
	syncs syncer.Service,
	casinoService casino.Service,
	users repositories.UserRepository,
	casinoTx repositories.CasinoRepository,
) *AdminHandler {
	return &AdminHandler{
		escrow:   escrowService,
		balances: balances,
		syncs:    syncs,
		casino:   casinoService,
		users:    users,
		casinoTx: casinoTx,
	}
}

// EscrowTransfer moves tokens between two accounts on the local ledger via
// the escrow protocol. Used for support corrections and prize payouts.
func (h *AdminHandler) EscrowTransfer(c *fiber.Ctx) error {
	var input struct {
		SenderID   uint    `json:"sender_id"`
		ReceiverID uint    `json:"receiver_id"`
		Amount     float64 `json:"amount"`
		Note       string  `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	res, err := h.escrow.EscrowTransfer(c.Context(), input.SenderID, input.ReceiverID, input.Amount, input.Note)
	if err != nil {
		return transferError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"transaction_id":   res.Transaction.ID,
		"sender_balance":   res.Sender.NewBalance,
		"receiver_balance": res.Receiver.NewBalance,
	})
}

// ApproveManualDeposit credits a user after an out-of-band payment has been
// verified by staff.
func (h *AdminHandler) ApproveManualDeposit(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		UserID uint    `json:"user_id"`
		Amount float64 `json:"amount"`
		Note   string  `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	escrowAccount, err := h.users.GetEscrowAccount()
	if err != nil {
		return utils.InternalError(c, "escrow account not configured")
	}

	note := input.Note
	if note == "" {
		note = "manual deposit"
	}
	res, err := h.balances.Credit(c.Context(), input.UserID, input.Amount,
		models.TransactionTypeManualDeposit, note, &escrowAccount.ID)
	if err != nil {
		return transferError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"transaction_id": res.Transaction.ID,
		"balance":        res.NewBalance,
		"approved_by":    claims.UserID,
	})
}

// AdjustBalance applies an audited correction to an account. A negative
// amount debits. Reserved for admins fixing verified discrepancies; the
// transaction note must say why.
func (h *AdminHandler) AdjustBalance(c *fiber.Ctx) error {
	var input struct {
		UserID uint    `json:"user_id"`
		Amount float64 `json:"amount"`
		Note   string  `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if input.Note == "" {
		return utils.BadRequest(c, "adjustment note is required")
	}

	var res *balance.MutationResult
	var err error
	if input.Amount >= 0 {
		res, err = h.balances.Credit(c.Context(), input.UserID, input.Amount,
			models.TransactionTypeAdjustment, input.Note, nil)
	} else {
		res, err = h.balances.Debit(c.Context(), input.UserID, -input.Amount,
			models.TransactionTypeAdjustment, input.Note, nil)
	}
	if err != nil {
		return transferError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"transaction_id": res.Transaction.ID,
		"balance":        res.NewBalance,
	})
}

// SyncAccount reconciles one account against the wallet provider.
func (h *AdminHandler) SyncAccount(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return utils.BadRequest(c, "invalid account id")
	}

	res, err := h.syncs.SyncAccount(c.Context(), uint(id), "admin reconciliation")
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return utils.NotFound(c, "account not found")
		}
		return utils.InternalError(c, "sync failed")
	}

	return utils.Success(c, fiber.Map{
		"previous_balance": res.PreviousBalance,
		"balance":          res.NewBalance,
		"corrected":        res.Transaction != nil,
	})
}

// SyncAll runs a full reconciliation sweep.
func (h *AdminHandler) SyncAll(c *fiber.Ctx) error {
	report, err := h.syncs.SyncAll(c.Context(), "admin reconciliation sweep")
	if err != nil {
		return utils.InternalError(c, "sweep failed")
	}

	return utils.Success(c, fiber.Map{
		"accounts":  report.Accounts,
		"synced":    report.Synced,
		"corrected": report.Corrected,
		"failed":    report.Failed,
	})
}

// ListStuckCasinoTransactions lists transactions waiting on human resolution.
func (h *AdminHandler) ListStuckCasinoTransactions(c *fiber.Ctx) error {
	txs, err := h.casinoTx.ListByStatus(models.CasinoStateManualRequired)
	if err != nil {
		return utils.InternalError(c, "failed to list transactions")
	}
	return utils.Success(c, fiber.Map{"transactions": txs})
}

// ResolveCasinoTransaction closes a manual_required transaction.
func (h *AdminHandler) ResolveCasinoTransaction(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Completed bool   `json:"completed"`
		Note      string `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	tx, err := h.casino.Resolve(c.Context(), c.Params("ref"), claims.UserID, input.Completed, input.Note)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrCasinoTxNotFound):
			return utils.NotFound(c, "transaction not found")
		case errors.Is(err, casino.ErrNotResolvable):
			return utils.Conflict(c, err.Error())
		}
		return utils.InternalError(c, "resolution failed")
	}

	return utils.Success(c, casinoTxView(tx))
}

// RetrySweep forces an immediate pass over due casino retries.
func (h *AdminHandler) RetrySweep(c *fiber.Ctx) error {
	processed, err := h.casino.ProcessDueRetries(c.Context())
	if err != nil {
		return utils.InternalError(c, "retry sweep failed")
	}
	return utils.Success(c, fiber.Map{"processed": processed})
}

// ListUsers returns the active accounts.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.users.ListActive()
	if err != nil {
		return utils.InternalError(c, "failed to list users")
	}

	out := make([]fiber.Map, 0, len(users))
	for i := range users {
		out = append(out, fiber.Map{
			"id":         users[i].ID,
			"username":   users[i].Username,
			"email":      users[i].Email,
			"role":       users[i].Role,
			"paygram_id": users[i].PaygramID,
			"balance":    users[i].Balance,
		})
	}
	return utils.Success(c, fiber.Map{"users": out})
}

// DeactivateUser disables an account; its balance is untouched.
func (h *AdminHandler) DeactivateUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return utils.BadRequest(c, "invalid account id")
	}

	user, err := h.users.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return utils.NotFound(c, "account not found")
		}
		return utils.InternalError(c, "failed to get user")
	}
	if user.Role == models.RoleSuperAdmin {
		return utils.Forbidden(c, "cannot deactivate the escrow account")
	}

	user.IsActive = false
	user.TokenVersion++
	if err := h.users.Update(user); err != nil {
		return utils.InternalError(c, "failed to update user")
	}

	return utils.Success(c, fiber.Map{"message": "account deactivated"})
}
