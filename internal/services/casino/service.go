package casino

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"payverse/internal/models"
	"payverse/internal/services/balance"
	"payverse/internal/services/paygram"
)

const (
	maxRetries  = 3
	baseBackoff = 30 * time.Second
)

// Service runs the two-sided chip buy/sell flows. The token leg moves on the
// local ledger between the user and the escrow account; the chip leg moves on
// the casino side through the bridge. Every transaction is tracked in the
// state machine so a partial failure is always visible and compensable.
type Service interface {
	// Buy converts tokens into chips: debit the user on the local ledger,
	// then credit chips through the bridge.
	Buy(ctx context.Context, userID uint, amount float64) (*models.CasinoTransaction, error)
	// Sell converts chips back into tokens: debit chips through the bridge,
	// then pay the user out of the escrow account.
	Sell(ctx context.Context, userID uint, amount float64) (*models.CasinoTransaction, error)
	// Status looks up a transaction by its reference id.
	Status(ctx context.Context, refID string) (*models.CasinoTransaction, error)
	// ProcessDueRetries drives every transaction whose retry is due. It is
	// called by the retry worker and by admins forcing a sweep.
	ProcessDueRetries(ctx context.Context) (int, error)
	// Resolve closes a manual_required transaction by admin decision.
	Resolve(ctx context.Context, refID string, adminID uint, markCompleted bool, note string) (*models.CasinoTransaction, error)
}

// TokenLedger is the token leg of a casino flow: a local transfer between
// the user and the escrow account.
type TokenLedger interface {
	EscrowTransfer(ctx context.Context, senderID, receiverID uint, amount float64, note string) (*balance.TransferResult, error)
}

// CasinoStore persists casino transactions.
type CasinoStore interface {
	Create(tx *models.CasinoTransaction) error
	GetByRefID(refID string) (*models.CasinoTransaction, error)
	Update(tx *models.CasinoTransaction) error
	ListDueForRetry(now time.Time) ([]models.CasinoTransaction, error)
}

// AccountStore resolves the accounts a casino flow touches.
type AccountStore interface {
	GetByID(id uint) (*models.User, error)
	GetEscrowAccount() (*models.User, error)
}

type service struct {
	repo     CasinoStore
	tokens   TokenLedger
	chips    ChipGateway
	accounts AccountStore
}

// NewService creates the casino transaction service.
func NewService(repo CasinoStore, tokens TokenLedger, chips ChipGateway, accounts AccountStore) Service {
	if repo == nil {
		panic("casino store is required")
	}
	if tokens == nil {
		panic("token ledger is required")
	}
	if chips == nil {
		panic("chip gateway is required")
	}
	if accounts == nil {
		panic("account store is required")
	}
	return &service{repo: repo, tokens: tokens, chips: chips, accounts: accounts}
}

func (s *service) Buy(ctx context.Context, userID uint, amount float64) (*models.CasinoTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.accounts.GetByID(userID)
	if err != nil {
		return nil, err
	}
	escrow, err := s.accounts.GetEscrowAccount()
	if err != nil {
		return nil, err
	}

	tx := &models.CasinoTransaction{
		UserID:      userID,
		Type:        models.CasinoTxBuy,
		Amount:      amount,
		Status:      models.CasinoStateInitiated,
		RefID:       uuid.New().String(),
		CasinoNonce: uuid.New().String(),
	}
	if err := s.repo.Create(tx); err != nil {
		return nil, fmt.Errorf("failed to record casino buy: %w", err)
	}

	// Token leg first: take the tokens into escrow before anything
	// irreversible happens on the casino side.
	_, err = s.tokens.EscrowTransfer(ctx, userID, escrow.ID, amount, "casino buy "+tx.RefID)
	if err != nil {
		tx.FailureStep = "token_debit"
		tx.FailureReason = err.Error()
		if terr := s.transition(tx, models.CasinoStateFailed); terr != nil {
			return tx, terr
		}
		return tx, err
	}
	if err := s.transition(tx, models.CasinoStateEscrowDebited); err != nil {
		return tx, err
	}

	// Chip leg: idempotent on the nonce, so a rerun cannot double-credit.
	_, err = s.chips.CreditChips(ctx, ChipRequest{
		CasinoClientID: user.CasinoID(),
		Amount:         amount,
		Nonce:          tx.CasinoNonce,
	})
	if err != nil {
		tx.FailureStep = "chip_credit"
		tx.FailureReason = err.Error()
		if paygram.IsAmbiguous(err) {
			// Chips may or may not have landed. Refunding here could pay
			// the user twice, so a human has to look.
			if terr := s.transition(tx, models.CasinoStateManualRequired); terr != nil {
				return tx, terr
			}
			return tx, err
		}
		if terr := s.transition(tx, models.CasinoStateRefundPending); terr != nil {
			return tx, terr
		}
		s.attemptRefund(ctx, tx, escrow.ID)
		return tx, err
	}

	if err := s.transition(tx, models.CasinoStateCasinoDebited); err != nil {
		return tx, err
	}
	if err := s.transition(tx, models.CasinoStateCompleted); err != nil {
		return tx, err
	}
	return tx, nil
}

func (s *service) Sell(ctx context.Context, userID uint, amount float64) (*models.CasinoTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.accounts.GetByID(userID)
	if err != nil {
		return nil, err
	}
	escrow, err := s.accounts.GetEscrowAccount()
	if err != nil {
		return nil, err
	}

	tx := &models.CasinoTransaction{
		UserID:      userID,
		Type:        models.CasinoTxSell,
		Amount:      amount,
		Status:      models.CasinoStateInitiated,
		RefID:       uuid.New().String(),
		CasinoNonce: uuid.New().String(),
	}
	if err := s.repo.Create(tx); err != nil {
		return nil, fmt.Errorf("failed to record casino sell: %w", err)
	}

	// Chip leg first: the bridge rejects cleanly when the player lacks
	// chips, so no local state has to be unwound on the common failure.
	receipt, err := s.chips.DebitChips(ctx, ChipRequest{
		CasinoClientID: user.CasinoID(),
		Amount:         amount,
		Nonce:          tx.CasinoNonce,
	})
	if err != nil {
		tx.FailureStep = "chip_debit"
		tx.FailureReason = err.Error()
		target := models.CasinoStateFailed
		if paygram.IsAmbiguous(err) {
			target = models.CasinoStateManualRequired
		}
		if terr := s.transition(tx, target); terr != nil {
			return tx, terr
		}
		return tx, err
	}
	tx.ExternalTxID = receipt.TransactionID
	if err := s.transition(tx, models.CasinoStateCasinoDebited); err != nil {
		return tx, err
	}
	if err := s.transition(tx, models.CasinoStatePayoutPending); err != nil {
		return tx, err
	}

	s.attemptPayout(ctx, tx, escrow.ID)
	return tx, nil
}

func (s *service) Status(ctx context.Context, refID string) (*models.CasinoTransaction, error) {
	return s.repo.GetByRefID(refID)
}

// attemptRefund returns the escrowed tokens to the user after a failed buy.
func (s *service) attemptRefund(ctx context.Context, tx *models.CasinoTransaction, escrowID uint) {
	_, err := s.tokens.EscrowTransfer(ctx, escrowID, tx.UserID, tx.Amount, "casino buy refund "+tx.RefID)
	if err != nil {
		s.scheduleRetry(tx, err)
		return
	}
	if err := s.transition(tx, models.CasinoStateCompleted); err != nil {
		log.Printf("casino: refund completed but status update failed for %s: %v", tx.RefID, err)
	}
}

// attemptPayout pays the user out of escrow after a chip debit. A payout that
// exhausts its retries falls back to restoring the chips.
func (s *service) attemptPayout(ctx context.Context, tx *models.CasinoTransaction, escrowID uint) {
	_, err := s.tokens.EscrowTransfer(ctx, escrowID, tx.UserID, tx.Amount, "casino sell payout "+tx.RefID)
	if err != nil {
		if tx.RetryCount >= maxRetries {
			tx.FailureStep = "token_payout"
			tx.FailureReason = err.Error()
			tx.RetryCount = 0
			tx.RollbackAttempts = 0
			if terr := s.transition(tx, models.CasinoStateRedepositPending); terr != nil {
				log.Printf("casino: payout escalation failed for %s: %v", tx.RefID, terr)
				return
			}
			s.attemptRedeposit(ctx, tx)
			return
		}
		s.scheduleRetry(tx, err)
		return
	}
	if err := s.transition(tx, models.CasinoStateEscrowDebited); err != nil {
		log.Printf("casino: payout done but status update failed for %s: %v", tx.RefID, err)
		return
	}
	if err := s.transition(tx, models.CasinoStateCompleted); err != nil {
		log.Printf("casino: payout done but status update failed for %s: %v", tx.RefID, err)
	}
}

// attemptRedeposit restores the user's chips after an abandoned payout.
func (s *service) attemptRedeposit(ctx context.Context, tx *models.CasinoTransaction) {
	user, err := s.accounts.GetByID(tx.UserID)
	if err != nil {
		s.scheduleRetry(tx, err)
		return
	}
	// A distinct nonce keeps the redeposit from colliding with the
	// original debit on the casino side.
	_, err = s.chips.CreditChips(ctx, ChipRequest{
		CasinoClientID: user.CasinoID(),
		Amount:         tx.Amount,
		Nonce:          tx.CasinoNonce + "-comp",
	})
	if err != nil {
		if paygram.IsAmbiguous(err) {
			tx.FailureReason = err.Error()
			if terr := s.transition(tx, models.CasinoStateManualRequired); terr != nil {
				log.Printf("casino: redeposit escalation failed for %s: %v", tx.RefID, terr)
			}
			return
		}
		tx.RollbackAttempts++
		s.scheduleRetry(tx, err)
		return
	}
	if err := s.transition(tx, models.CasinoStateCompleted); err != nil {
		log.Printf("casino: redeposit done but status update failed for %s: %v", tx.RefID, err)
	}
}

// scheduleRetry bumps the retry counter with exponential backoff, escalating
// to manual_required once the cap is exceeded.
func (s *service) scheduleRetry(tx *models.CasinoTransaction, cause error) {
	tx.FailureReason = cause.Error()
	if tx.RetryCount >= maxRetries {
		tx.NextRetryAt = nil
		if err := s.transition(tx, models.CasinoStateManualRequired); err != nil {
			log.Printf("casino: escalation failed for %s: %v", tx.RefID, err)
		}
		return
	}
	backoff := baseBackoff * (1 << tx.RetryCount)
	tx.RetryCount++
	next := time.Now().Add(backoff)
	tx.NextRetryAt = &next
	if err := s.repo.Update(tx); err != nil {
		log.Printf("casino: retry scheduling failed for %s: %v", tx.RefID, err)
	}
}

func (s *service) ProcessDueRetries(ctx context.Context) (int, error) {
	due, err := s.repo.ListDueForRetry(time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to list due retries: %w", err)
	}
	escrow, err := s.accounts.GetEscrowAccount()
	if err != nil {
		return 0, err
	}
	for i := range due {
		tx := &due[i]
		switch tx.Status {
		case models.CasinoStateRefundPending:
			s.attemptRefund(ctx, tx, escrow.ID)
		case models.CasinoStatePayoutPending:
			s.attemptPayout(ctx, tx, escrow.ID)
		case models.CasinoStateRedepositPending:
			s.attemptRedeposit(ctx, tx)
		}
	}
	return len(due), nil
}

func (s *service) Resolve(ctx context.Context, refID string, adminID uint, markCompleted bool, note string) (*models.CasinoTransaction, error) {
	tx, err := s.repo.GetByRefID(refID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.CasinoStateManualRequired {
		return nil, ErrNotResolvable
	}
	// Manual resolution is the one sanctioned override of the adjacency
	// table: the admin asserts the real-world outcome after inspecting
	// both ledgers.
	if markCompleted {
		tx.Status = models.CasinoStateCompleted
	} else {
		tx.Status = models.CasinoStateFailed
	}
	tx.ResolvedBy = &adminID
	tx.ResolutionNote = note
	tx.NextRetryAt = nil
	if err := s.repo.Update(tx); err != nil {
		return nil, fmt.Errorf("failed to resolve casino transaction: %w", err)
	}
	return tx, nil
}
