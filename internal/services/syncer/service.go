package syncer

import (
	"context"
	"fmt"
	"log"
	"time"

	"payverse/internal/models"
	"payverse/internal/services/balance"
	"payverse/internal/services/paygram"
)

// interCallDelay spaces provider calls during a sweep so a large user base
// does not hammer the provider API.
const interCallDelay = 200 * time.Millisecond

// Service reconciles local balances against the wallet provider. The
// provider is authoritative: a sync always overwrites the local balance with
// the observed value, and drift above the audit threshold leaves a
// transaction record behind.
type Service interface {
	// SyncAccount re-reads one account's provider balance and corrects
	// local drift.
	SyncAccount(ctx context.Context, accountID uint, reason string) (*balance.MutationResult, error)
	// SyncAll sweeps every active account. Per-account failures are
	// logged and counted, never fatal to the sweep.
	SyncAll(ctx context.Context, reason string) (*SweepReport, error)
}

// SweepReport summarizes one reconciliation pass.
type SweepReport struct {
	Accounts  int
	Synced    int
	Corrected int
	Failed    int
}

// AccountStore lists the accounts a sweep visits.
type AccountStore interface {
	GetByID(id uint) (*models.User, error)
	ListActive() ([]models.User, error)
}

// BalanceReader is the read-only slice of the provider gateway a sync needs.
type BalanceReader interface {
	UserInfo(ctx context.Context, clientID string) (*paygram.UserInfo, error)
}

// Ledger applies the observed balance locally.
type Ledger interface {
	SyncFromExternal(ctx context.Context, accountID uint, observed float64, reason string) (*balance.MutationResult, error)
}

type service struct {
	accounts AccountStore
	gateway  BalanceReader
	ledger   Ledger
	delay    time.Duration
}

// NewService creates the reconciliation service.
func NewService(accounts AccountStore, gateway BalanceReader, ledger Ledger) Service {
	if accounts == nil {
		panic("account store is required")
	}
	if gateway == nil {
		panic("balance reader is required")
	}
	if ledger == nil {
		panic("ledger is required")
	}
	return &service{accounts: accounts, gateway: gateway, ledger: ledger, delay: interCallDelay}
}

func (s *service) SyncAccount(ctx context.Context, accountID uint, reason string) (*balance.MutationResult, error) {
	user, err := s.accounts.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	info, err := s.gateway.UserInfo(ctx, user.PaygramID)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider balance for %s: %w", user.PaygramID, err)
	}
	res, err := s.ledger.SyncFromExternal(ctx, accountID, info.Balance, reason)
	if err != nil {
		return nil, err
	}
	if res.Transaction != nil {
		log.Printf("sync: corrected account %d from %.2f to %.2f (%s)",
			accountID, res.PreviousBalance, res.NewBalance, reason)
	}
	return res, nil
}

func (s *service) SyncAll(ctx context.Context, reason string) (*SweepReport, error) {
	users, err := s.accounts.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for sync: %w", err)
	}

	report := &SweepReport{Accounts: len(users)}
	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := s.SyncAccount(ctx, users[i].ID, reason)
		if err != nil {
			report.Failed++
			log.Printf("sync: account %d failed: %v", users[i].ID, err)
		} else {
			report.Synced++
			if res.Transaction != nil {
				report.Corrected++
			}
		}
		if s.delay > 0 && i < len(users)-1 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
	return report, nil
}
