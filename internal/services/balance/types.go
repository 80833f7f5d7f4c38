package balance

import (
	"context"

	"payverse/internal/models"
)

// SyncThreshold is the minimum drift between the local and the externally
// observed balance that produces an audit record. Smaller deltas still
// overwrite the local value but are treated as rounding noise.
const SyncThreshold = 0.01

// MutationResult reports one applied balance mutation together with the audit
// record inserted in the same database transaction.
type MutationResult struct {
	PreviousBalance float64
	NewBalance      float64
	Transaction     *models.Transaction
}

// TransferResult reports both sides of a completed transfer. A single shared
// audit record is referenced by both sides.
type TransferResult struct {
	Sender      MutationResult
	Receiver    MutationResult
	Transaction *models.Transaction
}

// Service is the only sanctioned entry point for mutating a local balance.
// Every mutation and its audit record commit in one database transaction with
// the account row locked for update.
type Service interface {
	Credit(ctx context.Context, accountID uint, amount float64, txType, note string, counterpartyID *uint) (*MutationResult, error)
	Debit(ctx context.Context, accountID uint, amount float64, txType, note string, counterpartyID *uint) (*MutationResult, error)
	Transfer(ctx context.Context, senderID, receiverID uint, amount float64, note string) (*TransferResult, error)
	SyncFromExternal(ctx context.Context, accountID uint, observed float64, reason string) (*MutationResult, error)
	HasSufficientBalance(ctx context.Context, accountID uint, amount float64) (bool, error)
	GetBalance(ctx context.Context, accountID uint) (float64, error)
}
