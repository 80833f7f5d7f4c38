package casino

import (
	"fmt"

	"payverse/internal/models"
)

// transitions is the adjacency table for casino transaction states. A status
// change outside this table is a bug, not a recoverable condition.
//
// Buy (token -> chips):  initiated -> escrow_debited -> casino_debited -> completed
// Sell (chips -> token): initiated -> casino_debited -> payout_pending -> escrow_debited -> completed
// Compensation: refund_pending restores tokens after a failed buy,
// redeposit_pending restores chips after a failed sell payout.
var transitions = map[string][]string{
	models.CasinoStateInitiated: {
		models.CasinoStateEscrowDebited,
		models.CasinoStateCasinoDebited,
		models.CasinoStateFailed,
		models.CasinoStateManualRequired,
	},
	models.CasinoStateEscrowDebited: {
		models.CasinoStateCasinoDebited,
		models.CasinoStateRefundPending,
		models.CasinoStateCompleted,
		models.CasinoStateFailed,
		models.CasinoStateManualRequired,
	},
	models.CasinoStateCasinoDebited: {
		models.CasinoStateCompleted,
		models.CasinoStatePayoutPending,
		models.CasinoStateRedepositPending,
		models.CasinoStateFailed,
		models.CasinoStateManualRequired,
	},
	models.CasinoStatePayoutPending: {
		models.CasinoStateEscrowDebited,
		models.CasinoStateRedepositPending,
		models.CasinoStateFailed,
		models.CasinoStateManualRequired,
	},
	models.CasinoStateRefundPending: {
		models.CasinoStateCompleted,
		models.CasinoStateManualRequired,
	},
	models.CasinoStateRedepositPending: {
		models.CasinoStateCompleted,
		models.CasinoStateManualRequired,
	},
	models.CasinoStateCompleted:      {},
	models.CasinoStateFailed:         {},
	models.CasinoStateManualRequired: {},
}

// CanTransition reports whether from -> to is in the adjacency table.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state admits no further transitions.
// manual_required is terminal for the machine but pending for a human.
func IsTerminal(state string) bool {
	return len(transitions[state]) == 0
}

// transition applies a status change after validating it against the table.
func (s *service) transition(tx *models.CasinoTransaction, to string) error {
	if !CanTransition(tx.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Status, to)
	}
	tx.Status = to
	return s.repo.Update(tx)
}
