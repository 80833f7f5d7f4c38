package card

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"payverse/internal/models"
)

type service struct {
	charger Charger
	ledger  Ledger
}

// NewService creates the card top-up service.
func NewService(charger Charger, ledger Ledger) Service {
	if charger == nil {
		panic("charger is required")
	}
	if ledger == nil {
		panic("ledger is required")
	}
	return &service{charger: charger, ledger: ledger}
}

func (s *service) TopUp(ctx context.Context, userID uint, input TopUpInput) (*TopUpResult, error) {
	if input.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := validateExpiry(input); err != nil {
		return nil, err
	}

	tok, cardType, err := s.charger.Tokenize(input)
	if err != nil {
		return nil, err
	}

	chargeID, err := s.charger.Charge(tok, int64(input.Amount*100), fmt.Sprintf("balance top-up for user %d", userID))
	if err != nil {
		return nil, err
	}

	// The charge has settled on the card rails; the local credit must
	// follow even if it takes a retry by support, so the charge id goes
	// into the audit note for traceability.
	res, err := s.ledger.Credit(ctx, userID, input.Amount, models.TransactionTypeManualDeposit,
		"card top-up, charge "+chargeID, nil)
	if err != nil {
		return nil, fmt.Errorf("charge %s succeeded but local credit failed: %w", chargeID, err)
	}

	return &TopUpResult{ChargeID: chargeID, CardType: cardType, Ledger: res}, nil
}

func validateExpiry(input TopUpInput) error {
	if input.CardNumber == "" {
		return ErrInvalidCard
	}
	// Tokenized references carry no expiry to validate.
	if len(input.CardNumber) > 4 && input.CardNumber[:4] == "tok_" {
		return nil
	}
	month, err := strconv.Atoi(input.ExpiryMonth)
	if err != nil || month < 1 || month > 12 {
		return ErrInvalidCard
	}
	year, err := strconv.Atoi(input.ExpiryYear)
	if err != nil {
		return ErrInvalidCard
	}

	now := time.Now()
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return ErrCardExpired
	}
	return nil
}
