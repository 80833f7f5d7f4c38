package card

import (
	"context"
	"errors"

	"payverse/internal/services/balance"
)

var (
	ErrInvalidCard   = errors.New("invalid card details")
	ErrCardExpired   = errors.New("card has expired")
	ErrChargeFailed  = errors.New("card charge was declined")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// TopUpInput carries the card details and amount for a card-funded top-up.
// CardNumber may be a pre-tokenized "tok_" reference from Stripe Elements.
type TopUpInput struct {
	Amount      float64 `json:"amount"`
	CardNumber  string  `json:"card_number"`
	ExpiryMonth string  `json:"expiry_month"`
	ExpiryYear  string  `json:"expiry_year"`
	CVC         string  `json:"cvc"`
}

// TopUpResult reports a settled card top-up.
type TopUpResult struct {
	ChargeID string                  `json:"charge_id"`
	CardType string                  `json:"card_type"`
	Ledger   *balance.MutationResult `json:"ledger"`
}

// Service funds a local balance from a payment card. The card rails are a
// side channel next to the wallet provider: the money arrives on the
// platform's Stripe account and the user is credited as a manual deposit.
type Service interface {
	TopUp(ctx context.Context, userID uint, input TopUpInput) (*TopUpResult, error)
}

// Charger is the Stripe slice the service needs: tokenize a card and
// charge the token.
type Charger interface {
	Tokenize(input TopUpInput) (token string, cardType string, err error)
	Charge(token string, amountCentavos int64, description string) (chargeID string, err error)
}

// Ledger credits the user once the charge has settled.
type Ledger interface {
	Credit(ctx context.Context, accountID uint, amount float64, txType, note string, counterpartyID *uint) (*balance.MutationResult, error)
}
