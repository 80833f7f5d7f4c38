package card

import (
	"fmt"
	"log"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/charge"
	"github.com/stripe/stripe-go/v72/token"

	"payverse/internal/config"
)

// StripeCharger implements Charger against the Stripe API.
type StripeCharger struct{}

func NewStripeCharger() *StripeCharger {
	stripe.Key = config.GetEnv("STRIPE_SECRET_KEY", "")
	return &StripeCharger{}
}

func (c *StripeCharger) Tokenize(input TopUpInput) (string, string, error) {
	// Pre-tokenized references from Stripe Elements pass straight through.
	if strings.HasPrefix(input.CardNumber, "tok_") {
		return input.CardNumber, cardTypeFromToken(input.CardNumber), nil
	}

	if !isValidCardNumber(input.CardNumber) {
		return "", "", ErrInvalidCard
	}

	params := &stripe.TokenParams{
		Card: &stripe.CardParams{
			Number:   stripe.String(input.CardNumber),
			ExpMonth: stripe.String(input.ExpiryMonth),
			ExpYear:  stripe.String(input.ExpiryYear),
			CVC:      stripe.String(input.CVC),
		},
	}
	stripeToken, err := token.New(params)
	if err != nil {
		log.Printf("stripe tokenization error: %v", err)
		return "", "", fmt.Errorf("stripe tokenization failed: %w", err)
	}
	return stripeToken.ID, string(stripeToken.Card.Brand), nil
}

func (c *StripeCharger) Charge(tok string, amountCentavos int64, description string) (string, error) {
	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(amountCentavos),
		Currency:    stripe.String(string(stripe.CurrencyPHP)),
		Description: stripe.String(description),
	}
	if err := params.SetSource(tok); err != nil {
		return "", fmt.Errorf("failed to set charge source: %w", err)
	}
	ch, err := charge.New(params)
	if err != nil {
		log.Printf("stripe charge error: %v", err)
		return "", fmt.Errorf("%w: %v", ErrChargeFailed, err)
	}
	return ch.ID, nil
}

func cardTypeFromToken(tok string) string {
	switch tok {
	case "tok_visa", "tok_visa_debit":
		return "Visa"
	case "tok_mastercard", "tok_mastercard_2":
		return "Mastercard"
	case "tok_amex":
		return "American Express"
	case "tok_discover":
		return "Discover"
	default:
		return "Unknown"
	}
}

// Luhn check over the card digits.
func isValidCardNumber(cardNumber string) bool {
	if cardNumber == "" {
		return false
	}
	var sum int
	shouldDouble := false

	for i := len(cardNumber) - 1; i >= 0; i-- {
		if cardNumber[i] < '0' || cardNumber[i] > '9' {
			return false
		}
		digit := int(cardNumber[i] - '0')

		if shouldDouble {
			digit = digit * 2
			if digit > 9 {
				digit -= 9
			}
		}

		sum += digit
		shouldDouble = !shouldDouble
	}

	return sum%10 == 0
}
