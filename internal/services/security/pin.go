package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payverse/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

// PinThreshold is the transfer amount at or above which a PIN check is
// required before the operation may proceed.
const PinThreshold = 5000.0

const (
	maxPinAttempts  = 5
	lockoutDuration = 30 * time.Minute
	pinMinLen       = 4
	pinMaxLen       = 6
)

var (
	ErrPinNotSet  = errors.New("transaction pin not set")
	ErrInvalidPin = errors.New("invalid pin")
	ErrPinLocked  = errors.New("pin locked due to repeated failures")
	ErrWeakPin    = errors.New("pin must be 4 to 6 digits")
)

// Service guards high-value operations with a transaction PIN. Failed
// attempts are counted on the account; crossing the attempt cap locks the
// PIN for a cooldown window.
type Service interface {
	SetPin(ctx context.Context, userID uint, pin string) error
	VerifyPin(ctx context.Context, userID uint, pin string) error
	// AuthorizeAmount enforces the PIN check for amounts at or above the
	// threshold. Amounts below it pass without a PIN.
	AuthorizeAmount(ctx context.Context, userID uint, amount float64, pin string) error
	RequiresPin(amount float64) bool
}

type service struct {
	userRepo repositories.UserRepository
}

func NewService(userRepo repositories.UserRepository) Service {
	if userRepo == nil {
		panic("user repository is required")
	}
	return &service{userRepo: userRepo}
}

func (s *service) SetPin(ctx context.Context, userID uint, pin string) error {
	if !validPin(pin) {
		return ErrWeakPin
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}
	user.PinHash = string(hashed)
	user.PinAttempts = 0
	user.PinLockedUntil = nil
	return s.userRepo.Update(user)
}

func (s *service) VerifyPin(ctx context.Context, userID uint, pin string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if user.PinHash == "" {
		return ErrPinNotSet
	}
	if user.PinLockedUntil != nil {
		if time.Now().Before(*user.PinLockedUntil) {
			return ErrPinLocked
		}
		// Lockout elapsed; counting starts over.
		user.PinAttempts = 0
		user.PinLockedUntil = nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte(pin)); err != nil {
		user.PinAttempts++
		if user.PinAttempts >= maxPinAttempts {
			until := time.Now().Add(lockoutDuration)
			user.PinLockedUntil = &until
		}
		if uerr := s.userRepo.Update(user); uerr != nil {
			return uerr
		}
		if user.PinLockedUntil != nil {
			return ErrPinLocked
		}
		return ErrInvalidPin
	}

	if user.PinAttempts != 0 || user.PinLockedUntil != nil {
		user.PinAttempts = 0
		user.PinLockedUntil = nil
		if err := s.userRepo.Update(user); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) AuthorizeAmount(ctx context.Context, userID uint, amount float64, pin string) error {
	if !s.RequiresPin(amount) {
		return nil
	}
	return s.VerifyPin(ctx, userID, pin)
}

func (s *service) RequiresPin(amount float64) bool {
	return amount >= PinThreshold
}

func validPin(pin string) bool {
	if len(pin) < pinMinLen || len(pin) > pinMaxLen {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
