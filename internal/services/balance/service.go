package balance

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"payverse/internal/models"
	"payverse/internal/repositories/cache"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	balanceCacheTTL = 5 * time.Minute
)

type service struct {
	db    *gorm.DB
	cache *cache.CacheService
}

// NewService creates a new balance service.
func NewService(db *gorm.DB, cacheService *cache.CacheService) Service {
	if db == nil {
		panic("db is required")
	}
	return &service{
		db:    db,
		cache: cacheService,
	}
}

func (s *service) Credit(ctx context.Context, accountID uint, amount float64, txType, note string, counterpartyID *uint) (*MutationResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	amount = round2(amount)

	var res MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := lockAccount(tx, accountID)
		if err != nil {
			return err
		}

		res.PreviousBalance = account.Balance
		account.Balance = round2(account.Balance + amount)
		if err := tx.Save(account).Error; err != nil {
			return fmt.Errorf("failed to save balance: %w", err)
		}

		txn := &models.Transaction{
			SenderID:   counterpartyID,
			ReceiverID: &accountID,
			Amount:     amount,
			Type:       txType,
			Status:     models.TransactionStatusCompleted,
			Note:       note,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		res.NewBalance = account.Balance
		res.Transaction = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, accountID)
	return &res, nil
}

func (s *service) Debit(ctx context.Context, accountID uint, amount float64, txType, note string, counterpartyID *uint) (*MutationResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	amount = round2(amount)

	var res MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := lockAccount(tx, accountID)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return ErrInsufficientBalance
		}

		res.PreviousBalance = account.Balance
		account.Balance = round2(account.Balance - amount)
		if err := tx.Save(account).Error; err != nil {
			return fmt.Errorf("failed to save balance: %w", err)
		}

		txn := &models.Transaction{
			SenderID:   &accountID,
			ReceiverID: counterpartyID,
			Amount:     amount,
			Type:       txType,
			Status:     models.TransactionStatusCompleted,
			Note:       note,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		res.NewBalance = account.Balance
		res.Transaction = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, accountID)
	return &res, nil
}

func (s *service) Transfer(ctx context.Context, senderID, receiverID uint, amount float64, note string) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if senderID == receiverID {
		return nil, ErrSelfTransfer
	}
	amount = round2(amount)

	var res TransferResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock both rows in id order so concurrent opposing transfers
		// cannot deadlock.
		first, second := senderID, receiverID
		if second < first {
			first, second = second, first
		}
		locked := map[uint]*models.User{}
		for _, id := range []uint{first, second} {
			account, err := lockAccount(tx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}

		sender, receiver := locked[senderID], locked[receiverID]
		if sender.Balance < amount {
			return ErrInsufficientBalance
		}

		res.Sender.PreviousBalance = sender.Balance
		res.Receiver.PreviousBalance = receiver.Balance
		sender.Balance = round2(sender.Balance - amount)
		receiver.Balance = round2(receiver.Balance + amount)

		if err := tx.Save(sender).Error; err != nil {
			return fmt.Errorf("failed to save sender balance: %w", err)
		}
		if err := tx.Save(receiver).Error; err != nil {
			return fmt.Errorf("failed to save receiver balance: %w", err)
		}

		txn := &models.Transaction{
			SenderID:   &senderID,
			ReceiverID: &receiverID,
			Amount:     amount,
			Type:       models.TransactionTypeTransfer,
			Status:     models.TransactionStatusCompleted,
			Note:       note,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		res.Sender.NewBalance = sender.Balance
		res.Receiver.NewBalance = receiver.Balance
		res.Sender.Transaction = txn
		res.Receiver.Transaction = txn
		res.Transaction = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, senderID)
	s.invalidateBalance(ctx, receiverID)
	return &res, nil
}

// SyncFromExternal overwrites the local balance with the provider's
// authoritative value. The observed value always wins; an audit record is
// inserted only when the drift reaches SyncThreshold.
func (s *service) SyncFromExternal(ctx context.Context, accountID uint, observed float64, reason string) (*MutationResult, error) {
	observed = round2(observed)

	var res MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := lockAccount(tx, accountID)
		if err != nil {
			return err
		}

		res.PreviousBalance = account.Balance
		delta := round2(observed - account.Balance)
		account.Balance = observed
		if err := tx.Save(account).Error; err != nil {
			return fmt.Errorf("failed to save balance: %w", err)
		}
		res.NewBalance = observed

		txType, audit := classifySyncDelta(delta)
		if !audit {
			return nil
		}

		txn := &models.Transaction{
			Amount: math.Abs(delta),
			Type:   txType,
			Status: models.TransactionStatusCompleted,
			Note:   reason,
		}
		if txType == models.TransactionTypeSyncCredit {
			txn.ReceiverID = &accountID
		} else {
			txn.SenderID = &accountID
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to record sync transaction: %w", err)
		}
		res.Transaction = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, accountID)
	return &res, nil
}

// HasSufficientBalance is a read-only guard used before external-facing
// operations so callers can fail fast without a remote call.
func (s *service) HasSufficientBalance(ctx context.Context, accountID uint, amount float64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	var account models.User
	if err := s.db.WithContext(ctx).First(&account, accountID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, ErrAccountNotFound
		}
		return false, fmt.Errorf("failed to read balance: %w", err)
	}
	return account.Balance >= round2(amount), nil
}

func (s *service) GetBalance(ctx context.Context, accountID uint) (float64, error) {
	if s.cache != nil {
		var cached float64
		key := s.cache.GenerateKey("balance", "user", accountID)
		if found, _ := s.cache.Get(ctx, key, &cached); found {
			return cached, nil
		}
	}

	var account models.User
	if err := s.db.WithContext(ctx).First(&account, accountID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	if s.cache != nil {
		key := s.cache.GenerateKey("balance", "user", accountID)
		if err := s.cache.SetWithTTL(ctx, key, account.Balance, balanceCacheTTL); err != nil {
			log.Printf("failed to cache balance for user %d: %v", accountID, err)
		}
	}
	return account.Balance, nil
}

func (s *service) invalidateBalance(ctx context.Context, accountID uint) {
	if s.cache == nil {
		return
	}
	key := s.cache.GenerateKey("balance", "user", accountID)
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Printf("failed to invalidate balance cache for user %d: %v", accountID, err)
	}
}

func lockAccount(tx *gorm.DB, accountID uint) (*models.User, error) {
	q := tx
	// sqlite rejects FOR UPDATE and serializes writers anyway; postgres
	// needs the row lock.
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account models.User
	err := q.First(&account, accountID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}
	return &account, nil
}

// classifySyncDelta maps a sync drift to its audit transaction type. Deltas
// below SyncThreshold produce no audit record.
func classifySyncDelta(delta float64) (string, bool) {
	if math.Abs(delta) < SyncThreshold {
		return "", false
	}
	if delta > 0 {
		return models.TransactionTypeSyncCredit, true
	}
	return models.TransactionTypeSyncDebit, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
