package repositories

import (
	"fmt"

	"payverse/internal/models"

	"gorm.io/gorm"
)

// TransactionRepository is the data access surface for audit records.
// Inserts always happen inside the balance service's database transaction;
// the only permitted update is a status transition.
type TransactionRepository interface {
	GetByID(id uint) (*models.Transaction, error)
	GetByExternalID(externalID string) (*models.Transaction, error)
	UpdateStatus(id uint, status string) error
	ListByUser(userID uint, limit, offset int) ([]models.Transaction, error)
	SumCompletedByUser(userID uint) (float64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetByID(id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.First(&tx, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) GetByExternalID(externalID string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("external_id = ?", externalID).First(&tx).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) UpdateStatus(id uint, status string) error {
	result := r.db.Model(&models.Transaction{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *transactionRepository) ListByUser(userID uint, limit, offset int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// SumCompletedByUser returns the signed sum of completed audit records for an
// account: credits received minus debits sent. Used by reconciliation checks.
func (r *transactionRepository) SumCompletedByUser(userID uint) (float64, error) {
	var sum float64
	err := r.db.Raw(`SELECT COALESCE(SUM(
			CASE WHEN receiver_id = ? THEN amount
			     WHEN sender_id = ? THEN -amount
			     ELSE 0 END), 0)
		FROM transactions
		WHERE (sender_id = ? OR receiver_id = ?) AND status = ?`,
		userID, userID, userID, userID, models.TransactionStatusCompleted).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum, nil
}
