package repositories

import (
	"fmt"
	"time"

	"payverse/internal/models"

	"gorm.io/gorm"
)

// CasinoRepository is the data access surface for casino buy/sell operations.
type CasinoRepository interface {
	Create(tx *models.CasinoTransaction) error
	GetByID(id uint) (*models.CasinoTransaction, error)
	GetByRefID(refID string) (*models.CasinoTransaction, error)
	Update(tx *models.CasinoTransaction) error
	ListByStatus(status string) ([]models.CasinoTransaction, error)
	ListDueForRetry(now time.Time) ([]models.CasinoTransaction, error)
}

type casinoRepository struct {
	db *gorm.DB
}

func NewCasinoRepository(db *gorm.DB) CasinoRepository {
	return &casinoRepository{db: db}
}

func (r *casinoRepository) Create(tx *models.CasinoTransaction) error {
	if err := r.db.Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create casino transaction: %w", err)
	}
	return nil
}

func (r *casinoRepository) GetByID(id uint) (*models.CasinoTransaction, error) {
	var tx models.CasinoTransaction
	if err := r.db.First(&tx, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrCasinoTxNotFound
		}
		return nil, fmt.Errorf("failed to get casino transaction: %w", err)
	}
	return &tx, nil
}

func (r *casinoRepository) GetByRefID(refID string) (*models.CasinoTransaction, error) {
	var tx models.CasinoTransaction
	if err := r.db.Where("ref_id = ?", refID).First(&tx).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrCasinoTxNotFound
		}
		return nil, fmt.Errorf("failed to get casino transaction: %w", err)
	}
	return &tx, nil
}

func (r *casinoRepository) Update(tx *models.CasinoTransaction) error {
	if err := r.db.Save(tx).Error; err != nil {
		return fmt.Errorf("failed to update casino transaction: %w", err)
	}
	return nil
}

func (r *casinoRepository) ListByStatus(status string) ([]models.CasinoTransaction, error) {
	var txs []models.CasinoTransaction
	if err := r.db.Where("status = ?", status).Order("created_at").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to list casino transactions: %w", err)
	}
	return txs, nil
}

// ListDueForRetry returns transactions parked in a retryable state whose
// next_retry_at has passed. manual_required rows are never picked up here.
func (r *casinoRepository) ListDueForRetry(now time.Time) ([]models.CasinoTransaction, error) {
	var txs []models.CasinoTransaction
	err := r.db.
		Where("status IN ?", []string{
			models.CasinoStateRefundPending,
			models.CasinoStateRedepositPending,
			models.CasinoStatePayoutPending,
		}).
		Where("next_retry_at IS NOT NULL AND next_retry_at <= ?", now).
		Order("next_retry_at").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable casino transactions: %w", err)
	}
	return txs, nil
}
