package repositories

import (
	"fmt"

	"payverse/internal/models"

	"gorm.io/gorm"
)

// UserRepository is the data access surface for accounts.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByPaygramID(paygramID string) (*models.User, error)
	GetEscrowAccount() (*models.User, error)
	ListActive() ([]models.User, error)
	Update(user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(username string) (*models.User, error) {
	return r.getBy("username = ?", username)
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	return r.getBy("email = ?", email)
}

func (r *userRepository) GetByPaygramID(paygramID string) (*models.User, error) {
	return r.getBy("paygram_id = ?", paygramID)
}

// GetEscrowAccount returns the platform escrow account. There is exactly one
// super_admin row; every admin-mediated transfer routes through it.
func (r *userRepository) GetEscrowAccount() (*models.User, error) {
	var user models.User
	if err := r.db.Where("role = ?", models.RoleSuperAdmin).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrEscrowNotConfigured
		}
		return nil, fmt.Errorf("failed to get escrow account: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ListActive() ([]models.User, error) {
	var users []models.User
	if err := r.db.Where("is_active = ?", true).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) Update(user *models.User) error {
	if err := r.db.Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *userRepository) getBy(query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.Where(query, arg).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
