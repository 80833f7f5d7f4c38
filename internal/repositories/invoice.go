package repositories

import (
	"fmt"

	"payverse/internal/models"

	"gorm.io/gorm"
)

// InvoiceRepository is the data access surface for provider payment requests.
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByCode(invoiceCode string) (*models.Invoice, error)
	GetByVoucher(voucherCode string) (*models.Invoice, error)
	Update(invoice *models.Invoice) error
	ClaimForCredit(invoice *models.Invoice) (bool, error)
	ListByUser(userID uint, limit, offset int) ([]models.Invoice, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(invoice *models.Invoice) error {
	if err := r.db.Create(invoice).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) GetByCode(invoiceCode string) (*models.Invoice, error) {
	return r.getBy("invoice_code = ?", invoiceCode)
}

func (r *invoiceRepository) GetByVoucher(voucherCode string) (*models.Invoice, error) {
	return r.getBy("voucher_code = ?", voucherCode)
}

func (r *invoiceRepository) Update(invoice *models.Invoice) error {
	if err := r.db.Save(invoice).Error; err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

// ClaimForCredit flips a paid invoice to credited only if no other writer got
// there first. The conditional update is what keeps a racing confirmation or
// a notification replay from producing a second credit.
func (r *invoiceRepository) ClaimForCredit(invoice *models.Invoice) (bool, error) {
	res := r.db.Model(&models.Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, models.InvoiceStatusPaid).
		Update("status", models.InvoiceStatusCredited)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim invoice credit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	invoice.Status = models.InvoiceStatusCredited
	return true, nil
}

func (r *invoiceRepository) ListByUser(userID uint, limit, offset int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

func (r *invoiceRepository) getBy(query string, arg interface{}) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.Where(query, arg).First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}
