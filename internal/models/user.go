package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleSupport    = "support"
	RoleUser       = "user"
)

// User is an account on the platform. Balance mirrors the PHPT balance held
// with the external wallet provider and is mutated only by the balance service.
type User struct {
	gorm.Model
	Username       string  `gorm:"uniqueIndex;not null"`
	Email          string  `gorm:"uniqueIndex;not null"`
	Password       string  `gorm:"not null"`
	Role           string  `gorm:"default:'user'"`
	PaygramID      string  `gorm:"uniqueIndex;not null"` // external wallet client identifier
	CasinoClientID string  `gorm:"index"`                // casino-side account id, empty until linked
	Balance        float64 `gorm:"type:decimal(14,2);default:0"`
	PinHash        string
	PinAttempts    int `gorm:"default:0"`
	PinLockedUntil *time.Time
	IsActive       bool `gorm:"default:true"`
	TokenVersion   int  `gorm:"default:1"`
	LastLoginAt    time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.PaygramID == "" {
		u.PaygramID = DerivePaygramID(u.Username, u.Email)
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// CasinoID returns the identity the casino knows this account by. Accounts
// that never linked a casino account fall back to the wallet identifier.
func (u *User) CasinoID() string {
	if u.CasinoClientID != "" {
		return u.CasinoClientID
	}
	return u.PaygramID
}

// DerivePaygramID builds the external wallet client identifier from the
// username, falling back to the email local part.
func DerivePaygramID(username, email string) string {
	id := strings.TrimSpace(strings.ToLower(username))
	if id == "" {
		if at := strings.Index(email, "@"); at > 0 {
			id = strings.ToLower(email[:at])
		}
	}
	return id
}
