package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"payverse/internal/models"
	"payverse/internal/repositories"
	"payverse/internal/repositories/cache"
	"payverse/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 7 * 24 * time.Hour

// Service handles account registration and bearer sessions. Refresh tokens
// are double-checked against a Redis session record so a logout revokes them
// immediately instead of waiting for expiry.
type Service interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (*models.User, string, string, error)
	RefreshTokens(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context, userID uint) error
	ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error
	GetUserByID(userID uint) (*models.User, error)
	GetUserTokenVersion(userID uint) (int, error)
}

type service struct {
	userRepo repositories.UserRepository
	sessions *cache.CacheService
}

// NewService creates the auth service. The cache is optional; without it
// sessions are only bounded by token expiry and version checks.
func NewService(userRepo repositories.UserRepository, sessions *cache.CacheService) Service {
	if userRepo == nil {
		panic("user repository is required")
	}
	return &service{userRepo: userRepo, sessions: sessions}
}

func (s *service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if _, err := s.userRepo.GetByUsername(username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleUser,
		IsActive: true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) Login(ctx context.Context, identifier, password string) (*models.User, string, string, error) {
	user, err := s.getUserByIdentifier(identifier)
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", "", ErrAccountDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		log.Printf("login failed: incorrect password for user %d", user.ID)
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := utils.GenerateTokens(s.claimsFor(user))
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	user.LastLoginAt = time.Now()
	if err := s.userRepo.Update(user); err != nil {
		log.Printf("login: failed to record login time for user %d: %v", user.ID, err)
	}
	s.storeSession(ctx, user.ID, user.TokenVersion)

	return user, accessToken, refreshToken, nil
}

func (s *service) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	_, claims, err := utils.ParseToken(refreshToken)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	if user.TokenVersion != claims.TokenVersion {
		return "", "", ErrSessionRevoked
	}
	if err := s.checkSession(ctx, user.ID, claims.TokenVersion); err != nil {
		return "", "", err
	}

	access, refresh, err := utils.GenerateTokens(s.claimsFor(user))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}
	return access, refresh, nil
}

// Logout bumps the token version so every outstanding token for the user
// stops validating, and drops the session record.
func (s *service) Logout(ctx context.Context, userID uint) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	user.TokenVersion++
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	if s.sessions != nil {
		if err := s.sessions.Delete(ctx, s.sessionKey(userID)); err != nil {
			log.Printf("logout: failed to drop session record for user %d: %v", userID, err)
		}
	}
	return nil
}

func (s *service) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.Password = string(hashed)
	user.TokenVersion++ // invalidate existing tokens
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if s.sessions != nil {
		if err := s.sessions.Delete(ctx, s.sessionKey(userID)); err != nil {
			log.Printf("change password: failed to drop session record for user %d: %v", userID, err)
		}
	}
	return nil
}

func (s *service) GetUserByID(userID uint) (*models.User, error) {
	return s.userRepo.GetByID(userID)
}

func (s *service) GetUserTokenVersion(userID uint) (int, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return 0, err
	}
	return user.TokenVersion, nil
}

func (s *service) claimsFor(user *models.User) *models.UserClaims {
	return &models.UserClaims{
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	}
}

func (s *service) getUserByIdentifier(identifier string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}
	return s.userRepo.GetByUsername(identifier)
}

func (s *service) sessionKey(userID uint) string {
	if s.sessions != nil {
		return s.sessions.GenerateKey("session", "user", userID)
	}
	return fmt.Sprintf("session:user:%d", userID)
}

func (s *service) storeSession(ctx context.Context, userID uint, tokenVersion int) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.SetWithTTL(ctx, s.sessionKey(userID), tokenVersion, sessionTTL); err != nil {
		log.Printf("login: failed to store session record for user %d: %v", userID, err)
	}
}

// checkSession verifies the Redis session record when the cache is wired. A
// missing record means the session was revoked or expired server-side.
func (s *service) checkSession(ctx context.Context, userID uint, tokenVersion int) error {
	if s.sessions == nil {
		return nil
	}
	var stored int
	found, err := s.sessions.Get(ctx, s.sessionKey(userID), &stored)
	if err != nil {
		// Redis being down must not lock everyone out; version checks
		// still apply.
		log.Printf("refresh: session lookup failed for user %d: %v", userID, err)
		return nil
	}
	if !found || stored != tokenVersion {
		return ErrSessionRevoked
	}
	return nil
}
