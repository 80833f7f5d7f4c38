package syncer

import (
	"context"
	"errors"
	"testing"

	"payverse/internal/models"
	"payverse/internal/services/balance"
	"payverse/internal/services/paygram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) GetByID(id uint) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccounts) ListActive() ([]models.User, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

type MockReader struct {
	mock.Mock
}

func (m *MockReader) UserInfo(ctx context.Context, clientID string) (*paygram.UserInfo, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paygram.UserInfo), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) SyncFromExternal(ctx context.Context, accountID uint, observed float64, reason string) (*balance.MutationResult, error) {
	args := m.Called(ctx, accountID, observed, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.MutationResult), args.Error(1)
}

func newTestService(accounts *MockAccounts, reader *MockReader, ledger *MockLedger) *service {
	svc := NewService(accounts, reader, ledger).(*service)
	svc.delay = 0
	return svc
}

func user(id uint, pgID string, bal float64) models.User {
	return models.User{Model: gorm.Model{ID: id}, PaygramID: pgID, Balance: bal, IsActive: true}
}

func TestSyncAccountCorrectsDrift(t *testing.T) {
	accounts, reader, ledger := new(MockAccounts), new(MockReader), new(MockLedger)
	u := user(1, "alice-pg", 80)
	accounts.On("GetByID", uint(1)).Return(&u, nil)
	reader.On("UserInfo", mock.Anything, "alice-pg").Return(&paygram.UserInfo{Balance: 100}, nil)
	ledger.On("SyncFromExternal", mock.Anything, uint(1), 100.0, "admin check").
		Return(&balance.MutationResult{
			PreviousBalance: 80,
			NewBalance:      100,
			Transaction:     &models.Transaction{ID: 5, Type: models.TransactionTypeSyncCredit},
		}, nil)

	svc := newTestService(accounts, reader, ledger)
	res, err := svc.SyncAccount(context.Background(), 1, "admin check")

	require.NoError(t, err)
	assert.Equal(t, 100.0, res.NewBalance)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, models.TransactionTypeSyncCredit, res.Transaction.Type)
}

func TestSyncAccountProviderDown(t *testing.T) {
	accounts, reader, ledger := new(MockAccounts), new(MockReader), new(MockLedger)
	u := user(1, "alice-pg", 80)
	accounts.On("GetByID", uint(1)).Return(&u, nil)
	reader.On("UserInfo", mock.Anything, "alice-pg").
		Return(nil, &paygram.UnavailableError{Cause: errors.New("connection refused")})

	svc := newTestService(accounts, reader, ledger)
	_, err := svc.SyncAccount(context.Background(), 1, "admin check")

	assert.True(t, paygram.IsUnavailable(err))
	ledger.AssertNotCalled(t, "SyncFromExternal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	accounts, reader, ledger := new(MockAccounts), new(MockReader), new(MockLedger)
	users := []models.User{user(1, "alice-pg", 80), user(2, "bob-pg", 40), user(3, "carol-pg", 10)}
	accounts.On("ListActive").Return(users, nil)
	for i := range users {
		u := users[i]
		accounts.On("GetByID", u.ID).Return(&u, nil)
	}
	// Bob's provider lookup fails; the sweep keeps going.
	reader.On("UserInfo", mock.Anything, "alice-pg").Return(&paygram.UserInfo{Balance: 100}, nil)
	reader.On("UserInfo", mock.Anything, "bob-pg").
		Return(nil, &paygram.UnavailableError{Cause: errors.New("timeout")})
	reader.On("UserInfo", mock.Anything, "carol-pg").Return(&paygram.UserInfo{Balance: 10}, nil)
	ledger.On("SyncFromExternal", mock.Anything, uint(1), 100.0, mock.Anything).
		Return(&balance.MutationResult{PreviousBalance: 80, NewBalance: 100, Transaction: &models.Transaction{ID: 5}}, nil)
	ledger.On("SyncFromExternal", mock.Anything, uint(3), 10.0, mock.Anything).
		Return(&balance.MutationResult{PreviousBalance: 10, NewBalance: 10}, nil)

	svc := newTestService(accounts, reader, ledger)
	report, err := svc.SyncAll(context.Background(), "scheduled reconciliation")

	require.NoError(t, err)
	assert.Equal(t, 3, report.Accounts)
	assert.Equal(t, 2, report.Synced)
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, 1, report.Failed)
}

func TestSyncAllStopsOnCancel(t *testing.T) {
	accounts, reader, ledger := new(MockAccounts), new(MockReader), new(MockLedger)
	accounts.On("ListActive").Return([]models.User{user(1, "alice-pg", 80)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(accounts, reader, ledger)
	_, err := svc.SyncAll(ctx, "scheduled reconciliation")

	assert.ErrorIs(t, err, context.Canceled)
	reader.AssertNotCalled(t, "UserInfo", mock.Anything, mock.Anything)
}
