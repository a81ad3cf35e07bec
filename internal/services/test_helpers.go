package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/uniplus/internal/auth"
	"github.com/BradenHooton/uniplus/internal/models"
)

// FakeClock is a manually advanced time source for tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// MockTokenAuthority implements auth.TokenAuthority for testing
type MockTokenAuthority struct {
	RenewFunc func(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

func (m *MockTokenAuthority) Renew(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	if m.RenewFunc != nil {
		return m.RenewFunc(ctx, refreshToken)
	}
	return auth.NewTokenPair(), nil
}

// MockSessionMonitor implements SessionMonitor for testing
type MockSessionMonitor struct {
	mu     sync.Mutex
	Begins int
	Ends   int
}

func (m *MockSessionMonitor) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Begins++
}

func (m *MockSessionMonitor) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ends++
}

func (m *MockSessionMonitor) Counts() (begins, ends int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Begins, m.Ends
}

// MockMailer implements Mailer for testing
type MockMailer struct {
	SendRecoveryCodeFunc func(ctx context.Context, to, studentID, code string) error
	mu                   sync.Mutex
	Sent                 []SentRecovery
}

type SentRecovery struct {
	To        string
	StudentID string
	Code      string
}

func (m *MockMailer) SendRecoveryCode(ctx context.Context, to, studentID, code string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentRecovery{To: to, StudentID: studentID, Code: code})
	m.mu.Unlock()

	if m.SendRecoveryCodeFunc != nil {
		return m.SendRecoveryCodeFunc(ctx, to, studentID, code)
	}
	return nil
}

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByStudentIDFunc func(ctx context.Context, studentID string) (*models.Account, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc         func(ctx context.Context, account *models.Account) error
	UpdateFunc         func(ctx context.Context, account *models.Account) error
}

func (m *MockAccountRepository) GetByStudentID(ctx context.Context, studentID string) (*models.Account, error) {
	if m.GetByStudentIDFunc != nil {
		return m.GetByStudentIDFunc(ctx, studentID)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return models.ErrInternalServer
}

func (m *MockAccountRepository) Update(ctx context.Context, account *models.Account) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, account)
	}
	return models.ErrInternalServer
}
