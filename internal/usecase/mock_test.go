//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/adapter"
	"telegram-paid-access/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// MockPendingRepo is an in-memory PendingSubscriptionRepository. Behavior can
// be overridden per test via the *Func fields; the defaults mimic the real
// repo, including the one-open-request-per-(buyer,bot) unique index and the
// compare-and-swap UpdateStatus.
type MockPendingRepo struct {
	mu    sync.Mutex
	store map[string]*model.PendingSubscription

	InsertFunc       func(ctx context.Context, tx repository.Tx, p *model.PendingSubscription) error
	FindByIDFunc     func(ctx context.Context, tx repository.Tx, id string) (*model.PendingSubscription, error)
	UpdateStatusFunc func(ctx context.Context, tx repository.Tx, id string, from, to model.PendingStatus) (*model.PendingSubscription, error)
}

var _ repository.PendingSubscriptionRepository = (*MockPendingRepo)(nil)

func NewMockPendingRepo() *MockPendingRepo {
	return &MockPendingRepo{store: map[string]*model.PendingSubscription{}}
}

func (m *MockPendingRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PendingSubscription) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.store {
		if e.Open() && e.BuyerTgID == p.BuyerTgID && e.BotID == p.BotID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPendingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PendingSubscription, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPendingRepo) FindOpenByBuyerAndBot(ctx context.Context, tx repository.Tx, buyerTgID int64, botID string) (*model.PendingSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.Open() && p.BuyerTgID == buyerTgID && p.BotID == botID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPendingRepo) ListOpenByBot(ctx context.Context, tx repository.Tx, botID string) ([]*model.PendingSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PendingSubscription
	for _, p := range m.store {
		if p.Open() && p.BotID == botID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPendingRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.PendingStatus) (*model.PendingSubscription, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != from {
		return nil, domain.ErrNotFound
	}
	p.Status = to
	cp := *p
	return &cp, nil
}

// MockSubscriptionRepo is an in-memory SubscriptionRepository with the same
// compare-and-swap UpdateStatus contract as the Postgres implementation.
type MockSubscriptionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscription

	InsertFunc       func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	FindByIDFunc     func(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error)
	UpdateStatusFunc func(ctx context.Context, tx repository.Tx, id string, from, to model.SubscriptionStatus) (*model.Subscription, error)
	FindExpiredFunc  func(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: map[string]*model.Subscription{}}
}

func (m *MockSubscriptionRepo) Insert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.store[s.ID]; dup {
		return domain.ErrAlreadyExists
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) ListActiveByBuyerAndBot(ctx context.Context, tx repository.Tx, buyerTgID int64, botID string) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.BuyerTgID == buyerTgID && s.BotID == botID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.SubscriptionStatus) (*model.Subscription, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.Status != from {
		return nil, domain.ErrNotFound
	}
	s.Status = to
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error) {
	if m.FindExpiredFunc != nil {
		return m.FindExpiredFunc(ctx, tx, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && !s.EndAt.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.SubscriptionStatus]int{}
	for _, s := range m.store {
		counts[s.Status]++
	}
	return counts, nil
}

// MockPlanRepo is an in-memory PlanRepository.
type MockPlanRepo struct {
	mu    sync.Mutex
	store map[string]*model.Plan

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: map[string]*model.Plan{}}
}

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	m.store[plan.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) ListVisibleByBot(ctx context.Context, tx repository.Tx, botID string) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, p := range m.store {
		if p.BotID == botID && p.IsVisible {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// MockResourceRepo is an in-memory ResourceRepository.
type MockResourceRepo struct {
	mu    sync.Mutex
	store map[string]*model.Resource

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Resource, error)
}

var _ repository.ResourceRepository = (*MockResourceRepo)(nil)

func NewMockResourceRepo() *MockResourceRepo {
	return &MockResourceRepo{store: map[string]*model.Resource{}}
}

func (m *MockResourceRepo) Save(ctx context.Context, tx repository.Tx, res *model.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *res
	m.store[res.ID] = &cp
	return nil
}

func (m *MockResourceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Resource, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockResourceRepo) ListByBot(ctx context.Context, tx repository.Tx, botID string) ([]*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Resource
	for _, r := range m.store {
		if r.BotID == botID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockResourceRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// MockBotRepo is an in-memory ManagedBotRepository.
type MockBotRepo struct {
	mu    sync.Mutex
	store map[string]*model.ManagedBot
}

var _ repository.ManagedBotRepository = (*MockBotRepo)(nil)

func NewMockBotRepo() *MockBotRepo {
	return &MockBotRepo{store: map[string]*model.ManagedBot{}}
}

func (m *MockBotRepo) Save(ctx context.Context, tx repository.Tx, bot *model.ManagedBot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *bot
	m.store[bot.ID] = &cp
	return nil
}

func (m *MockBotRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ManagedBot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MockBotRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.ManagedBot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.store {
		if b.Username == username {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// =============================
// Transaction manager
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX by default; assign WithTxFunc to
// exercise transactional behavior.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Gateway
// =============================

// MockGateway captures every call; behavior is overridable per test.
type MockGateway struct {
	mu sync.Mutex

	CreateInviteLinkFunc   func(ctx context.Context, chatID int64, strategy model.InviteStrategy, name string) (string, error)
	ApproveJoinRequestFunc func(ctx context.Context, chatID, userID int64) error
	RemoveMemberFunc       func(ctx context.Context, chatID, userID int64) error
	SendMessageFunc        func(ctx context.Context, userID int64, text string) error

	Calls struct {
		InviteLinks []int64 // chat ids
		Approvals   []int64
		Removals    []int64
		Messages    []string
	}
}

var _ adapter.AccessGateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway { return &MockGateway{} }

func (m *MockGateway) CreateInviteLink(ctx context.Context, chatID int64, strategy model.InviteStrategy, name string) (string, error) {
	m.mu.Lock()
	m.Calls.InviteLinks = append(m.Calls.InviteLinks, chatID)
	m.mu.Unlock()
	if m.CreateInviteLinkFunc != nil {
		return m.CreateInviteLinkFunc(ctx, chatID, strategy, name)
	}
	return "https://t.me/+mock", nil
}

func (m *MockGateway) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	m.mu.Lock()
	m.Calls.Approvals = append(m.Calls.Approvals, chatID)
	m.mu.Unlock()
	if m.ApproveJoinRequestFunc != nil {
		return m.ApproveJoinRequestFunc(ctx, chatID, userID)
	}
	return nil
}

func (m *MockGateway) RemoveMember(ctx context.Context, chatID, userID int64) error {
	m.mu.Lock()
	m.Calls.Removals = append(m.Calls.Removals, chatID)
	m.mu.Unlock()
	if m.RemoveMemberFunc != nil {
		return m.RemoveMemberFunc(ctx, chatID, userID)
	}
	return nil
}

func (m *MockGateway) SendMessage(ctx context.Context, userID int64, text string) error {
	m.mu.Lock()
	m.Calls.Messages = append(m.Calls.Messages, text)
	m.mu.Unlock()
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, userID, text)
	}
	return nil
}

// MockGatewayFactory hands out one shared MockGateway for every bot.
type MockGatewayFactory struct {
	Gateway   *MockGateway
	ForBotErr error
}

var _ adapter.GatewayFactory = (*MockGatewayFactory)(nil)

func NewMockGatewayFactory() *MockGatewayFactory {
	return &MockGatewayFactory{Gateway: NewMockGateway()}
}

func (m *MockGatewayFactory) ForBot(ctx context.Context, botID string) (adapter.AccessGateway, error) {
	if m.ForBotErr != nil {
		return nil, m.ForBotErr
	}
	return m.Gateway, nil
}

// =============================
// Scheduler and revoker
// =============================

// MockScheduler records the subscription ids handed to it.
type MockScheduler struct {
	mu      sync.Mutex
	Grants  []string
	Revokes []string
}

func NewMockScheduler() *MockScheduler { return &MockScheduler{} }

func (m *MockScheduler) ScheduleGrant(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Grants = append(m.Grants, subscriptionID)
}

func (m *MockScheduler) ScheduleRevoke(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Revokes = append(m.Revokes, subscriptionID)
}

// MockRevoker lets expiry tests script revoke outcomes per subscription.
type MockRevoker struct {
	mu         sync.Mutex
	RevokeFunc func(ctx context.Context, subscriptionID string) (bool, error)
	Revoked    []string
}

func NewMockRevoker() *MockRevoker { return &MockRevoker{} }

func (m *MockRevoker) Revoke(ctx context.Context, subscriptionID string) (bool, error) {
	m.mu.Lock()
	m.Revoked = append(m.Revoked, subscriptionID)
	m.mu.Unlock()
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, subscriptionID)
	}
	return true, nil
}
