//go:build !integration

package web_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/adapter"
	"telegram-paid-access/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- In-memory repositories, just enough to drive the handlers ---

type memPendingRepo struct {
	mu    sync.Mutex
	store map[string]*model.PendingSubscription
}

func newMemPendingRepo() *memPendingRepo {
	return &memPendingRepo{store: map[string]*model.PendingSubscription{}}
}

func (m *memPendingRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PendingSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.store {
		if e.BuyerTgID == p.BuyerTgID && e.BotID == p.BotID && e.Open() {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPendingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PendingSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPendingRepo) FindOpenByBuyerAndBot(ctx context.Context, tx repository.Tx, buyerTgID int64, botID string) (*model.PendingSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.BuyerTgID == buyerTgID && p.BotID == botID && p.Open() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPendingRepo) ListOpenByBot(ctx context.Context, tx repository.Tx, botID string) ([]*model.PendingSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PendingSubscription
	for _, p := range m.store {
		if p.BotID == botID && p.Open() {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memPendingRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.PendingStatus) (*model.PendingSubscription, error) {
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

type memSubscriptionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: map[string]*model.Subscription{}}
}

func (m *memSubscriptionRepo) Insert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) ListActiveByBuyerAndBot(ctx context.Context, tx repository.Tx, buyerTgID int64, botID string) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.BuyerTgID == buyerTgID && s.BotID == botID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.SubscriptionStatus) (*model.Subscription, error) {
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

func (m *memSubscriptionRepo) FindExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error) {
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

func (m *memSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, s := range m.store {
		out[s.Status]++
	}
	return out, nil
}

type memPlanRepo struct {
	mu    sync.Mutex
	store map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo { return &memPlanRepo{store: map[string]*model.Plan{}} }

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	m.store[plan.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) ListVisibleByBot(ctx context.Context, tx repository.Tx, botID string) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, p := range m.store {
		if p.BotID == botID && p.IsVisible {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationDays < out[j].DurationDays })
	return out, nil
}

func (m *memPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

type memResourceRepo struct {
	mu    sync.Mutex
	store map[string]*model.Resource
}

func newMemResourceRepo() *memResourceRepo {
	return &memResourceRepo{store: map[string]*model.Resource{}}
}

func (m *memResourceRepo) Save(ctx context.Context, tx repository.Tx, res *model.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *res
	m.store[res.ID] = &cp
	return nil
}

func (m *memResourceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (m *memResourceRepo) ListByBot(ctx context.Context, tx repository.Tx, botID string) ([]*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Resource
	for _, res := range m.store {
		if res.BotID == botID {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memResourceRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

type memBotRepo struct {
	mu    sync.Mutex
	store map[string]*model.ManagedBot
}

func newMemBotRepo() *memBotRepo { return &memBotRepo{store: map[string]*model.ManagedBot{}} }

func (m *memBotRepo) Save(ctx context.Context, tx repository.Tx, bot *model.ManagedBot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[bot.ID] = bot
	return nil
}

func (m *memBotRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ManagedBot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bot, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return bot, nil
}

func (m *memBotRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.ManagedBot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bot := range m.store {
		if bot.Username == username {
			return bot, nil
		}
	}
	return nil, domain.ErrNotFound
}

// --- Plumbing fakes ---

type memTxManager struct{}

func (memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

type noopScheduler struct{}

func (noopScheduler) ScheduleGrant(subscriptionID string)  {}
func (noopScheduler) ScheduleRevoke(subscriptionID string) {}

type noopRevoker struct{}

func (noopRevoker) Revoke(ctx context.Context, subscriptionID string) (bool, error) {
	return true, nil
}

type noopGateway struct{}

func (noopGateway) CreateInviteLink(ctx context.Context, chatID int64, strategy model.InviteStrategy, name string) (string, error) {
	return "https://t.me/+mock", nil
}
func (noopGateway) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error { return nil }
func (noopGateway) RemoveMember(ctx context.Context, chatID, userID int64) error       { return nil }
func (noopGateway) SendMessage(ctx context.Context, userID int64, text string) error   { return nil }

type noopGatewayFactory struct{}

func (noopGatewayFactory) ForBot(ctx context.Context, botID string) (adapter.AccessGateway, error) {
	return noopGateway{}, nil
}
