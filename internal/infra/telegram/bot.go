package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/adapter"
	"telegram-paid-access/internal/domain/ports/repository"
	"telegram-paid-access/internal/infra/metrics"
	redisinfra "telegram-paid-access/internal/infra/redis"
	"telegram-paid-access/internal/usecase"
)

// Callback data prefixes.
const (
	cbBuy     = "buy:"
	cbApprove = "appr:"
	cbReject  = "rej:"
)

const (
	commandLimit  = 10
	commandWindow = time.Minute
)

// BotAdapter polls Telegram for one managed bot and drives the purchase flow:
// buyers browse plans and request subscriptions, admins decide requests inline.
type BotAdapter struct {
	bot       *tgbotapi.BotAPI
	managed   *model.ManagedBot
	lifecycle *usecase.LifecycleUseCase
	planRepo  repository.PlanRepository
	limiter   *redisinfra.RateLimiter
	log       *zerolog.Logger

	// updateWorkers is how many goroutines process updates concurrently.
	updateWorkers int
	cancelPolling context.CancelFunc
}

var _ adapter.BotUI = (*BotAdapter)(nil)

func NewBotAdapter(
	bot *tgbotapi.BotAPI,
	managed *model.ManagedBot,
	lifecycle *usecase.LifecycleUseCase,
	planRepo repository.PlanRepository,
	limiter *redisinfra.RateLimiter,
	updateWorkers int,
	logger *zerolog.Logger,
) (*BotAdapter, error) {
	if bot == nil || managed == nil || lifecycle == nil {
		return nil, errors.New("bot, managed record and lifecycle are required")
	}
	if updateWorkers <= 0 {
		updateWorkers = 5
	}
	baLog := logger.With().Str("component", "BotAdapter").Str("bot", managed.Username).Logger()
	return &BotAdapter{
		bot:           bot,
		managed:       managed,
		lifecycle:     lifecycle,
		planRepo:      planRepo,
		limiter:       limiter,
		log:           &baLog,
		updateWorkers: updateWorkers,
	}, nil
}

// StartPolling polls Telegram for updates until ctx is canceled, fanning the
// updates out to updateWorkers goroutines.
func (b *BotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < b.updateWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case update, ok := <-updateChan:
					if !ok {
						return
					}
					if err := b.handleUpdate(ctx, update); err != nil {
						b.log.Error().Err(err).Int("worker", workerID).Msg("error handling update")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i + 1)
	}

	go func() {
		defer close(updateChan)
		for {
			select {
			case update := <-updates:
				select {
				case updateChan <- update:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	b.bot.StopReceivingUpdates()
	wg.Wait()
	return nil
}

// StopPolling stops the polling loop gracefully.
func (b *BotAdapter) StopPolling() {
	if b.cancelPolling != nil {
		b.cancelPolling()
	}
}

func (b *BotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	_, err := b.bot.Send(tgbotapi.NewMessage(tgID, text))
	return err
}

func (b *BotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	msg := tgbotapi.NewMessage(tgID, text)
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
			}
		}
		keyboard = append(keyboard, btns)
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	_, err := b.bot.Send(msg)
	return err
}

func (b *BotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		return b.handleMessage(ctx, update.Message)
	default:
		return nil
	}
}

func (b *BotAdapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	tgID := msg.From.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" || text[0] != '/' {
		return b.SendMessage(ctx, tgID, "Send /plans to see available plans.")
	}

	cmd := strings.Fields(text)[0]
	if !b.allow(ctx, tgID, cmd) {
		return nil
	}

	switch cmd {
	case "/start":
		return b.SendMessage(ctx, tgID, b.managed.Message(model.MsgWelcome))
	case "/plans":
		return b.sendPlans(ctx, tgID)
	case "/status":
		return b.sendStatus(ctx, tgID)
	case "/pending":
		if !b.managed.IsAdmin(tgID) {
			return b.SendMessage(ctx, tgID, "You are not authorized to use this command.")
		}
		return b.sendPendingQueue(ctx, tgID)
	default:
		return b.SendMessage(ctx, tgID, "Unknown command. Available: /start /plans /status")
	}
}

// allow applies the per-buyer fixed-window limit. A limiter outage fails open.
func (b *BotAdapter) allow(ctx context.Context, tgID int64, cmd string) bool {
	if b.limiter == nil {
		return true
	}
	ok, err := b.limiter.Allow(ctx, redisinfra.BuyerCommandKey(tgID, cmd), commandLimit, commandWindow)
	if err != nil {
		b.log.Warn().Err(err).Int64("buyer", tgID).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		b.log.Debug().Int64("buyer", tgID).Str("command", cmd).Msg("rate limited")
	}
	return ok
}

func (b *BotAdapter) sendPlans(ctx context.Context, tgID int64) error {
	plans, err := b.planRepo.ListVisibleByBot(ctx, repository.NoTX, b.managed.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("list plans failed")
		return b.SendMessage(ctx, tgID, "Could not load plans. Please try again later.")
	}
	if len(plans) == 0 {
		return b.SendMessage(ctx, tgID, "No plans are available right now.")
	}

	rows := make([][]adapter.InlineButton, 0, len(plans))
	for _, p := range plans {
		label := fmt.Sprintf("%s — %d days", p.Name, p.DurationDays)
		rows = append(rows, []adapter.InlineButton{{Text: label, Data: cbBuy + p.ID}})
	}
	return b.SendButtons(ctx, tgID, "Available plans:", rows)
}

func (b *BotAdapter) sendStatus(ctx context.Context, tgID int64) error {
	ok, err := b.lifecycle.CheckAccess(ctx, tgID, b.managed.ID, "")
	if err != nil {
		b.log.Error().Err(err).Int64("buyer", tgID).Msg("check access failed")
		return b.SendMessage(ctx, tgID, "Could not check your status. Please try again later.")
	}
	if ok {
		return b.SendMessage(ctx, tgID, "You have an active subscription.")
	}
	return b.SendMessage(ctx, tgID, "You have no active subscription. Send /plans to subscribe.")
}

func (b *BotAdapter) sendPendingQueue(ctx context.Context, tgID int64) error {
	open, err := b.lifecycle.ListOpenRequests(ctx, b.managed.ID)
	if err != nil {
		return b.SendMessage(ctx, tgID, "Could not load the approval queue.")
	}
	if len(open) == 0 {
		return b.SendMessage(ctx, tgID, "No pending requests.")
	}
	for _, p := range open {
		text := fmt.Sprintf("Request %s\nbuyer: %d\nplan: %s", p.ID, p.BuyerTgID, p.PlanID)
		rows := [][]adapter.InlineButton{{
			{Text: "Approve", Data: cbApprove + p.ID},
			{Text: "Reject", Data: cbReject + p.ID},
		}}
		if err := b.SendButtons(ctx, tgID, text, rows); err != nil {
			return err
		}
	}
	return nil
}

func (b *BotAdapter) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.From == nil {
		return nil
	}
	tgID := query.From.ID
	data := query.Data

	var answer string
	switch {
	case strings.HasPrefix(data, cbBuy):
		answer = b.handleBuy(ctx, tgID, strings.TrimPrefix(data, cbBuy))
	case strings.HasPrefix(data, cbApprove):
		answer = b.handleDecision(ctx, tgID, strings.TrimPrefix(data, cbApprove), true)
	case strings.HasPrefix(data, cbReject):
		answer = b.handleDecision(ctx, tgID, strings.TrimPrefix(data, cbReject), false)
	default:
		answer = "Unknown action."
	}

	if _, err := b.bot.Request(tgbotapi.NewCallback(query.ID, answer)); err != nil {
		b.log.Warn().Err(err).Msg("answer callback failed")
	}
	return nil
}

func (b *BotAdapter) handleBuy(ctx context.Context, tgID int64, planID string) string {
	pending, err := b.lifecycle.Request(ctx, tgID, b.managed.ID, planID)
	switch {
	case errors.Is(err, domain.ErrDuplicatePending):
		return "You already have a request awaiting approval."
	case errors.Is(err, domain.ErrPlanNotFound):
		return "That plan is no longer available."
	case err != nil:
		b.log.Error().Err(err).Int64("buyer", tgID).Str("plan_id", planID).Msg("request failed")
		return "Something went wrong. Please try again later."
	}
	metrics.IncPendingCreated()

	if b.managed.AutoApprove {
		if _, err := b.lifecycle.Approve(ctx, pending.ID); err != nil && !domain.IsAlreadyProcessed(err) {
			b.log.Error().Err(err).Str("pending_id", pending.ID).Msg("auto-approve failed")
			return "Your request was received but could not be approved automatically."
		}
		metrics.IncPendingDecision("approved")
		metrics.IncSubscriptionsCreated()
		return "Approved! Your access links are on the way."
	}

	b.notifyAdmins(ctx, pending)
	_ = b.SendMessage(ctx, tgID, b.managed.Message(model.MsgPending))
	return "Request received."
}

// notifyAdmins pushes the new request to every admin with inline decision
// buttons. Best-effort: an unreachable admin is skipped.
func (b *BotAdapter) notifyAdmins(ctx context.Context, p *model.PendingSubscription) {
	admins := append([]int64{b.managed.OwnerTgID}, b.managed.AdminTgIDs...)
	seen := make(map[int64]struct{}, len(admins))
	text := fmt.Sprintf("New request %s\nbuyer: %d\nplan: %s", p.ID, p.BuyerTgID, p.PlanID)
	rows := [][]adapter.InlineButton{{
		{Text: "Approve", Data: cbApprove + p.ID},
		{Text: "Reject", Data: cbReject + p.ID},
	}}
	for _, admin := range admins {
		if _, dup := seen[admin]; dup {
			continue
		}
		seen[admin] = struct{}{}
		if err := b.SendButtons(ctx, admin, text, rows); err != nil {
			b.log.Warn().Err(err).Int64("admin", admin).Msg("admin notification failed")
		}
	}
}

func (b *BotAdapter) handleDecision(ctx context.Context, tgID int64, pendingID string, approve bool) string {
	if !b.managed.IsAdmin(tgID) {
		return "You are not authorized to decide requests."
	}

	if approve {
		sub, err := b.lifecycle.Approve(ctx, pendingID)
		if err != nil {
			if domain.IsAlreadyProcessed(err) {
				return "This request was already decided."
			}
			b.log.Error().Err(err).Str("pending_id", pendingID).Msg("approve failed")
			return "Approve failed. Please try again."
		}
		metrics.IncPendingDecision("approved")
		metrics.IncSubscriptionsCreated()
		return fmt.Sprintf("Approved until %s.", sub.EndAt.Format("2006-01-02"))
	}

	rejected, err := b.lifecycle.Reject(ctx, pendingID)
	if err != nil {
		if domain.IsAlreadyProcessed(err) {
			return "This request was already decided."
		}
		b.log.Error().Err(err).Str("pending_id", pendingID).Msg("reject failed")
		return "Reject failed. Please try again."
	}
	metrics.IncPendingDecision("rejected")
	_ = b.SendMessage(ctx, rejected.BuyerTgID, b.managed.Message(model.MsgRejected))
	return "Rejected."
}
