package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/adapter"
	"telegram-paid-access/internal/infra/metrics"
)

// Gateway implements adapter.AccessGateway on tgbotapi, scoped to one managed
// bot's token. Every call absorbs at most one rate-limit retry: when Telegram
// answers 429 the reported retry_after is waited out once and the call is
// repeated; a second rate limit is returned to the caller.
type Gateway struct {
	bot *tgbotapi.BotAPI
	log *zerolog.Logger
}

var _ adapter.AccessGateway = (*Gateway)(nil)

func NewGateway(bot *tgbotapi.BotAPI, logger *zerolog.Logger) *Gateway {
	gwLog := logger.With().Str("component", "Gateway").Str("bot", bot.Self.UserName).Logger()
	return &Gateway{bot: bot, log: &gwLog}
}

// retryAfter extracts the cool-down from a tgbotapi rate-limit error.
func retryAfter(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second, true
	}
	return 0, false
}

func (g *Gateway) request(ctx context.Context, c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	resp, err := g.bot.Request(c)
	if wait, ok := retryAfter(err); ok {
		metrics.IncRateLimitRetry()
		g.log.Warn().Dur("retry_after", wait).Msg("rate limited, retrying once")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		resp, err = g.bot.Request(c)
	}
	return resp, err
}

// CreateInviteLink mints a fresh single-use link for the unique strategy and
// exports the chat's primary link for static.
func (g *Gateway) CreateInviteLink(ctx context.Context, chatID int64, strategy model.InviteStrategy, name string) (string, error) {
	if strategy == model.InviteStrategyStatic {
		return g.exportPrimaryLink(ctx, chatID)
	}

	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: chatID},
		Name:        name,
		MemberLimit: 1,
	}
	resp, err := g.request(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("createChatInviteLink chat %d: %w", chatID, err)
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	return link.InviteLink, nil
}

func (g *Gateway) exportPrimaryLink(ctx context.Context, chatID int64) (string, error) {
	cfg := tgbotapi.ChatInviteLinkConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	}
	resp, err := g.request(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("exportChatInviteLink chat %d: %w", chatID, err)
	}
	var link string
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode exported link: %w", err)
	}
	return link, nil
}

func (g *Gateway) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	cfg := tgbotapi.ApproveChatJoinRequestConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		UserID:     userID,
	}
	if _, err := g.request(ctx, cfg); err != nil {
		return fmt.Errorf("approveChatJoinRequest chat %d user %d: %w", chatID, userID, err)
	}
	return nil
}

// RemoveMember kicks the user out of the chat: ban, then immediately unban so
// a renewed subscription lets them come back in.
func (g *Gateway) RemoveMember(ctx context.Context, chatID, userID int64) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	}
	if _, err := g.request(ctx, ban); err != nil {
		return fmt.Errorf("banChatMember chat %d user %d: %w", chatID, userID, err)
	}

	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	}
	if _, err := g.request(ctx, unban); err != nil {
		// The kick itself succeeded; a failed unban only blocks rejoining.
		g.log.Warn().Err(err).Int64("chat", chatID).Int64("user", userID).Msg("unban after kick failed")
	}
	return nil
}

func (g *Gateway) SendMessage(ctx context.Context, userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := g.request(ctx, msg); err != nil {
		return fmt.Errorf("sendMessage to %d: %w", userID, err)
	}
	return nil
}
