package adapter

import (
	"context"

	"telegram-paid-access/internal/domain/model"
)

// AccessGateway wraps the Telegram Bot API calls the core needs, scoped to a
// single managed bot's token. Implementations absorb one rate-limit retry per
// call; any other transport error is returned as-is so the orchestrator's
// partial-failure accounting stays accurate.
type AccessGateway interface {
	// CreateInviteLink mints or fetches an invite link for the chat according
	// to the resource's strategy (unique mints a fresh link, static exports
	// the primary one).
	CreateInviteLink(ctx context.Context, chatID int64, strategy model.InviteStrategy, name string) (string, error)
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	// RemoveMember kicks the user and immediately lifts the ban so a future
	// subscription lets them rejoin.
	RemoveMember(ctx context.Context, chatID, userID int64) error
	SendMessage(ctx context.Context, userID int64, text string) error
}

// GatewayFactory resolves the AccessGateway for a managed bot, decrypting the
// stored token on first use.
type GatewayFactory interface {
	ForBot(ctx context.Context, botID string) (AccessGateway, error)
}

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// BotUI is the buyer-facing messaging surface used by the polling adapter.
type BotUI interface {
	SendMessage(ctx context.Context, tgID int64, text string) error
	SendButtons(ctx context.Context, tgID int64, text string, rows [][]InlineButton) error
}
