package model

import (
	"time"

	"telegram-paid-access/internal/domain"
)

// Message template keys stored in a bot's config.
const (
	MsgWelcome  = "welcome_message"
	MsgPending  = "pending_message"
	MsgApproved = "approved_message"
	MsgRejected = "rejected_message"
	MsgExpired  = "expired_message"
)

var defaultMessages = map[string]string{
	MsgWelcome:  "Welcome! Use /plans to see available plans.",
	MsgPending:  "Your subscription request is pending approval. You will be notified.",
	MsgApproved: "Your subscription has been approved!",
	MsgRejected: "Your subscription request has been rejected.",
	MsgExpired:  "Your subscription has expired. Use /plans to renew.",
}

// ManagedBot is an operator-owned Telegram bot whose audience buys timed
// access to the bot's linked resources. The API token is stored encrypted and
// only decrypted when a gateway is constructed for it.
type ManagedBot struct {
	ID             string
	OwnerTgID      int64
	Username       string
	TokenEncrypted string
	Messages       map[string]string // template overrides, keyed by Msg* constants
	AutoApprove    bool
	AdminTgIDs     []int64
	CreatedAt      time.Time
}

// NewManagedBot validates and constructs a managed bot record.
// tokenEncrypted must already be ciphertext; the model never sees plaintext.
func NewManagedBot(id string, ownerTgID int64, username, tokenEncrypted string) (*ManagedBot, error) {
	if id == "" || ownerTgID == 0 || username == "" || tokenEncrypted == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &ManagedBot{
		ID:             id,
		OwnerTgID:      ownerTgID,
		Username:       username,
		TokenEncrypted: tokenEncrypted,
		Messages:       map[string]string{},
		CreatedAt:      time.Now(),
	}, nil
}

// Message returns the configured template for key, falling back to the
// built-in default when the operator never customized it.
func (b *ManagedBot) Message(key string) string {
	if b != nil && b.Messages != nil {
		if m, ok := b.Messages[key]; ok && m != "" {
			return m
		}
	}
	return defaultMessages[key]
}

// IsAdmin reports whether tgID may approve or reject requests for this bot.
func (b *ManagedBot) IsAdmin(tgID int64) bool {
	if tgID == b.OwnerTgID {
		return true
	}
	for _, id := range b.AdminTgIDs {
		if id == tgID {
			return true
		}
	}
	return false
}
