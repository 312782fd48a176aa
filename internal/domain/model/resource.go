package model

import "telegram-paid-access/internal/domain"

type ResourceKind string

const (
	ResourceKindChannel ResourceKind = "channel"
	ResourceKindGroup   ResourceKind = "group"
)

// InviteStrategy selects how a buyer is admitted to a resource.
type InviteStrategy string

const (
	// InviteStrategyUnique mints a fresh invite link per grant.
	InviteStrategyUnique InviteStrategy = "unique"
	// InviteStrategyStatic hands out the chat's primary invite link.
	InviteStrategyStatic InviteStrategy = "static"
	// InviteStrategyRequest approves the buyer's pending join request.
	InviteStrategyRequest InviteStrategy = "request"
	// InviteStrategyCustom returns the operator-provided link verbatim.
	InviteStrategyCustom InviteStrategy = "custom"
)

// Resource is an external chat (channel or group) whose membership the
// platform controls on behalf of a managed bot. Read-only from the core's
// perspective: the orchestrator only ever resolves and inspects it.
type Resource struct {
	ID             string
	BotID          string
	TgChatID       int64
	Kind           ResourceKind
	InviteStrategy InviteStrategy
	CustomLink     string
	Mandatory      bool
}

// NewResource validates and constructs a resource.
func NewResource(id, botID string, tgChatID int64, kind ResourceKind, strategy InviteStrategy) (*Resource, error) {
	if id == "" || botID == "" || tgChatID == 0 {
		return nil, domain.ErrInvalidArgument
	}
	switch kind {
	case ResourceKindChannel, ResourceKindGroup:
	default:
		return nil, domain.ErrInvalidArgument
	}
	switch strategy {
	case InviteStrategyUnique, InviteStrategyStatic, InviteStrategyRequest, InviteStrategyCustom:
	default:
		return nil, domain.ErrInvalidArgument
	}
	return &Resource{
		ID:             id,
		BotID:          botID,
		TgChatID:       tgChatID,
		Kind:           kind,
		InviteStrategy: strategy,
	}, nil
}
