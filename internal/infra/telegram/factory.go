package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain/ports/adapter"
	"telegram-paid-access/internal/domain/ports/repository"
	"telegram-paid-access/internal/infra/security"
)

// Factory builds and caches one Gateway per managed bot. The encrypted token
// is loaded from the bot record and decrypted on first use; the resulting
// tgbotapi client is reused for the life of the process.
type Factory struct {
	botRepo repository.ManagedBotRepository
	enc     *security.EncryptionService
	log     *zerolog.Logger

	mu    sync.Mutex
	cache map[string]*Gateway
}

var _ adapter.GatewayFactory = (*Factory)(nil)

func NewFactory(botRepo repository.ManagedBotRepository, enc *security.EncryptionService, logger *zerolog.Logger) *Factory {
	fLog := logger.With().Str("component", "GatewayFactory").Logger()
	return &Factory{
		botRepo: botRepo,
		enc:     enc,
		log:     &fLog,
		cache:   map[string]*Gateway{},
	}
}

func (f *Factory) ForBot(ctx context.Context, botID string) (adapter.AccessGateway, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gw, ok := f.cache[botID]; ok {
		return gw, nil
	}

	bot, err := f.botRepo.FindByID(ctx, repository.NoTX, botID)
	if err != nil {
		return nil, fmt.Errorf("load bot %s: %w", botID, err)
	}
	token, err := f.enc.Decrypt(bot.TokenEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt token for bot %s: %w", botID, err)
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot api for %s: %w", bot.Username, err)
	}

	gw := NewGateway(api, f.log)
	f.cache[botID] = gw
	f.log.Info().Str("bot_id", botID).Str("username", bot.Username).Msg("gateway created")
	return gw, nil
}

// Register seeds the cache with an already-constructed client, used for the
// bot this process polls so polling and granting share one session.
func (f *Factory) Register(botID string, api *tgbotapi.BotAPI) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[botID] = NewGateway(api, f.log)
}
