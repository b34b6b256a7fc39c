package watcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Service runs the watcher on its own bot connection.
type Service struct {
	bot *tgbot.Bot

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ domain.GracefulShutdownInterface = (*Service)(nil)

// NewService builds the bot and a Watcher that sends through it.
func NewService(token string, build func(Sender) *Watcher) (*Service, error) {
	if token == "" {
		return nil, fmt.Errorf("watcher token is required")
	}

	var w *Watcher
	b, err := tgbot.New(token, tgbot.WithDefaultHandler(func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
		w.HandleUpdate(ctx, update)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher bot: %w", err)
	}
	w = build(b)

	logutils.Log.Info("Watcher bot created")
	return &Service{bot: b}, nil
}

// Run polls for updates until ctx is done or Shutdown is called.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	logutils.Log.Info("Starting watcher bot")
	s.bot.Start(ctx)
	logutils.Log.Info("Watcher bot stopped")
	return nil
}

func (*Service) Name() string { return "instagram watcher" }

func (s *Service) Shutdown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
