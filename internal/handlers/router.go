package handlers

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrUpdatesClosed is returned by Serve when the update source stops before shutdown.
var ErrUpdatesClosed = errors.New("update channel closed")

func (h *Handler) Router(ctx context.Context, update *tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.CallbackHandler(ctx, update)
		return
	}

	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	command := strings.ToLower(update.Message.Command())
	switch command {
	case "start":
		h.StartHandler(update)
	case "video":
		h.MediaHandler(ctx, update, domain.MediaVideo)
	case "audio":
		h.MediaHandler(ctx, update, domain.MediaAudio)
	case "link":
		h.LinkHandler(ctx, update)
	default:
		logutils.Log.Debugf("Unknown command: %s", command)
	}
}

// Serve dispatches every update on its own goroutine until updates is closed
// or ctx is done, then waits for the requests in flight. A closed channel
// yields ErrUpdatesClosed so the caller can shut the process down.
func (h *Handler) Serve(ctx context.Context, updates <-chan tgbotapi.Update) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				logutils.Log.Warn("Update channel closed")
				return ErrUpdatesClosed
			}
			wg.Add(1)
			go func(update tgbotapi.Update) {
				defer wg.Done()
				h.dispatch(ctx, &update)
			}(update)
		case <-ctx.Done():
			logutils.Log.Info("Stopping update processing")
			return nil
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, update *tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logutils.Log.WithField("update_id", update.UpdateID).
				Errorf("Recovered from panic in handler: %v\n%s", r, debug.Stack())
		}
	}()
	h.Router(ctx, update)
}
