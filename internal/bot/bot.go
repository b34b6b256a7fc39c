package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollTimeoutSeconds = 60

// Bot реализует интерфейс BotInterface поверх telegram-bot-api
type Bot struct {
	Api *tgbotapi.BotAPI
}

var (
	_ domain.BotInterface              = (*Bot)(nil)
	_ domain.GracefulShutdownInterface = (*Bot)(nil)
)

// InitBot авторизует бота; timeout ограничивает каждый HTTP-запрос, включая загрузку файлов
func InitBot(token string, timeout time.Duration) (*Bot, error) {
	client := &http.Client{Timeout: timeout + pollTimeoutSeconds*time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		logutils.Log.WithError(err).Error("Error creating bot")
		return nil, fmt.Errorf("error creating bot: %w", err)
	}
	logutils.Log.Infof("Authorized on account %s", api.Self.UserName)
	return &Bot{Api: api}, nil
}

func (b *Bot) SendMessage(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := b.Api.Send(msg)
	if err != nil {
		logutils.Log.WithError(err).Errorf("Message not sent: %s", text)
		return 0, err
	}
	return sent.MessageID, nil
}

// SendMessageWithMarkup отправляет сообщение с inline клавиатурой
func (b *Bot) SendMessageWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup

	sent, err := b.Api.Send(msg)
	if err != nil {
		logutils.Log.WithError(err).Errorf("Failed to send message with markup to chat %d", chatID)
		return 0, err
	}

	logutils.Log.Debugf("Message with markup sent to chat %d", chatID)
	return sent.MessageID, nil
}

func (b *Bot) SendVideo(chatID int64, path string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.SupportsStreaming = true
	if _, err := b.Api.Send(video); err != nil {
		logutils.Log.WithError(err).Errorf("Failed to send video %s to chat %d", path, chatID)
		return err
	}
	logutils.Log.WithField("path", path).Infof("Video sent to chat %d", chatID)
	return nil
}

func (b *Bot) SendAudio(chatID int64, path string) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	if _, err := b.Api.Send(audio); err != nil {
		logutils.Log.WithError(err).Errorf("Failed to send audio %s to chat %d", path, chatID)
		return err
	}
	logutils.Log.WithField("path", path).Infof("Audio sent to chat %d", chatID)
	return nil
}

func (b *Bot) DeleteMessage(chatID int64, messageID int) error {
	deleteMsg := tgbotapi.NewDeleteMessage(chatID, messageID)
	_, err := b.Api.Request(deleteMsg)
	if err != nil {
		logutils.Log.WithError(err).Errorf("Failed to delete message %d in chat %d", messageID, chatID)
	}
	return err
}

// AnswerCallbackQuery отвечает на callback query
func (b *Bot) AnswerCallbackQuery(callbackID, text string) error {
	if _, err := b.Api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		logutils.Log.WithError(err).Error("Failed to answer callback query")
		return err
	}
	logutils.Log.Debug("Callback query answered successfully")
	return nil
}

// Updates запускает long polling
func (b *Bot) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	return b.Api.GetUpdatesChan(u)
}

func (*Bot) Name() string { return "search-and-fetch bot" }

// Shutdown останавливает long polling; обработчики в работе завершаются сами
func (b *Bot) Shutdown(_ context.Context) error {
	b.Api.StopReceivingUpdates()
	return nil
}
