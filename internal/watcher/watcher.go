// Package watcher forwards Instagram media posted in chats to the sender's private chat.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	domainerrors "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/filemanager"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/instagram"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/lang"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/utils"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
)

// Sender is the subset of *tgbot.Bot the watcher talks to.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *tgbot.DeleteMessageParams) (bool, error)
	SendPhoto(ctx context.Context, params *tgbot.SendPhotoParams) (*models.Message, error)
	SendVideo(ctx context.Context, params *tgbot.SendVideoParams) (*models.Message, error)
}

// PostFetcher downloads the single media item behind a post link.
type PostFetcher interface {
	Fetch(ctx context.Context, link string) (domain.DownloadedFile, string, error)
}

type Watcher struct {
	sender        Sender
	fetcher       PostFetcher
	validator     domain.Validator
	uploadTimeout time.Duration

	removeFile func(path string) error
}

func New(sender Sender, fetcher PostFetcher, validator domain.Validator, uploadTimeout time.Duration) *Watcher {
	return &Watcher{
		sender:        sender,
		fetcher:       fetcher,
		validator:     validator,
		uploadTimeout: uploadTimeout,
		removeFile: func(path string) error {
			return filemanager.NewTempFile(path).Remove()
		},
	}
}

// HandleUpdate is the go-telegram default handler. It never panics out.
func (w *Watcher) HandleUpdate(ctx context.Context, update *models.Update) {
	defer func() {
		if r := recover(); r != nil {
			logutils.Log.WithField("update_id", update.ID).
				Errorf("Recovered from panic in watcher: %v\n%s", r, debug.Stack())
		}
	}()
	if update.Message == nil {
		return
	}
	w.Process(ctx, update.Message)
}

// Process handles one chat message; messages without an Instagram link are ignored.
func (w *Watcher) Process(ctx context.Context, msg *models.Message) {
	link, ok := instagram.FindLink(msg.Text)
	if !ok || msg.From == nil {
		return
	}

	chatID := msg.Chat.ID
	log := logutils.Log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"user_id": msg.From.ID,
		"link":    link,
	})

	status, err := w.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   lang.GetMessage(lang.InstagramDownloadingMsgID),
	})
	if err != nil {
		log.WithError(err).Error("Failed to post status message")
		return
	}

	file, caption, err := w.fetcher.Fetch(ctx, link)
	if err != nil {
		derr := domainerrors.Wrap(err, domainerrors.KindFetchFailed, domainerrors.ErrFetchFailed.Code, "instagram fetch failed")
		log.WithError(derr).Error("Instagram download failed")
		w.editStatus(ctx, status, lang.GetMessage(lang.InstagramErrorMsgID, utils.RootError(err).Error()))
		return
	}

	// файл уже удален валидатором
	media, err := w.validator.Validate(ctx, file, caption)
	if err != nil {
		log.WithError(err).WithField("path", file.Path).Warn("Instagram media rejected")
		w.editStatus(ctx, status, lang.GetMessage(lang.InstagramFailedMsgID))
		return
	}

	w.editStatus(ctx, status, lang.GetMessage(lang.InstagramUploadingMsgID))

	err = w.deliver(ctx, msg.From.ID, media)
	if removeErr := w.removeFile(media.Path); removeErr != nil {
		log.WithError(removeErr).WithField("path", media.Path).Warn("Failed to remove instagram media")
	}
	if err != nil {
		derr := domainerrors.Wrap(err, domainerrors.KindUploadFailed, domainerrors.ErrUploadFailed.Code, "private delivery failed")
		log.WithError(derr).Error("Failed to send instagram media")
		w.editStatus(ctx, status, lang.GetMessage(lang.InstagramSendFailedMsgID, utils.RootError(err).Error()))
		return
	}

	if _, err := w.sender.DeleteMessage(ctx, &tgbot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: status.ID,
	}); err != nil {
		log.WithError(err).Warn("Failed to delete status message")
	}
	log.WithField("kind", media.Kind).Info("Instagram media delivered")
}

func (w *Watcher) editStatus(ctx context.Context, status *models.Message, text string) {
	_, err := w.sender.EditMessageText(ctx, &tgbot.EditMessageTextParams{
		ChatID:    status.Chat.ID,
		MessageID: status.ID,
		Text:      text,
	})
	if err != nil {
		logutils.Log.WithError(err).WithField("message_id", status.ID).Warn("Failed to edit status message")
	}
}

// deliver sends media to the user's private chat.
func (w *Watcher) deliver(ctx context.Context, userID int64, media domain.MediaDescriptor) error {
	f, err := os.Open(media.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if w.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.uploadTimeout)
		defer cancel()
	}

	upload := &models.InputFileUpload{Filename: filepath.Base(media.Path), Data: f}
	if media.Kind == domain.MediaVideo {
		_, err = w.sender.SendVideo(ctx, &tgbot.SendVideoParams{
			ChatID:            userID,
			Video:             upload,
			Duration:          media.Duration,
			Caption:           media.Caption,
			SupportsStreaming: true,
		})
		return err
	}
	_, err = w.sender.SendPhoto(ctx, &tgbot.SendPhotoParams{
		ChatID:  userID,
		Photo:   upload,
		Caption: media.Caption,
	})
	return err
}
