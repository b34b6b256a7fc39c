package handlers

import (
	"context"
	"errors"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	domainerrors "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/filemanager"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/handlers/ui"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/lang"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/sirupsen/logrus"
)

// Handler serves the search-and-fetch commands. It holds no per-request state.
type Handler struct {
	bot       domain.BotInterface
	resolver  domain.Resolver
	fetcher   domain.Fetcher
	titles    domain.TitleLookup
	callbacks *ui.CallbackStore

	removeFile func(*filemanager.TempFile) error
}

type Deps struct {
	Bot      domain.BotInterface
	Resolver domain.Resolver
	Fetcher  domain.Fetcher
	Titles   domain.TitleLookup
}

func New(deps Deps) *Handler {
	return &Handler{
		bot:        deps.Bot,
		resolver:   deps.Resolver,
		fetcher:    deps.Fetcher,
		titles:     deps.Titles,
		callbacks:  ui.NewCallbackStore(),
		removeFile: (*filemanager.TempFile).Remove,
	}
}

// pending collects message IDs that must be deleted when the request ends.
type pending struct {
	chatID int64
	ids    []int
}

func (p *pending) add(id int) {
	if id != 0 {
		p.ids = append(p.ids, id)
	}
}

// sendTracked sends text and remembers the new message for cleanup.
func (h *Handler) sendTracked(p *pending, text string) {
	id, err := h.bot.SendMessage(p.chatID, text)
	if err != nil {
		return
	}
	p.add(id)
}

// cleanup attempts every deletion once; a failure is only logged.
func (h *Handler) cleanup(p *pending) {
	for _, id := range p.ids {
		if err := h.bot.DeleteMessage(p.chatID, id); err != nil {
			derr := domainerrors.Wrap(err, domainerrors.KindDeleteFailed, domainerrors.ErrMessageNotDelete.Code, "failed to delete status message").
				WithDetails(map[string]any{
					"chat_id":    p.chatID,
					"message_id": id,
				})
			logutils.Log.WithError(derr).WithFields(derr.Details).Warn("Cleanup: message not deleted")
		}
	}
}

func errorFields(err error) logrus.Fields {
	fields := logrus.Fields{"kind": domainerrors.KindOf(err)}
	var de *domainerrors.DomainError
	if errors.As(err, &de) {
		fields["code"] = de.Code
	}
	return fields
}

func downloadFailedMessage(kind domain.MediaKind) string {
	if kind == domain.MediaAudio {
		return lang.GetMessage(lang.AudioDownloadFailedMsgID)
	}
	return lang.GetMessage(lang.VideoDownloadFailedMsgID)
}

// fetchAndDeliver runs the fetch, upload and cleanup steps for an already known URL.
func (h *Handler) fetchAndDeliver(ctx context.Context, p *pending, kind domain.MediaKind, url string) {
	log := logutils.Log.WithFields(logrus.Fields{
		"chat_id": p.chatID,
		"kind":    kind,
		"url":     url,
	})

	file, err := h.fetcher.Fetch(ctx, url, kind)
	if err != nil {
		derr := domainerrors.Wrap(err, domainerrors.KindFetchFailed, domainerrors.ErrFetchFailed.Code, "download failed").
			WithUserMessage(downloadFailedMessage(kind))
		log.WithError(derr).WithFields(errorFields(err)).Error("Download failed")
		h.sendTracked(p, derr.GetUserMessage())
		return
	}

	// file.Scope() belongs to this request alone
	tmp := filemanager.NewTempFile(file.Scope())

	if err := h.upload(p.chatID, file); err != nil {
		derr := domainerrors.Wrap(err, domainerrors.KindUploadFailed, domainerrors.ErrUploadFailed.Code, "failed to upload media").
			WithUserMessage(lang.GetMessage(lang.RequestErrorMsgID)).
			WithDetails(map[string]any{"path": file.Path})
		log.WithError(derr).WithFields(derr.Details).Error("Upload failed")
		h.sendTracked(p, derr.GetUserMessage())
	} else {
		log.WithField("path", file.Path).Info("Media delivered")
	}

	if err := h.removeFile(tmp); err != nil {
		log.WithError(err).WithField("path", tmp.Path()).Warn("Failed to remove downloaded file")
	}
}

func (h *Handler) upload(chatID int64, file domain.DownloadedFile) error {
	if file.Kind == domain.MediaAudio {
		return h.bot.SendAudio(chatID, file.Path)
	}
	return h.bot.SendVideo(chatID, file.Path)
}
