package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	domainerrors "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/errors"
	ytdlp "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/downloader/video"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/handlers/ui"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/lang"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const maxTitleLength = 100

func (h *Handler) StartHandler(update *tgbotapi.Update) {
	_, _ = h.bot.SendMessage(update.Message.Chat.ID, lang.GetMessage(lang.StartCommandMsgID))
}

// MediaHandler serves /video and /audio.
func (h *Handler) MediaHandler(ctx context.Context, update *tgbotapi.Update, kind domain.MediaKind) {
	msg := update.Message
	query := strings.TrimSpace(msg.CommandArguments())
	if query == "" {
		usage := lang.VideoUsageMsgID
		if kind == domain.MediaAudio {
			usage = lang.AudioUsageMsgID
		}
		_, _ = h.bot.SendMessage(msg.Chat.ID, lang.GetMessage(usage))
		return
	}

	p := &pending{chatID: msg.Chat.ID}
	h.sendTracked(p, lang.GetMessage(lang.LoadingMsgID))
	p.add(msg.MessageID)
	defer h.cleanup(p)

	result, err := h.resolver.Resolve(ctx, query)
	if err != nil {
		entry := logutils.Log.WithFields(errorFields(err)).WithFields(logrus.Fields{
			"chat_id": msg.Chat.ID,
			"query":   query,
		})
		if errors.Is(err, domainerrors.ErrNoResults) {
			entry.Info("No search results")
		} else {
			entry.WithError(err).Error("Search provider failed")
		}
		h.sendTracked(p, lang.GetMessage(lang.NoResultsMsgID))
		return
	}

	logutils.Log.WithFields(logrus.Fields{
		"query":    query,
		"video_id": result.VideoID,
	}).Debug("Query resolved")
	h.fetchAndDeliver(ctx, p, kind, result.URL)
}

// LinkHandler offers an audio or video choice for a direct link.
func (h *Handler) LinkHandler(ctx context.Context, update *tgbotapi.Update) {
	msg := update.Message
	url, err := parseLinkArgument(msg.CommandArguments())
	if err != nil {
		logutils.Log.WithError(err).WithField("chat_id", msg.Chat.ID).Debug("Link rejected")
		_, _ = h.bot.SendMessage(msg.Chat.ID, lang.GetMessage(lang.LinkUsageMsgID))
		return
	}

	text := lang.GetMessage(lang.LinkPromptMsgID)
	if h.titles != nil {
		if title, err := h.titles.Title(ctx, url); err == nil && title != "" {
			text = lang.GetMessage(lang.LinkPromptTitleMsgID, utils.TruncateText(title, maxTitleLength))
		} else if err != nil {
			logutils.Log.WithError(err).WithField("url", url).Debug("Title lookup failed")
		}
	}

	videoID, _ := ytdlp.VideoID(url)
	logutils.Log.WithFields(logrus.Fields{
		"chat_id":  msg.Chat.ID,
		"url":      url,
		"video_id": videoID,
	}).Info("Link choice requested")

	_, _ = h.bot.SendMessageWithMarkup(msg.Chat.ID, text, ui.GetLinkKeyboard(h.callbacks, url))
}

// CallbackHandler continues a /link request once a button is pressed.
func (h *Handler) CallbackHandler(ctx context.Context, update *tgbotapi.Update) {
	query := update.CallbackQuery

	kind, url, err := h.callbacks.DecodeCallback(query.Data)
	if err != nil {
		answer := ""
		if errors.Is(err, ui.ErrExpiredCallback) {
			answer = lang.GetMessage(lang.ButtonExpiredMsgID)
		}
		_ = h.bot.AnswerCallbackQuery(query.ID, answer)
		logutils.Log.WithError(err).WithField("data", query.Data).Warn("Rejected callback data")
		return
	}
	_ = h.bot.AnswerCallbackQuery(query.ID, "")

	if query.Message == nil {
		logutils.Log.WithField("callback_id", query.ID).Warn("Callback without message")
		return
	}

	p := &pending{chatID: query.Message.Chat.ID}
	h.sendTracked(p, lang.GetMessage(lang.LoadingMsgID))
	p.add(query.Message.MessageID)
	defer h.cleanup(p)

	h.fetchAndDeliver(ctx, p, kind, url)
}

// parseLinkArgument returns the first argument of /link when it is an http(s) URL.
func parseLinkArgument(arguments string) (string, error) {
	args := strings.Fields(arguments)
	if len(args) == 0 {
		return "", utils.WrapError(utils.ErrInvalidURL, "link argument is missing", nil)
	}
	if !utils.IsValidLink(args[0]) {
		return "", utils.WrapError(utils.ErrInvalidURL, "link argument rejected", map[string]any{"url": args[0]})
	}
	return args[0], nil
}
