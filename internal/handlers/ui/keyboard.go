package ui

import (
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/lang"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// GetLinkKeyboard returns the Audio/Video choice shown after /link.
func GetLinkKeyboard(store *CallbackStore, url string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				lang.GetMessage(lang.DownloadAudioButtonMsgID),
				store.EncodeCallback(domain.MediaAudio, url),
			),
			tgbotapi.NewInlineKeyboardButtonData(
				lang.GetMessage(lang.DownloadVideoButtonMsgID),
				store.EncodeCallback(domain.MediaVideo, url),
			),
		),
	)
}
