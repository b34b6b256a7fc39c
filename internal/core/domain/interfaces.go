package domain

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Resolver находит каноническую ссылку по текстовому запросу
type Resolver interface {
	Resolve(ctx context.Context, query string) (SearchResult, error)
}

// Fetcher скачивает медиа по ссылке в локальный файл
type Fetcher interface {
	Fetch(ctx context.Context, url string, kind MediaKind) (DownloadedFile, error)
}

// TitleLookup возвращает название видео по ссылке
type TitleLookup interface {
	Title(ctx context.Context, url string) (string, error)
}

// Validator проверяет структуру скачанного файла
type Validator interface {
	Validate(ctx context.Context, file DownloadedFile, caption string) (MediaDescriptor, error)
}

// BotInterface определяет интерфейс для работы с Telegram Bot API
type BotInterface interface {
	SendMessage(chatID int64, text string) (int, error)
	SendMessageWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (int, error)
	SendVideo(chatID int64, path string) error
	SendAudio(chatID int64, path string) error
	DeleteMessage(chatID int64, messageID int) error
	AnswerCallbackQuery(callbackID, text string) error
}

// GracefulShutdownInterface реализуют сервисы, останавливаемые при завершении процесса
type GracefulShutdownInterface interface {
	Name() string
	Shutdown(ctx context.Context) error
}
