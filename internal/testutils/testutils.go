package testutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const testFileMode = 0600

// CommandUpdate builds an update carrying a bot command such as "/video lofi beats".
func CommandUpdate(chatID int64, messageID int, text string) *tgbotapi.Update {
	command := text
	if i := strings.IndexByte(text, ' '); i >= 0 {
		command = text[:i]
	}
	return &tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len(command)},
			},
		},
	}
}

// CallbackUpdate builds a button press on the given message.
func CallbackUpdate(chatID int64, messageID int, data string) *tgbotapi.Update {
	return &tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "callback-1",
			Data: data,
			Message: &tgbotapi.Message{
				MessageID: messageID,
				Chat:      &tgbotapi.Chat{ID: chatID},
			},
		},
	}
}

// CreateTestFile writes a small file under dir and returns its path.
func CreateTestFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("media"), testFileMode); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

// FileExists reports whether path is present on disk.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
