package testutils

import (
	"sync"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MockMessage captures a single message sent by MockBot.
type MockMessage struct {
	ID       int
	ChatID   int64
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

// MockUpload captures a single file sent by MockBot.
type MockUpload struct {
	ChatID int64
	Path   string
	Kind   domain.MediaKind
}

// MockDeletion captures a single delete attempt.
type MockDeletion struct {
	ChatID    int64
	MessageID int
}

// MockAnswer captures a callback answer.
type MockAnswer struct {
	CallbackID string
	Text       string
}

// MockBot implements domain.BotInterface for testing.
// Message IDs are assigned from 1000 upwards.
type MockBot struct {
	mu sync.Mutex

	SentMessages []MockMessage
	Uploads      []MockUpload
	Deletions    []MockDeletion
	Answers      []MockAnswer

	// UploadError, if set, is returned by SendVideo and SendAudio.
	UploadError error
	// DeleteErrors maps message IDs to the error DeleteMessage returns for them.
	DeleteErrors map[int]error
	// OnUpload, if set, runs before an upload is recorded.
	OnUpload func(path string)

	nextID int
}

var _ domain.BotInterface = (*MockBot)(nil)

func (m *MockBot) record(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextID == 0 {
		m.nextID = 1000
	}
	m.nextID++
	m.SentMessages = append(m.SentMessages, MockMessage{
		ID:       m.nextID,
		ChatID:   chatID,
		Text:     text,
		Keyboard: keyboard,
	})
	return m.nextID
}

func (m *MockBot) SendMessage(chatID int64, text string) (int, error) {
	return m.record(chatID, text, nil), nil
}

func (m *MockBot) SendMessageWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (int, error) {
	return m.record(chatID, text, &markup), nil
}

func (m *MockBot) upload(chatID int64, path string, kind domain.MediaKind) error {
	if m.OnUpload != nil {
		m.OnUpload(path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadError != nil {
		return m.UploadError
	}
	m.Uploads = append(m.Uploads, MockUpload{ChatID: chatID, Path: path, Kind: kind})
	return nil
}

func (m *MockBot) SendVideo(chatID int64, path string) error {
	return m.upload(chatID, path, domain.MediaVideo)
}

func (m *MockBot) SendAudio(chatID int64, path string) error {
	return m.upload(chatID, path, domain.MediaAudio)
}

func (m *MockBot) DeleteMessage(chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletions = append(m.Deletions, MockDeletion{ChatID: chatID, MessageID: messageID})
	return m.DeleteErrors[messageID]
}

func (m *MockBot) AnswerCallbackQuery(callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answers = append(m.Answers, MockAnswer{CallbackID: callbackID, Text: text})
	return nil
}

// GetLastMessage returns the most recently sent message, or nil if none.
func (m *MockBot) GetLastMessage() *MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentMessages) == 0 {
		return nil
	}
	msg := m.SentMessages[len(m.SentMessages)-1]
	return &msg
}

// Texts returns the text of every sent message in order.
func (m *MockBot) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := make([]string, 0, len(m.SentMessages))
	for _, msg := range m.SentMessages {
		texts = append(texts, msg.Text)
	}
	return texts
}

// DeletedIDs returns the message IDs DeleteMessage was called with.
func (m *MockBot) DeletedIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.Deletions))
	for _, d := range m.Deletions {
		ids = append(ids, d.MessageID)
	}
	return ids
}

// MessageIDs returns the IDs of every sent message in order.
func (m *MockBot) MessageIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.SentMessages))
	for _, msg := range m.SentMessages {
		ids = append(ids, msg.ID)
	}
	return ids
}
