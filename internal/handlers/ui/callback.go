package ui

import (
	"errors"
	"strings"
	"sync"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	"github.com/google/uuid"
)

// MaxCallbackData is Telegram's limit on callback_data, in bytes.
const MaxCallbackData = 64

const (
	separator   = "|"
	tokenMarker = "~"
)

var (
	ErrMalformedCallback = errors.New("malformed callback data")
	ErrExpiredCallback   = errors.New("callback token expired")
)

// CallbackStore keeps URLs that do not fit into callback_data.
type CallbackStore struct {
	mu   sync.Mutex
	urls map[string]string
}

func NewCallbackStore() *CallbackStore {
	return &CallbackStore{urls: make(map[string]string)}
}

func (s *CallbackStore) put(url string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	s.urls[token] = url
	s.mu.Unlock()
	return token
}

// take returns the URL and forgets the token.
func (s *CallbackStore) take(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url, ok := s.urls[token]
	if ok {
		delete(s.urls, token)
	}
	return url, ok
}

func (s *CallbackStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

// EncodeCallback builds "kind|url", or "kind|~token" when the plain form is too long.
func (s *CallbackStore) EncodeCallback(kind domain.MediaKind, url string) string {
	data := string(kind) + separator + url
	if len(data) <= MaxCallbackData {
		return data
	}
	return string(kind) + separator + tokenMarker + s.put(url)
}

// DecodeCallback reverses EncodeCallback. A token is consumed on first use.
func (s *CallbackStore) DecodeCallback(data string) (domain.MediaKind, string, error) {
	rawKind, payload, ok := strings.Cut(data, separator)
	if !ok || payload == "" {
		return "", "", ErrMalformedCallback
	}
	kind, ok := domain.ParseMediaKind(rawKind)
	if !ok {
		return "", "", ErrMalformedCallback
	}
	if !strings.HasPrefix(payload, tokenMarker) {
		return kind, payload, nil
	}
	url, ok := s.take(strings.TrimPrefix(payload, tokenMarker))
	if !ok {
		return "", "", ErrExpiredCallback
	}
	return kind, url, nil
}
