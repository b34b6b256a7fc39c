package ytdlp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	"github.com/kkdai/youtube/v2"
)

// TitleLookup reads video metadata through the YouTube player API.
type TitleLookup struct {
	client *youtube.Client
}

func NewTitleLookup(timeout time.Duration) *TitleLookup {
	return &TitleLookup{
		client: &youtube.Client{HTTPClient: &http.Client{Timeout: timeout}},
	}
}

var _ domain.TitleLookup = (*TitleLookup)(nil)

// Title returns the title of the video behind videoURL.
func (t *TitleLookup) Title(ctx context.Context, videoURL string) (string, error) {
	if _, err := youtube.ExtractVideoID(videoURL); err != nil {
		return "", err
	}
	video, err := t.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(video.Title), nil
}

// VideoID extracts the YouTube video id from a URL or bare id.
func VideoID(videoURL string) (string, bool) {
	id, err := youtube.ExtractVideoID(videoURL)
	if err != nil {
		return "", false
	}
	return id, true
}
