package search

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	domainerrors "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/utils"
	"github.com/go-resty/resty/v2"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// YouTube resolves free-text queries through the YouTube Data API v3 search endpoint.
type YouTube struct {
	Client *resty.Client
	APIKey string
}

type searchResponse struct {
	Items []struct {
		ID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewYouTube creates a resolver. baseURL is the API root, e.g. https://www.googleapis.com/youtube/v3
func NewYouTube(baseURL, apiKey string, timeout time.Duration) *YouTube {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	logutils.Log.Infof("Initialized YouTube search client with baseURL: %s", baseURL)
	return &YouTube{
		Client: client,
		APIKey: apiKey,
	}
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return watchURLPrefix + url.QueryEscape(videoID)
}

// Resolve returns the first video result for query.
// Zero results and provider failures both come back as not_found kinds with distinct codes.
func (y *YouTube) Resolve(ctx context.Context, query string) (domain.SearchResult, error) {
	logger := logutils.Log.WithField("query", query)

	resp, err := y.Client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part":       "snippet",
			"type":       "video",
			"maxResults": "1",
			"q":          query,
			"key":        y.APIKey,
		}).
		SetResult(&searchResponse{}).
		SetError(&apiErrorResponse{}).
		Get("/search")

	if err != nil {
		logger.WithError(err).Error("Failed to perform YouTube search request")
		return domain.SearchResult{}, domainerrors.Wrap(err, domainerrors.KindNotFound, domainerrors.ErrProviderFailed.Code, "youtube search request failed")
	}
	if resp.IsError() {
		fields := map[string]any{"status": resp.Status()}
		if apiErr, ok := resp.Error().(*apiErrorResponse); ok && apiErr != nil && apiErr.Error.Message != "" {
			fields["api_error"] = apiErr.Error.Message
		}
		logger.WithFields(fields).Warn("YouTube search returned error status")
		return domain.SearchResult{}, domainerrors.Wrap(
			utils.WrapError(utils.ErrExternalServiceError, "youtube search", map[string]any{"status": resp.StatusCode()}),
			domainerrors.KindNotFound, domainerrors.ErrProviderFailed.Code, "youtube search error: "+resp.Status())
	}

	result, ok := resp.Result().(*searchResponse)
	if !ok || result == nil {
		logger.Error("Failed to parse search response from YouTube")
		return domain.SearchResult{}, domainerrors.New(domainerrors.KindNotFound, domainerrors.ErrProviderFailed.Code, "failed to parse youtube search response")
	}

	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		found := domain.SearchResult{
			VideoID: item.ID.VideoID,
			URL:     WatchURL(item.ID.VideoID),
		}
		logger.WithFields(map[string]any{
			"video_id": found.VideoID,
			"title":    item.Snippet.Title,
		}).Info("YouTube search resolved query")
		return found, nil
	}

	logger.Info("YouTube search returned no results")
	return domain.SearchResult{}, domainerrors.New(domainerrors.KindNotFound, domainerrors.ErrNoResults.Code, domainerrors.ErrNoResults.Message)
}
