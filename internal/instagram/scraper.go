package instagram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/filemanager"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/utils"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://www.instagram.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var ErrNoMedia = errors.New("post page has no media")

// Post is the single media item a post references.
type Post struct {
	Shortcode string
	IsVideo   bool
	MediaURL  string
	Caption   string
}

type Options struct {
	BaseURL     string
	SessionID   string
	DownloadDir string
	TempPrefix  string
	Timeout     time.Duration
}

// Client scrapes public post pages and downloads their media.
type Client struct {
	http *resty.Client
	opts Options
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return &Client{http: client, opts: opts}
}

// FetchPost loads the post page for shortcode and parses its media.
func (c *Client) FetchPost(ctx context.Context, shortcode string) (Post, error) {
	req := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	// the session belongs to instagram.com only; CDN requests go without it
	if c.opts.SessionID != "" {
		req.SetCookie(&http.Cookie{Name: "sessionid", Value: c.opts.SessionID})
	}
	resp, err := req.Get("/p/" + shortcode + "/")
	if err != nil {
		return Post{}, fmt.Errorf("fetch post page: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return Post{}, utils.WrapError(utils.ErrExternalServiceError, "fetch post page", map[string]any{
			"shortcode": shortcode,
			"status":    resp.StatusCode(),
		})
	}

	post, err := ParsePost(body)
	if err != nil {
		return Post{}, err
	}
	post.Shortcode = shortcode
	return post, nil
}

// ParsePost reads the Open Graph tags of a post page.
func ParsePost(r io.Reader) (Post, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Post{}, fmt.Errorf("parse post page: %w", err)
	}

	meta := func(property string) string {
		value, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
		return strings.TrimSpace(value)
	}

	post := Post{Caption: captionFromDescription(meta("og:description"))}
	if video := firstNonEmpty(meta("og:video:secure_url"), meta("og:video")); video != "" {
		post.IsVideo = true
		post.MediaURL = video
	} else if img := meta("og:image"); img != "" {
		post.MediaURL = img
	} else {
		return Post{}, ErrNoMedia
	}
	return post, nil
}

// captionFromDescription strips the "N likes, M comments - user on date: " prefix
// Instagram puts in front of the quoted caption.
func captionFromDescription(desc string) string {
	start := strings.Index(desc, `: "`)
	if start < 0 {
		return ""
	}
	caption := desc[start+3:]
	caption = strings.TrimSuffix(strings.TrimSpace(caption), ".")
	caption = strings.TrimSuffix(caption, `"`)
	return strings.TrimSpace(caption)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Download streams mediaURL into dest. A partial file is removed on failure.
func (c *Client) Download(ctx context.Context, mediaURL, dest string) (err error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(mediaURL)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return utils.WrapError(utils.ErrDownloadFailed, "download media", map[string]any{
			"status": resp.StatusCode(),
		})
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
		if err != nil {
			_ = filemanager.NewTempFile(dest).Remove()
		}
	}()

	if _, err = io.Copy(out, body); err != nil {
		return fmt.Errorf("write media file: %w", err)
	}
	return nil
}

// Fetch resolves link to its single media item and saves it under a unique temp name.
// The returned caption is empty when the post has none.
func (c *Client) Fetch(ctx context.Context, link string) (domain.DownloadedFile, string, error) {
	shortcode, err := Shortcode(link)
	if err != nil {
		return domain.DownloadedFile{}, "", err
	}

	post, err := c.FetchPost(ctx, shortcode)
	if err != nil {
		return domain.DownloadedFile{}, "", err
	}

	kind, ext := domain.MediaImage, "jpg"
	if post.IsVideo {
		kind, ext = domain.MediaVideo, "mp4"
	}
	dest := filemanager.UniqueName(c.opts.DownloadDir, c.opts.TempPrefix, ext)

	logutils.Log.WithFields(map[string]any{
		"shortcode": shortcode,
		"kind":      kind,
		"path":      dest,
	}).Info("Downloading instagram media")

	if err := c.Download(ctx, post.MediaURL, dest); err != nil {
		return domain.DownloadedFile{}, "", err
	}
	return domain.DownloadedFile{Path: dest, Kind: kind}, post.Caption, nil
}
