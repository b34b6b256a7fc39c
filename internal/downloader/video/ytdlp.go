package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	domainerrors "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/filemanager"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/utils"
)

const (
	defaultYtdlpBinary = "yt-dlp"
	defaultTimeout     = 10 * time.Minute
	outputTemplate     = "%(title)s.%(ext)s"
	videoFormat        = "best"
	audioFormatSpec    = "bestaudio/best"
	AudioCodec         = "mp3"
	AudioQuality       = "192K"
)

// Containers yt-dlp may report for an audio download before or after extraction.
var audioContainers = map[string]struct{}{
	".webm": {}, ".m4a": {}, ".opus": {}, ".ogg": {}, ".oga": {}, ".aac": {},
	".wav": {}, ".flac": {}, ".mp4": {}, ".mka": {}, ".weba": {}, ".mp3": {},
}

type Options struct {
	BinaryPath   string
	DownloadDir  string
	CookiesFile  string
	Proxy        string
	ProxyDomains string
	Timeout      time.Duration
}

// Fetcher downloads YouTube media into DownloadDir by driving yt-dlp.
type Fetcher struct {
	opts   Options
	runner Runner
}

func NewFetcher(opts Options, runner Runner) *Fetcher {
	if opts.BinaryPath == "" {
		opts.BinaryPath = defaultYtdlpBinary
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Fetcher{opts: opts, runner: runner}
}

var _ domain.Fetcher = (*Fetcher)(nil)

// Fetch downloads url as video or audio and returns the produced file.
// Every failure is reported as a fetch_failed kind; details go to the log.
func (f *Fetcher) Fetch(ctx context.Context, videoURL string, kind domain.MediaKind) (domain.DownloadedFile, error) {
	logger := logutils.Log.WithFields(map[string]any{
		"url":  videoURL,
		"kind": kind,
	})

	dir := filemanager.RequestDir(f.opts.DownloadDir)
	logger = logger.WithField("dir", dir)

	args, err := f.buildArgs(videoURL, kind, dir)
	if err != nil {
		logger.WithError(err).Error("Failed to build yt-dlp arguments")
		return domain.DownloadedFile{}, fetchFailed(err, "invalid request")
	}

	runCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	logger.Info("Starting yt-dlp download")
	stdout, stderr, err := f.runner.Run(runCtx, f.opts.BinaryPath, args...)
	if err != nil {
		discard(dir)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logger.WithField("timeout", f.opts.Timeout).Warn("yt-dlp download timed out")
			return domain.DownloadedFile{}, fetchFailed(runCtx.Err(), "yt-dlp timed out")
		}
		execErr := wrapExecError(f.opts.BinaryPath, args, stderr, err)
		logger.WithError(err).Errorf("yt-dlp exited with error: %s", strings.TrimSpace(string(stderr)))
		return domain.DownloadedFile{}, fetchFailed(execErr, "yt-dlp failed")
	}

	path := lastLine(stdout)
	if path == "" {
		discard(dir)
		logger.Error("yt-dlp did not report an output file")
		return domain.DownloadedFile{}, fetchFailed(errors.New("empty output"), "yt-dlp produced no file")
	}
	if kind == domain.MediaAudio {
		path = AudioPath(path)
	}

	if _, err := os.Stat(path); err != nil {
		discard(dir)
		logger.WithError(err).WithField("path", path).Error("yt-dlp output file is missing")
		missing := utils.WrapError(utils.ErrFileNotFound, "yt-dlp output", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return domain.DownloadedFile{}, fetchFailed(missing, "downloaded file is missing")
	}

	logger.WithField("path", path).Info("yt-dlp download completed")
	return domain.DownloadedFile{Path: path, Kind: kind, Dir: dir}, nil
}

// discard drops whatever a failed run left in its request directory.
func discard(dir string) {
	if err := filemanager.NewTempFile(dir).Remove(); err != nil {
		logutils.Log.WithError(err).WithField("dir", dir).Warn("Failed to remove request directory")
	}
}

// buildArgs writes into dir so that two requests for the same title never share a path.
func (f *Fetcher) buildArgs(videoURL string, kind domain.MediaKind, dir string) ([]string, error) {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--print", "after_move:filepath",
		"-o", filepath.Join(dir, outputTemplate),
	}

	switch kind {
	case domain.MediaVideo:
		args = append(args, "-f", videoFormat)
	case domain.MediaAudio:
		args = append(args,
			"-f", audioFormatSpec,
			"-x",
			"--audio-format", AudioCodec,
			"--audio-quality", AudioQuality,
		)
	default:
		return nil, fmt.Errorf("unsupported media kind: %s", kind)
	}

	if f.opts.CookiesFile != "" {
		if _, err := os.Stat(f.opts.CookiesFile); err == nil {
			args = append(args, "--cookies", f.opts.CookiesFile)
		} else {
			logutils.Log.WithField("cookies_file", f.opts.CookiesFile).Debug("Cookies file not found, downloading without it")
		}
	}

	useProxy, err := shouldUseProxy(videoURL, f.opts.Proxy, f.opts.ProxyDomains)
	if err != nil {
		return nil, err
	}
	if useProxy {
		logutils.Log.WithField("proxy", f.opts.Proxy).Infof("Using proxy for URL: %s", videoURL)
		args = append(args, "--proxy", f.opts.Proxy)
	}

	return append(args, "--", videoURL), nil
}

// AudioPath rewrites the extractor's container extension to the target audio extension.
func AudioPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := audioContainers[ext]; ok {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path + "." + AudioCodec
}

func shouldUseProxy(rawURL, proxy, proxyDomains string) (bool, error) {
	if proxy == "" {
		return false, nil
	}

	if proxyDomains == "" {
		return true, nil
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("failed to parse URL: %w", err)
	}

	hostname := parsedURL.Hostname()
	for _, d := range strings.Split(proxyDomains, ",") {
		d = strings.TrimSpace(d)
		if d != "" && strings.Contains(hostname, d) {
			return true, nil
		}
	}

	return false, nil
}

func lastLine(out []byte) string {
	var last string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	return last
}

func fetchFailed(cause error, message string) error {
	return domainerrors.Wrap(cause, domainerrors.KindFetchFailed, domainerrors.ErrFetchFailed.Code, message)
}
