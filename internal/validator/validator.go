package validator

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	domainerrors "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/filemanager"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/lang"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	_ "golang.org/x/image/webp"
)

const defaultValidateTimeout = 30 * time.Second

// MediaValidator checks that a downloaded file is a well-formed image or video.
// Files that fail the check are removed.
type MediaValidator struct {
	prober  Prober
	timeout time.Duration
}

func New(prober Prober, timeout time.Duration) *MediaValidator {
	if prober == nil {
		prober = FFProbe{}
	}
	if timeout <= 0 {
		timeout = defaultValidateTimeout
	}
	return &MediaValidator{prober: prober, timeout: timeout}
}

var _ domain.Validator = (*MediaValidator)(nil)

func (v *MediaValidator) Validate(ctx context.Context, file domain.DownloadedFile, caption string) (domain.MediaDescriptor, error) {
	if caption == "" {
		caption = lang.GetMessage(lang.InstagramCaptionMsgID)
	}
	logger := logutils.Log.WithFields(map[string]any{
		"path": file.Path,
		"kind": file.Kind,
	})

	var (
		duration int
		err      error
	)
	switch file.Kind {
	case domain.MediaVideo:
		duration, err = v.validateVideo(ctx, file.Path)
	case domain.MediaImage:
		err = validateImage(file.Path)
	default:
		err = fmt.Errorf("unsupported media kind: %s", file.Kind)
	}

	if err != nil {
		logger.WithError(err).Warn("Media failed validation, removing file")
		if removeErr := filemanager.NewTempFile(file.Path).Remove(); removeErr != nil {
			logger.WithError(removeErr).Error("Failed to remove invalid media")
		}
		return domain.MediaDescriptor{}, domainerrors.Wrap(err, domainerrors.KindValidationFailed,
			domainerrors.ErrInvalidMedia.Code, "media failed structural check")
	}

	logger.WithField("duration", duration).Debug("Media passed validation")
	return domain.MediaDescriptor{
		Path:     file.Path,
		Kind:     file.Kind,
		Caption:  caption,
		Duration: duration,
	}, nil
}

func (v *MediaValidator) validateVideo(ctx context.Context, path string) (int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	info, err := v.prober.Probe(probeCtx, path)
	if err != nil {
		return 0, err
	}

	duration := info.Duration()
	if info.Width == 0 || info.Height == 0 || duration == 0 {
		return 0, fmt.Errorf("invalid video: width=%d height=%d fps=%.3f frames=%d",
			info.Width, info.Height, info.FPS, info.FrameCount)
	}
	return duration, nil
}

func validateImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return errors.New("image has zero dimensions")
	}

	logutils.Log.WithFields(map[string]any{
		"format": format,
		"width":  bounds.Dx(),
		"height": bounds.Dy(),
	}).Debug("Image decoded")
	return nil
}
