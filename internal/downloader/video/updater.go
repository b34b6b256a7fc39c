package ytdlp

import (
	"context"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
)

const updateTimeout = 3 * time.Minute

// RunUpdate runs "yt-dlp -U". Failures are logged and never returned.
func RunUpdate(ctx context.Context, runner Runner, binaryPath string) {
	if binaryPath == "" {
		binaryPath = defaultYtdlpBinary
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	stdout, stderr, err := runner.Run(updateCtx, binaryPath, "-U")
	out := strings.TrimSpace(string(stdout) + "\n" + string(stderr))

	if err != nil {
		if updateCtx.Err() != nil {
			logutils.Log.WithError(err).Warn("yt-dlp update timed out or was canceled")
			return
		}
		logutils.Log.WithError(err).WithFields(map[string]any{
			"output": out,
			"binary": binaryPath,
		}).Warn("yt-dlp update failed")
		return
	}

	logutils.Log.WithFields(map[string]any{
		"binary": binaryPath,
		"output": out,
	}).Info("yt-dlp update check completed successfully")
}
