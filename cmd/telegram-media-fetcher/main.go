package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tmsbot "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/bot"
	tmsconfig "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/config"
	ytdlp "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/downloader/video"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/handlers"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/instagram"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/search"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/shutdown"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/validator"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/watcher"
	"golang.org/x/sync/errgroup"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	config, err := tmsconfig.NewConfig()
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize configuration")
	}

	logutils.InitLogger(config.LogLevel)
	logutils.Log.WithFields(map[string]any{
		"version":    Version,
		"build_time": BuildTime,
	}).Info("Starting Telegram Media Fetcher")

	if err := config.EnsureDownloadDir(); err != nil {
		logutils.Log.WithError(err).Fatal("Failed to prepare download directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.YtdlpUpdateOnStart {
		ytdlp.RunUpdate(ctx, nil, config.YtdlpPath)
	}

	botInstance, err := tmsbot.InitBot(config.BotToken, config.Timeouts.Upload)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Bot initialization failed")
	}

	handler := handlers.New(handlers.Deps{
		Bot:      botInstance,
		Resolver: search.NewYouTube(config.YouTubeAPIURL, config.YouTubeAPIKey, config.Timeouts.Search),
		Fetcher: ytdlp.NewFetcher(ytdlp.Options{
			BinaryPath:   config.YtdlpPath,
			DownloadDir:  config.DownloadDir,
			CookiesFile:  config.CookiesFile,
			Proxy:        config.Proxy,
			ProxyDomains: config.ProxyDomains,
			Timeout:      config.Timeouts.Download,
		}, nil),
		Titles: ytdlp.NewTitleLookup(config.Timeouts.Search),
	})

	manager := shutdown.NewManager(config.Timeouts.Shutdown)
	manager.Register(botInstance)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Serve(gctx, botInstance.Updates())
	})

	if config.WatcherEnabled {
		watcherService, err := newWatcherService(config)
		if err != nil {
			logutils.Log.WithError(err).Fatal("Watcher initialization failed")
		}
		manager.Register(watcherService)
		g.Go(func() error {
			return watcherService.Run(gctx)
		})
	} else {
		logutils.Log.Info("Instagram watcher disabled")
	}

	logutils.Log.Info("Telegram Media Fetcher started successfully")

	<-gctx.Done()
	logutils.Log.Info("Received shutdown signal, starting graceful shutdown...")

	if err := manager.Shutdown(); err != nil {
		logutils.Log.WithError(err).Error("Graceful shutdown finished with errors")
	}
	if err := g.Wait(); err != nil {
		logutils.Log.WithError(err).Error("Front end stopped with error")
		os.Exit(1)
	}

	logutils.Log.Info("Telegram Media Fetcher shutdown complete")
}

func newWatcherService(config *tmsconfig.Config) (*watcher.Service, error) {
	client := instagram.NewClient(instagram.Options{
		SessionID:   config.InstagramSessionID,
		DownloadDir: config.DownloadDir,
		TempPrefix:  config.TempPrefix,
		Timeout:     config.Timeouts.Download,
	})
	mediaValidator := validator.New(validator.FFProbe{BinaryPath: config.FfprobePath}, config.Timeouts.Validate)

	return watcher.NewService(config.WatcherBotToken, func(sender watcher.Sender) *watcher.Watcher {
		return watcher.New(sender, client, mediaValidator, config.Timeouts.Upload)
	})
}
