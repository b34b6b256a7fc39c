package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	domainerrors "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/errors"
	ytdlp "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/downloader/video"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/filemanager"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/lang"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/search"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/testutils"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChatID int64 = 42

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

type fakeResolver struct {
	mu     sync.Mutex
	result domain.SearchResult
	err    error
	panics bool
	calls  []string
}

func (r *fakeResolver) Resolve(_ context.Context, query string) (domain.SearchResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, query)
	r.mu.Unlock()
	if r.panics {
		panic("resolver exploded")
	}
	return r.result, r.err
}

type fetchCall struct {
	URL  string
	Kind domain.MediaKind
}

type fakeFetcher struct {
	mu    sync.Mutex
	fetch func(url string, kind domain.MediaKind) (domain.DownloadedFile, error)
	calls []fetchCall
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, kind domain.MediaKind) (domain.DownloadedFile, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{URL: url, Kind: kind})
	f.mu.Unlock()
	return f.fetch(url, kind)
}

type fakeTitles struct {
	title string
	err   error
}

func (f fakeTitles) Title(context.Context, string) (string, error) {
	return f.title, f.err
}

// fileFetcher writes name into dir and reports it as the download.
func fileFetcher(t *testing.T, dir, name string) *fakeFetcher {
	return &fakeFetcher{fetch: func(_ string, kind domain.MediaKind) (domain.DownloadedFile, error) {
		return domain.DownloadedFile{Path: testutils.CreateTestFile(t, dir, name), Kind: kind}, nil
	}}
}

type testEnv struct {
	bot      *testutils.MockBot
	resolver *fakeResolver
	fetcher  *fakeFetcher
	handler  *Handler
	removed  map[string]int
}

func newTestEnv(resolver domain.Resolver, fetcher *fakeFetcher, titles domain.TitleLookup) *testEnv {
	env := &testEnv{
		bot:     &testutils.MockBot{},
		fetcher: fetcher,
		removed: map[string]int{},
	}
	if r, ok := resolver.(*fakeResolver); ok {
		env.resolver = r
	}
	env.handler = New(Deps{
		Bot:      env.bot,
		Resolver: resolver,
		Fetcher:  fetcher,
		Titles:   titles,
	})
	remove := env.handler.removeFile
	env.handler.removeFile = func(tmp *filemanager.TempFile) error {
		env.removed[tmp.Path()]++
		return remove(tmp)
	}
	return env
}

func (e *testEnv) route(update *tgbotapi.Update) {
	e.handler.Router(context.Background(), update)
}

func TestMediaHandler_EmptyArgumentsReplyUsage(t *testing.T) {
	tests := []struct {
		command string
		usage   lang.MessageID
	}{
		{"/video", lang.VideoUsageMsgID},
		{"/audio", lang.AudioUsageMsgID},
		{"/video   ", lang.VideoUsageMsgID},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			resolver := &fakeResolver{}
			fetcher := &fakeFetcher{}
			env := newTestEnv(resolver, fetcher, nil)

			env.route(testutils.CommandUpdate(testChatID, 1, tt.command))

			assert.Equal(t, []string{lang.GetMessage(tt.usage)}, env.bot.Texts())
			assert.Empty(t, resolver.calls)
			assert.Empty(t, fetcher.calls)
			assert.Empty(t, env.bot.Deletions)
		})
	}
}

func TestMediaHandler_NoResults(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"empty result", domainerrors.ErrNoResults},
		{"provider error", domainerrors.Wrap(errors.New("quota exceeded"), domainerrors.KindNotFound, "provider_failed", "search failed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{err: tt.err}
			fetcher := &fakeFetcher{}
			env := newTestEnv(resolver, fetcher, nil)

			env.route(testutils.CommandUpdate(testChatID, 7, "/video nothing at all"))

			assert.Equal(t, []string{"nothing at all"}, resolver.calls)
			assert.Empty(t, fetcher.calls)
			assert.Equal(t, []string{
				lang.GetMessage(lang.LoadingMsgID),
				lang.GetMessage(lang.NoResultsMsgID),
			}, env.bot.Texts())

			ids := env.bot.MessageIDs()
			assert.ElementsMatch(t, []int{ids[0], 7, ids[1]}, env.bot.DeletedIDs())
		})
	}
}

func TestMediaHandler_AudioEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "lofi beats" {
			http.Error(w, "unexpected query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":{"kind":"youtube#video","videoId":"abc123"}}]}`))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "downloads")
	fetcher := fileFetcher(t, dir, "lofi beats.mp3")
	env := newTestEnv(search.NewYouTube(server.URL, "key", 5*time.Second), fetcher, nil)

	env.route(testutils.CommandUpdate(testChatID, 3, "/audio lofi beats"))

	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, fetchCall{URL: "https://www.youtube.com/watch?v=abc123", Kind: domain.MediaAudio}, fetcher.calls[0])

	expected := filepath.Join(dir, "lofi beats.mp3")
	require.Len(t, env.bot.Uploads, 1)
	assert.Equal(t, testutils.MockUpload{ChatID: testChatID, Path: expected, Kind: domain.MediaAudio}, env.bot.Uploads[0])

	assert.False(t, testutils.FileExists(expected))
	assert.Equal(t, 1, env.removed[expected])

	loadingID := env.bot.MessageIDs()[0]
	assert.ElementsMatch(t, []int{loadingID, 3}, env.bot.DeletedIDs())
}

func TestMediaHandler_VideoUpload(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{result: domain.SearchResult{VideoID: "v1", URL: "https://www.youtube.com/watch?v=v1"}}
	env := newTestEnv(resolver, fileFetcher(t, dir, "clip.mp4"), nil)

	env.route(testutils.CommandUpdate(testChatID, 5, "/video some clip"))

	require.Len(t, env.bot.Uploads, 1)
	assert.Equal(t, domain.MediaVideo, env.bot.Uploads[0].Kind)
	assert.False(t, testutils.FileExists(filepath.Join(dir, "clip.mp4")))
}

func TestMediaHandler_UploadErrorStillRemovesFileOnce(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{result: domain.SearchResult{VideoID: "v1", URL: "https://www.youtube.com/watch?v=v1"}}
	env := newTestEnv(resolver, fileFetcher(t, dir, "song.mp3"), nil)
	env.bot.UploadError = errors.New("request entity too large")

	path := filepath.Join(dir, "song.mp3")
	var existedDuringUpload bool
	env.bot.OnUpload = func(p string) { existedDuringUpload = testutils.FileExists(p) }

	env.route(testutils.CommandUpdate(testChatID, 9, "/audio song"))

	assert.True(t, existedDuringUpload)
	assert.Equal(t, []string{
		lang.GetMessage(lang.LoadingMsgID),
		lang.GetMessage(lang.RequestErrorMsgID),
	}, env.bot.Texts())
	assert.Equal(t, 1, env.removed[path])
	assert.False(t, testutils.FileExists(path))

	ids := env.bot.MessageIDs()
	assert.ElementsMatch(t, []int{ids[0], 9, ids[1]}, env.bot.DeletedIDs())
}

// titleRunner behaves like yt-dlp for a fixed title: it fills in the -o template,
// writes the file and prints its path.
type titleRunner struct {
	title string
}

func (r titleRunner) Run(_ context.Context, _ string, args ...string) (stdout, stderr []byte, err error) {
	var template string
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-o" {
			template = args[i+1]
		}
	}
	path := strings.NewReplacer("%(title)s", r.title, "%(ext)s", "mp3").Replace(template)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(path, []byte(r.title), 0o600); err != nil {
		return nil, nil, err
	}
	return []byte(path + "\n"), nil, nil
}

func TestMediaHandler_SameTitleRequestsDoNotShareFiles(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{result: domain.SearchResult{VideoID: "v1", URL: "https://www.youtube.com/watch?v=v1"}}
	fetcher := ytdlp.NewFetcher(ytdlp.Options{DownloadDir: dir}, titleRunner{title: "lofi beats"})

	bot := &testutils.MockBot{}
	handler := New(Deps{Bot: bot, Resolver: resolver, Fetcher: fetcher})

	const otherChat int64 = 77
	var firstPath string
	var firstSurvived bool
	bot.OnUpload = func(path string) {
		if firstPath != "" {
			return
		}
		firstPath = path
		// the second request runs to completion while the first is still uploading
		handler.Router(context.Background(), testutils.CommandUpdate(otherChat, 2, "/audio lofi beats"))
		firstSurvived = testutils.FileExists(path)
	}

	handler.Router(context.Background(), testutils.CommandUpdate(testChatID, 1, "/audio lofi beats"))

	require.Len(t, bot.Uploads, 2)
	assert.True(t, firstSurvived, "first download was removed by the second request")
	assert.NotEqual(t, bot.Uploads[0].Path, bot.Uploads[1].Path)
	assert.Equal(t, "lofi beats.mp3", filepath.Base(bot.Uploads[0].Path))
	assert.Equal(t, "lofi beats.mp3", filepath.Base(bot.Uploads[1].Path))
	for _, upload := range bot.Uploads {
		assert.False(t, testutils.FileExists(upload.Path))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMediaHandler_FetchFailure(t *testing.T) {
	tests := []struct {
		command string
		notice  lang.MessageID
	}{
		{"/video broken", lang.VideoDownloadFailedMsgID},
		{"/audio broken", lang.AudioDownloadFailedMsgID},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			resolver := &fakeResolver{result: domain.SearchResult{VideoID: "b", URL: "https://www.youtube.com/watch?v=b"}}
			fetcher := &fakeFetcher{fetch: func(string, domain.MediaKind) (domain.DownloadedFile, error) {
				return domain.DownloadedFile{}, domainerrors.Wrap(errors.New("exit 1"), domainerrors.KindFetchFailed, "extract_failed", "yt-dlp failed")
			}}
			env := newTestEnv(resolver, fetcher, nil)

			env.route(testutils.CommandUpdate(testChatID, 11, tt.command))

			assert.Equal(t, []string{
				lang.GetMessage(lang.LoadingMsgID),
				lang.GetMessage(tt.notice),
			}, env.bot.Texts())
			assert.Empty(t, env.bot.Uploads)
			assert.Empty(t, env.removed)

			ids := env.bot.MessageIDs()
			assert.ElementsMatch(t, []int{ids[0], 11, ids[1]}, env.bot.DeletedIDs())
		})
	}
}

func TestCleanup_DeletionFailureDoesNotStopOthers(t *testing.T) {
	resolver := &fakeResolver{err: domainerrors.ErrNoResults}
	env := newTestEnv(resolver, &fakeFetcher{}, nil)
	env.bot.DeleteErrors = map[int]error{1001: errors.New("message can't be deleted")}

	env.route(testutils.CommandUpdate(testChatID, 13, "/video anything"))

	ids := env.bot.MessageIDs()
	require.Len(t, ids, 2)
	assert.Equal(t, 1001, ids[0])
	assert.Equal(t, []int{1001, 13, ids[1]}, env.bot.DeletedIDs())
}

func TestLinkHandler(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		titles   domain.TitleLookup
		wantText string
		buttons  bool
	}{
		{"missing url", "/link", nil, lang.GetMessage(lang.LinkUsageMsgID), false},
		{"not a url", "/link lofi beats", nil, lang.GetMessage(lang.LinkUsageMsgID), false},
		{"no title lookup", "/link https://youtu.be/abc123", nil, lang.GetMessage(lang.LinkPromptMsgID), true},
		{"title lookup fails", "/link https://youtu.be/abc123", fakeTitles{err: errors.New("unavailable")}, lang.GetMessage(lang.LinkPromptMsgID), true},
		{"with title", "/link https://youtu.be/abc123", fakeTitles{title: "Lofi Beats"}, lang.GetMessage(lang.LinkPromptTitleMsgID, "Lofi Beats"), true},
		{"long title", "/link https://youtu.be/abc123", fakeTitles{title: strings.Repeat("a", 150)}, lang.GetMessage(lang.LinkPromptTitleMsgID, strings.Repeat("a", 97)+"..."), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{}
			env := newTestEnv(&fakeResolver{}, fetcher, tt.titles)

			env.route(testutils.CommandUpdate(testChatID, 1, tt.text))

			last := env.bot.GetLastMessage()
			require.NotNil(t, last)
			assert.Equal(t, tt.wantText, last.Text)
			assert.Equal(t, tt.buttons, last.Keyboard != nil)
			assert.Empty(t, fetcher.calls)
			assert.Empty(t, env.bot.Deletions)
		})
	}
}

func TestLinkThenVideoButtonEndToEnd(t *testing.T) {
	dir := t.TempDir()
	fetcher := fileFetcher(t, dir, "abc123.mp4")
	env := newTestEnv(&fakeResolver{}, fetcher, nil)

	env.route(testutils.CommandUpdate(testChatID, 20, "/link https://youtu.be/abc123"))

	prompt := env.bot.GetLastMessage()
	require.NotNil(t, prompt)
	require.NotNil(t, prompt.Keyboard)
	videoButton := prompt.Keyboard.InlineKeyboard[0][1]
	require.Equal(t, lang.GetMessage(lang.DownloadVideoButtonMsgID), videoButton.Text)

	env.route(testutils.CallbackUpdate(testChatID, prompt.ID, *videoButton.CallbackData))

	require.Len(t, env.bot.Answers, 1)
	assert.Empty(t, env.bot.Answers[0].Text)
	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, fetchCall{URL: "https://youtu.be/abc123", Kind: domain.MediaVideo}, fetcher.calls[0])
	require.Len(t, env.bot.Uploads, 1)
	assert.Equal(t, domain.MediaVideo, env.bot.Uploads[0].Kind)
	assert.False(t, testutils.FileExists(filepath.Join(dir, "abc123.mp4")))

	loadingID := env.bot.MessageIDs()[1]
	assert.ElementsMatch(t, []int{prompt.ID, loadingID}, env.bot.DeletedIDs())
}

func TestCallbackHandler_LongURLButton(t *testing.T) {
	dir := t.TempDir()
	fetcher := fileFetcher(t, dir, "long.mp3")
	env := newTestEnv(&fakeResolver{}, fetcher, nil)
	long := "https://www.youtube.com/watch?v=abc123&list=" + strings.Repeat("L", 60)

	env.route(testutils.CommandUpdate(testChatID, 1, "/link "+long))
	prompt := env.bot.GetLastMessage()
	require.NotNil(t, prompt)
	data := *prompt.Keyboard.InlineKeyboard[0][0].CallbackData

	env.route(testutils.CallbackUpdate(testChatID, prompt.ID, data))
	env.route(testutils.CallbackUpdate(testChatID, prompt.ID, data))

	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, fetchCall{URL: long, Kind: domain.MediaAudio}, fetcher.calls[0])
	require.Len(t, env.bot.Answers, 2)
	assert.Equal(t, lang.GetMessage(lang.ButtonExpiredMsgID), env.bot.Answers[1].Text)
}

func TestCallbackHandler_MalformedData(t *testing.T) {
	fetcher := &fakeFetcher{}
	env := newTestEnv(&fakeResolver{}, fetcher, nil)

	env.route(testutils.CallbackUpdate(testChatID, 5, "garbage"))

	require.Len(t, env.bot.Answers, 1)
	assert.Empty(t, fetcher.calls)
	assert.Empty(t, env.bot.SentMessages)
}

func TestRouter_StartAndUnknown(t *testing.T) {
	env := newTestEnv(&fakeResolver{}, &fakeFetcher{}, nil)

	env.route(testutils.CommandUpdate(testChatID, 1, "/start"))
	env.route(testutils.CommandUpdate(testChatID, 2, "/help"))
	env.route(&tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: testChatID}, Text: "hello"}})

	assert.Equal(t, []string{lang.GetMessage(lang.StartCommandMsgID)}, env.bot.Texts())
}

func TestServe_RecoversFromPanicAndKeepsGoing(t *testing.T) {
	resolver := &fakeResolver{panics: true}
	env := newTestEnv(resolver, &fakeFetcher{}, nil)

	updates := make(chan tgbotapi.Update, 2)
	updates <- *testutils.CommandUpdate(testChatID, 1, "/video boom")
	updates <- *testutils.CommandUpdate(testChatID, 2, "/start")
	close(updates)

	done := make(chan error, 1)
	go func() {
		done <- env.handler.Serve(context.Background(), updates)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrUpdatesClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the channel was closed")
	}

	assert.Contains(t, env.bot.Texts(), lang.GetMessage(lang.StartCommandMsgID))
	// the panicking request still deleted its loading and command messages
	assert.Contains(t, env.bot.DeletedIDs(), 1)
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	env := newTestEnv(&fakeResolver{}, &fakeFetcher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- env.handler.Serve(ctx, make(chan tgbotapi.Update))
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancellation")
	}
}

func TestParseLinkArgument(t *testing.T) {
	url, err := parseLinkArgument("  https://youtu.be/abc123 extra")
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/abc123", url)

	for _, args := range []string{"", "   ", "ftp://example.com/file", "not a link"} {
		_, err := parseLinkArgument(args)
		assert.ErrorIs(t, err, utils.ErrInvalidURL, "args %q", args)
	}
}
