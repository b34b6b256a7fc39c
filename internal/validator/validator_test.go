package validator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	domainerrors "github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	info VideoInfo
	err  error
}

func (p fakeProber) Probe(context.Context, string) (VideoInfo, error) {
	return p.info, p.err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeJPEG(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "temp_media.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	require.NoError(t, jpeg.Encode(f, img, nil))
	return path
}

func assertRemoved(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "expected %s to be removed", path)
}

func TestValidateVideo(t *testing.T) {
	tests := []struct {
		name         string
		info         VideoInfo
		probeErr     error
		wantOK       bool
		wantDuration int
	}{
		{
			name:         "valid video",
			info:         VideoInfo{Width: 1080, Height: 1920, FPS: 30, FrameCount: 455},
			wantOK:       true,
			wantDuration: 15,
		},
		{
			name:         "ntsc frame rate floors duration",
			info:         VideoInfo{Width: 720, Height: 1280, FPS: 30000.0 / 1001.0, FrameCount: 899},
			wantOK:       true,
			wantDuration: 29,
		},
		{
			name: "zero frame rate yields zero duration",
			info: VideoInfo{Width: 1080, Height: 1920, FPS: 0, FrameCount: 300},
		},
		{
			name: "zero width",
			info: VideoInfo{Width: 0, Height: 1920, FPS: 30, FrameCount: 300},
		},
		{
			name: "zero height",
			info: VideoInfo{Width: 1080, Height: 0, FPS: 30, FrameCount: 300},
		},
		{
			name: "shorter than one second",
			info: VideoInfo{Width: 1080, Height: 1920, FPS: 30, FrameCount: 10},
		},
		{
			name:     "probe fails",
			probeErr: errors.New("moov atom not found"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "temp_media.mp4", []byte("video"))
			v := New(fakeProber{info: tt.info, err: tt.probeErr}, time.Second)

			desc, err := v.Validate(context.Background(), domain.DownloadedFile{Path: path, Kind: domain.MediaVideo}, "reel caption")

			if !tt.wantOK {
				require.Error(t, err)
				assert.True(t, domainerrors.IsKind(err, domainerrors.KindValidationFailed))
				assertRemoved(t, path)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.MediaDescriptor{
				Path:     path,
				Kind:     domain.MediaVideo,
				Caption:  "reel caption",
				Duration: tt.wantDuration,
			}, desc)
			_, statErr := os.Stat(path)
			assert.NoError(t, statErr)
		})
	}
}

func TestValidateImage(t *testing.T) {
	t.Run("decodable square image", func(t *testing.T) {
		path := writeJPEG(t, 1080, 1080)

		desc, err := New(fakeProber{}, time.Second).
			Validate(context.Background(), domain.DownloadedFile{Path: path, Kind: domain.MediaImage}, "")

		require.NoError(t, err)
		assert.Equal(t, domain.MediaImage, desc.Kind)
		assert.Equal(t, "📸 Instagram Media", desc.Caption)
		assert.Zero(t, desc.Duration)
	})

	t.Run("png image keeps caption", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "temp_media.png")
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 3))))
		require.NoError(t, f.Close())

		desc, err := New(nil, 0).
			Validate(context.Background(), domain.DownloadedFile{Path: path, Kind: domain.MediaImage}, "sunset")

		require.NoError(t, err)
		assert.Equal(t, "sunset", desc.Caption)
	})

	t.Run("undecodable file is rejected and removed", func(t *testing.T) {
		path := writeFile(t, "temp_media.jpg", []byte("<html>login required</html>"))

		_, err := New(fakeProber{}, time.Second).
			Validate(context.Background(), domain.DownloadedFile{Path: path, Kind: domain.MediaImage}, "")

		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrInvalidMedia))
		assertRemoved(t, path)
	})

	t.Run("truncated jpeg is rejected", func(t *testing.T) {
		full := writeJPEG(t, 64, 64)
		data, err := os.ReadFile(full)
		require.NoError(t, err)
		path := writeFile(t, "truncated.jpg", data[:len(data)/2])

		_, err = New(fakeProber{}, time.Second).
			Validate(context.Background(), domain.DownloadedFile{Path: path, Kind: domain.MediaImage}, "")

		require.Error(t, err)
		assertRemoved(t, path)
	})
}

func TestValidateUnsupportedKind(t *testing.T) {
	path := writeFile(t, "song.mp3", []byte("audio"))

	_, err := New(fakeProber{}, time.Second).
		Validate(context.Background(), domain.DownloadedFile{Path: path, Kind: domain.MediaAudio}, "")

	require.Error(t, err)
	assertRemoved(t, path)
}

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    VideoInfo
		wantErr bool
	}{
		{
			name: "reel",
			json: `{"streams":[{"width":1080,"height":1920,"r_frame_rate":"30/1","avg_frame_rate":"30/1","nb_frames":"451"}]}`,
			want: VideoInfo{Width: 1080, Height: 1920, FPS: 30, FrameCount: 451},
		},
		{
			name: "falls back to avg_frame_rate",
			json: `{"streams":[{"width":640,"height":360,"r_frame_rate":"0/0","avg_frame_rate":"25/1","nb_frames":"250"}]}`,
			want: VideoInfo{Width: 640, Height: 360, FPS: 25, FrameCount: 250},
		},
		{
			name: "frames from duration when nb_frames is missing",
			json: `{"streams":[{"width":640,"height":360,"r_frame_rate":"25/1","duration":"4.000000"}]}`,
			want: VideoInfo{Width: 640, Height: 360, FPS: 25, FrameCount: 100},
		},
		{
			name:    "no streams",
			json:    `{"streams":[]}`,
			wantErr: true,
		},
		{
			name:    "garbage",
			json:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeOutput([]byte(tt.json))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"30/1", 30},
		{"60000/2000", 30},
		{"0/0", 0},
		{"25", 25},
		{"", 0},
		{"abc/1", 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, parseFrameRate(tt.input), 1e-9, tt.input)
	}
}

func TestVideoInfoDuration(t *testing.T) {
	assert.Equal(t, 0, VideoInfo{FPS: 0, FrameCount: 900}.Duration())
	assert.Equal(t, 30, VideoInfo{FPS: 30, FrameCount: 900}.Duration())
	assert.Equal(t, 30, VideoInfo{FPS: 30, FrameCount: 929}.Duration())
}
