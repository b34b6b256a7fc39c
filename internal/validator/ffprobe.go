package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const defaultFfprobeBinary = "ffprobe"

// VideoInfo holds the first video stream properties the validator needs.
type VideoInfo struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int64
}

// Prober reads video stream properties from a file.
type Prober interface {
	Probe(ctx context.Context, path string) (VideoInfo, error)
}

// FFProbe runs the ffprobe executable.
type FFProbe struct {
	BinaryPath string
}

type ffprobeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

func (p FFProbe) Probe(ctx context.Context, path string) (VideoInfo, error) {
	binary := p.BinaryPath
	if binary == "" {
		binary = defaultFfprobeBinary
	}

	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames,duration",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (VideoInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe json: %w", err)
	}
	if len(out.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("no video stream found")
	}

	stream := out.Streams[0]
	info := VideoInfo{
		Width:  stream.Width,
		Height: stream.Height,
		FPS:    parseFrameRate(stream.RFrameRate),
	}
	if info.FPS == 0 {
		info.FPS = parseFrameRate(stream.AvgFrameRate)
	}

	if frames, err := strconv.ParseInt(stream.NbFrames, 10, 64); err == nil {
		info.FrameCount = frames
	} else if seconds, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
		// Containers like webm omit nb_frames.
		info.FrameCount = int64(seconds * info.FPS)
	}

	return info, nil
}

// parseFrameRate parses ffprobe rationals such as "30000/1001". Invalid or 0/0 yields 0.
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Duration returns floor(frames / fps) in seconds, or 0 when fps is 0.
func (v VideoInfo) Duration() int {
	if v.FPS <= 0 {
		return 0
	}
	return int(float64(v.FrameCount) / v.FPS)
}
