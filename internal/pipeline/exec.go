package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ExecFFmpeg shells out to ffmpeg and ffprobe.
type ExecFFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

func NewExecFFmpeg(ffmpegPath, ffprobePath string, logger *slog.Logger) *ExecFFmpeg {
	return &ExecFFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// Available reports whether both binaries resolve on PATH.
func (f *ExecFFmpeg) Available() bool {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(f.ffprobePath)
	return err == nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

func (f *ExecFFmpeg) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	out, err := f.run(ctx, f.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	if err != nil {
		return nil, err
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (*ProbeResult, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	res := &ProbeResult{}
	res.Duration, _ = strconv.ParseFloat(po.Format.Duration, 64)
	res.Bitrate, _ = strconv.ParseInt(po.Format.BitRate, 10, 64)
	for _, s := range po.Streams {
		switch s.CodecType {
		case "video":
			if res.Codec != "" {
				continue
			}
			res.Codec = s.CodecName
			res.Width = s.Width
			res.Height = s.Height
			res.FrameRate = parseRate(s.AvgFrameRate)
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
	}
	return res, nil
}

// parseRate turns ffprobe's "30000/1001" form into frames per second.
func parseRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		v, _ := strconv.ParseFloat(r, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func (f *ExecFFmpeg) GenerateThumbnail(ctx context.Context, filePath, outputPath string, timeOffset float64) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to ensure thumbnail output directory: %w", err)
	}
	_, err := f.run(ctx, f.ffmpegPath,
		"-ss", strconv.FormatFloat(timeOffset, 'f', 3, 64),
		"-i", filePath,
		"-frames:v", "1",
		"-q:v", "4",
		"-y",
		outputPath,
	)
	return err
}

// Trim stream-copies the first duration seconds of inputPath. A partial
// output is removed on failure.
func (f *ExecFFmpeg) Trim(ctx context.Context, inputPath, outputPath string, duration float64) error {
	_, err := f.run(ctx, f.ffmpegPath,
		"-ss", "0",
		"-i", inputPath,
		"-t", strconv.FormatFloat(duration, 'f', 3, 64),
		"-c", "copy",
		"-y",
		outputPath,
	)
	if err != nil {
		if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			f.logger.Warn("failed to remove incomplete trim output", "path", outputPath, "error", rmErr)
		}
		return err
	}
	return nil
}

func (f *ExecFFmpeg) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.logger.Debug("executing command", "bin", bin, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(bin), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
