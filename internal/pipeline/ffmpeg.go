// Package pipeline wraps the ffmpeg and ffprobe binaries used to probe crop
// artifacts, extract thumbnails and trim clips to their exact length.
package pipeline

import (
	"context"
	"log/slog"
	"os"
)

type FFmpeg interface {
	Probe(ctx context.Context, filePath string) (*ProbeResult, error)
	GenerateThumbnail(ctx context.Context, filePath, outputPath string, timeOffset float64) error
	Trim(ctx context.Context, inputPath, outputPath string, duration float64) error
}

type ProbeResult struct {
	Duration   float64
	Width      int
	Height     int
	Codec      string
	Bitrate    int64
	FrameRate  float64
	AudioCodec string
}

// StubFFmpeg stands in when no ffmpeg binary is available. Thumbnails are
// written as placeholder files so callers can still cache them, trims copy
// the input, and probes report no duration.
type StubFFmpeg struct {
	logger *slog.Logger
}

func NewStubFFmpeg(logger *slog.Logger) *StubFFmpeg {
	return &StubFFmpeg{logger: logger}
}

// IsStub reports whether f is the placeholder used when ffmpeg is missing.
// Its probes always pass and report no duration.
func IsStub(f FFmpeg) bool {
	_, ok := f.(*StubFFmpeg)
	return ok
}

func (f *StubFFmpeg) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, err
	}
	f.logger.Debug("ffmpeg stub: probe requested", "path", filePath)
	return &ProbeResult{}, nil
}

func (f *StubFFmpeg) GenerateThumbnail(ctx context.Context, filePath, outputPath string, timeOffset float64) error {
	f.logger.Debug("ffmpeg stub: thumbnail requested",
		"input", filePath, "output", outputPath, "offset", timeOffset)
	return os.WriteFile(outputPath, placeholderJPEG, 0644)
}

func (f *StubFFmpeg) Trim(ctx context.Context, inputPath, outputPath string, duration float64) error {
	f.logger.Debug("ffmpeg stub: trim requested",
		"input", inputPath, "output", outputPath, "duration", duration)
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}

// placeholderJPEG is a minimal SOI/EOI marker pair.
var placeholderJPEG = []byte{0xFF, 0xD8, 0xFF, 0xD9}
