// Package export writes the cropped collection as an edit decision list so
// the clips can be assembled into one highlight reel in an editor.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/heimdex/clipdiary/internal/diary"
)

const (
	DefaultFrameRate = 30.0
	DefaultTitle     = "Highlight Reel"
	maxNameLen       = 64
)

// ErrEmptyReel is returned when there are no cropped clips to export.
var ErrEmptyReel = errors.New("no cropped videos to export")

// ReelRequest is the body of an export call.
type ReelRequest struct {
	Title     string  `json:"title"`
	FrameRate float64 `json:"frame_rate"`
	OutputDir string  `json:"output_dir"`
}

// Clip is one event of the reel. Source in and out are offsets into the
// clip's own file.
type Clip struct {
	Name      string
	MediaPath string
	Duration  float64
}

// ReelResult describes a written reel.
type ReelResult struct {
	OutputPath   string   `json:"output_path"`
	ClipCount    int      `json:"clip_count"`
	TotalSeconds float64  `json:"total_seconds"`
	Skipped      []string `json:"skipped"`
}

// Clips picks the cropped videos, oldest first. Videos with no usable
// length are returned by id in skipped.
func Clips(videos []*diary.Video) (clips []Clip, skipped []string) {
	cropped := make([]*diary.Video, 0, len(videos))
	for _, v := range videos {
		if v.IsCropped() {
			cropped = append(cropped, v)
		}
	}
	sort.SliceStable(cropped, func(i, j int) bool {
		return cropped[i].CreatedAt < cropped[j].CreatedAt
	})

	skipped = []string{}
	for _, v := range cropped {
		d := v.CropConfig.Duration
		if d <= 0 {
			d = float64(v.Duration)
		}
		if d <= 0 {
			skipped = append(skipped, v.ID)
			continue
		}
		clips = append(clips, Clip{
			Name:      SanitizeName(v.Title, maxNameLen),
			MediaPath: diary.LocalPath(v.URI),
			Duration:  d,
		})
	}
	return clips, skipped
}

// WriteReel renders the cropped videos as <output_dir>/<title>.edl.
func WriteReel(req ReelRequest, videos []*diary.Video) (*ReelResult, error) {
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return nil, err
	}
	title := SanitizeName(req.Title, maxNameLen)
	if title == "" {
		title = DefaultTitle
	}
	fps := req.FrameRate
	if fps <= 0 {
		fps = DefaultFrameRate
	}

	clips, skipped := Clips(videos)
	if len(clips) == 0 {
		return nil, ErrEmptyReel
	}

	out := filepath.Join(req.OutputDir, title+".edl")
	if err := os.WriteFile(out, []byte(GenerateEDL(clips, title, fps)), 0644); err != nil {
		return nil, fmt.Errorf("write edl: %w", err)
	}

	var total float64
	for _, c := range clips {
		total += c.Duration
	}
	return &ReelResult{
		OutputPath:   out,
		ClipCount:    len(clips),
		TotalSeconds: total,
		Skipped:      skipped,
	}, nil
}
