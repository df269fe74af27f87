// Package playback serves diary videos to the player.
package playback

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/heimdex/clipdiary/internal/diary"
	"github.com/heimdex/clipdiary/internal/logging"
)

// Window is the span of the source a video covers. Without a sidecar it is
// the whole file.
type Window struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Duration    float64 `json:"duration"`
	OriginalURI string  `json:"original_uri,omitempty"`
	FromSidecar bool    `json:"from_sidecar"`
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{logger: logging.WithComponent(logger, "playback")}
}

// Stream writes the video file with range support. Remote videos are
// redirected to their URL.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request, v *diary.Video) error {
	if diary.IsRemote(v.URI) {
		http.Redirect(w, r, v.URI, http.StatusFound)
		return nil
	}

	path := diary.LocalPath(v.URI)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	w.Header().Set("Content-Type", diary.MIMEType(path))
	s.logger.Debug("streaming video", "video_id", v.ID, "range", r.Header.Get("Range"))
	http.ServeContent(w, r, filepath.Base(path), stat.ModTime(), file)
	return nil
}

// WindowFor reads the sidecar next to a local video.
func WindowFor(v *diary.Video) (Window, error) {
	full := Window{Start: 0, End: float64(v.Duration), Duration: float64(v.Duration)}
	if diary.IsRemote(v.URI) {
		return full, nil
	}
	meta, err := diary.ReadSidecar(v.URI)
	if err != nil {
		return Window{}, err
	}
	if meta == nil {
		return full, nil
	}
	return Window{
		Start:       meta.StartTime,
		End:         meta.EndTime,
		Duration:    meta.Duration,
		OriginalURI: meta.OriginalURI,
		FromSidecar: true,
	}, nil
}
