package diary

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// CropSegmentSeconds is the fixed clip length produced by the standard crop flow.
const CropSegmentSeconds = 5

const (
	TitleMaxLen       = 50
	DescriptionMaxLen = 500

	// MaxImportBytes bounds the size of a picked source file.
	MaxImportBytes = 100 * 1024 * 1024

	CroppedTitleSuffix = " (Cropped)"
)

// Video is a single diary entry. A video with CropConfig set is the output
// of a crop; its source stays a separate record.
type Video struct {
	ID          string      `json:"id"`
	URI         string      `json:"uri"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	CreatedAt   int64       `json:"createdAt"`
	Duration    int         `json:"duration"`
	Thumbnail   string      `json:"thumbnail"`
	CropConfig  *CropConfig `json:"cropConfig,omitempty"`
}

// IsCropped reports whether v belongs to the cropped collection.
func (v *Video) IsCropped() bool {
	return v.CropConfig != nil
}

// Created returns CreatedAt as a time.
func (v *Video) Created() time.Time {
	return time.UnixMilli(v.CreatedAt)
}

// CropConfig is stored as JSON in the videos.cropConfig column. Times are
// seconds relative to the source media.
type CropConfig struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Duration  float64 `json:"duration"`
	OutputURI string  `json:"outputUri,omitempty"`
}

// VideoMetadata is the sidecar written next to a crop artifact.
type VideoMetadata struct {
	OriginalURI string  `json:"originalUri"`
	StartTime   float64 `json:"startTime"`
	EndTime     float64 `json:"endTime"`
	Duration    float64 `json:"duration"`
	CreatedAt   int64   `json:"createdAt"`
}

// Metadata is the user supplied title and description.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate enforces the 1..50 and 1..500 character bounds. Surrounding
// whitespace does not count.
func (m Metadata) Validate() error {
	if err := checkLength("title", m.Title, TitleMaxLen); err != nil {
		return err
	}
	return checkLength("description", m.Description, DescriptionMaxLen)
}

func checkLength(field, value string, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < 1 {
		return invalidf("%s is required", field)
	}
	if n > max {
		return invalidf("%s must be at most %d characters", field, max)
	}
	return nil
}

// PickedAsset is one entry returned by the device media picker.
type PickedAsset struct {
	URI      string  `json:"uri"`
	Duration float64 `json:"duration"`
	Type     string  `json:"type"`
}

// PickerResult is the raw media picker response.
type PickerResult struct {
	Canceled bool          `json:"canceled"`
	Assets   []PickedAsset `json:"assets"`
}

var videoMIMETypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
}

// IsVideoFile reports whether name has a supported video extension.
func IsVideoFile(name string) bool {
	_, ok := videoMIMETypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// MIMEType returns the content type for a supported video file, or
// application/octet-stream.
func MIMEType(name string) string {
	if t, ok := videoMIMETypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}

// NewID returns a time-ordered unique id.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IsRemote reports whether uri points at an http(s) location rather than a
// local file.
func IsRemote(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// LocalPath strips a file:// scheme if present.
func LocalPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// Validate checks the window is non-degenerate. Duration is not pinned to
// CropSegmentSeconds so variable length crops stay representable.
func (c *CropConfig) Validate() error {
	if c.StartTime < 0 {
		return invalidf("startTime must not be negative")
	}
	if c.EndTime <= c.StartTime {
		return invalidf("endTime must be after startTime")
	}
	return nil
}
