package api

import (
	"encoding/json"
	"time"

	"github.com/heimdex/clipdiary/internal/crop"
	"github.com/heimdex/clipdiary/internal/diary"
	"github.com/heimdex/clipdiary/internal/timeline"
)

// CropFailedMessage is the only text a user sees for a failed crop.
const CropFailedMessage = "failed to process video, try again"

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Kind  string `json:"kind,omitempty"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeS       int64  `json:"uptime_s"`
	DeviceID      string `json:"device_id"`
	RenderBackend string `json:"render_backend"`
}

type StatusResponse struct {
	State        string `json:"state"`
	VideosCount  int    `json:"videos_count"`
	CroppedCount int    `json:"cropped_count"`
	CropsRunning int    `json:"crops_running"`
	LastError    string `json:"last_error,omitempty"`
}

type CropConfigResponse struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	OutputURI string  `json:"output_uri,omitempty"`
}

type VideoResponse struct {
	ID          string              `json:"id"`
	URI         string              `json:"uri"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	CreatedAt   string              `json:"created_at"`
	CreatedAtMs int64               `json:"created_at_ms"`
	Duration    int                 `json:"duration"`
	Thumbnail   string              `json:"thumbnail"`
	CropConfig  *CropConfigResponse `json:"crop_config,omitempty"`
	CropPending bool                `json:"crop_pending"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type PickedAssetRequest struct {
	URI      string  `json:"uri"`
	Duration float64 `json:"duration"`
	Type     string  `json:"type"`
}

type PickerRequest struct {
	Canceled bool                 `json:"canceled"`
	Assets   []PickedAssetRequest `json:"assets"`
}

type ImportVideoRequest struct {
	Picker      PickerRequest `json:"picker"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
}

type CropConfigRequest struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	OutputURI string  `json:"output_uri,omitempty"`
}

// UpdateVideoRequest is a partial edit. crop_config set to null clears the
// crop; leaving it out leaves it alone.
type UpdateVideoRequest struct {
	URI         *string         `json:"uri"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Thumbnail   *string         `json:"thumbnail"`
	Duration    *int            `json:"duration"`
	CreatedAt   *int64          `json:"created_at"`
	CropConfig  json.RawMessage `json:"crop_config"`
}

type CreateCropRequest struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type CreateCropResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type CropJobResponse struct {
	ID        string         `json:"id"`
	SourceID  string         `json:"source_id"`
	StartTime float64        `json:"start_time"`
	EndTime   float64        `json:"end_time"`
	Status    string         `json:"status"`
	Stage     string         `json:"stage,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
	VideoID   string         `json:"video_id,omitempty"`
	Video     *VideoResponse `json:"video,omitempty"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type CropJobsResponse struct {
	Jobs []CropJobResponse `json:"jobs"`
}

type TimelineDragRequest struct {
	Duration      float64   `json:"duration"`
	Width         float64   `json:"width"`
	MaxDuration   float64   `json:"max_duration"`
	Snap          float64   `json:"snap"`
	StartPosition float64   `json:"start_position"`
	Deltas        []float64 `json:"deltas"`
	PlaybackTime  *float64  `json:"playback_time"`
}

type TimelineDragResponse struct {
	SegmentWidth float64           `json:"segment_width"`
	Windows      []timeline.Window `json:"windows"`
	Settle       timeline.Settle   `json:"settle"`
	Playhead     *float64          `json:"playhead,omitempty"`
}

func VideoToResponse(v *diary.Video) VideoResponse {
	resp := VideoResponse{
		ID:          v.ID,
		URI:         v.URI,
		Title:       v.Title,
		Description: v.Description,
		CreatedAt:   v.Created().UTC().Format(time.RFC3339),
		CreatedAtMs: v.CreatedAt,
		Duration:    v.Duration,
		Thumbnail:   v.Thumbnail,
	}
	if c := v.CropConfig; c != nil {
		resp.CropConfig = &CropConfigResponse{
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Duration:  c.Duration,
			OutputURI: c.OutputURI,
		}
	}
	return resp
}

func VideosToResponse(videos []*diary.Video, pending func(id string) bool) VideosResponse {
	resp := VideosResponse{Videos: make([]VideoResponse, len(videos))}
	for i, v := range videos {
		resp.Videos[i] = VideoToResponse(v)
		if pending != nil {
			resp.Videos[i].CropPending = pending(v.ID)
		}
	}
	return resp
}

// JobToResponse never exposes the raw failure; the kind is enough to
// diagnose and the message stays generic.
func JobToResponse(j *crop.Job) CropJobResponse {
	resp := CropJobResponse{
		ID:        j.ID,
		SourceID:  j.SourceID,
		StartTime: j.StartTime,
		EndTime:   j.EndTime,
		Status:    j.Status,
		Stage:     string(j.Stage),
		ErrorKind: string(j.ErrorKind),
		VideoID:   j.VideoID,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
	if j.Status == crop.JobStatusFailed {
		resp.Error = CropFailedMessage
	}
	return resp
}
