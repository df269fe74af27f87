package crop

import (
	"errors"
	"fmt"
)

// Kind classifies a crop failure. Users see one generic message for all of
// them; the kind is kept for logs, events and the job record.
type Kind string

const (
	KindInvalidInput               Kind = "invalid_input"
	KindPermissionDenied           Kind = "permission_denied"
	KindUploadFailed               Kind = "upload_failed"
	KindRenderFailed               Kind = "render_failed"
	KindRenderTimeout              Kind = "render_timeout"
	KindDownloadVerificationFailed Kind = "download_verification_failed"
	KindPersistenceFailed          Kind = "persistence_failed"
)

// Stage is a step of the crop state machine.
type Stage string

const (
	StageValidating    Stage = "validating"
	StageUploading     Stage = "uploading"
	StageRendering     Stage = "rendering"
	StagePolling       Stage = "polling"
	StageDownloading   Stage = "downloading"
	StageVerifying     Stage = "verifying"
	StageTrimming      Stage = "trimming"
	StageMetadata      Stage = "metadata"
	StageMaterializing Stage = "materializing"
)

var (
	// ErrCropInFlight is returned when the source already has a running crop.
	ErrCropInFlight = errors.New("a crop is already in progress for this video")
	// ErrTimeout is wrapped by render_timeout failures.
	ErrTimeout = errors.New("render did not finish within the polling window")
	// ErrTooSmall is wrapped when the downloaded output is below the size floor.
	ErrTooSmall = errors.New("downloaded video file is invalid or incomplete")
	// ErrUnplayable is wrapped when no frame can be extracted from the output.
	ErrUnplayable = errors.New("downloaded video file is corrupt or unreadable")
)

// Error is a failed crop with the stage it failed in.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("crop %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(kind Kind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the failure kind of err, or "" if err is not a crop error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
