package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/heimdex/clipdiary/internal/crop"
	"github.com/heimdex/clipdiary/internal/diary"
)

// maxBodyBytes bounds JSON request bodies. Video bytes never pass through
// the API; imports reference files already on disk.
const maxBodyBytes = 1 << 20

// VideoService is the diary state layer. *diary.Service implements it.
type VideoService interface {
	ImportVideo(ctx context.Context, asset diary.PickedAsset, meta diary.Metadata) (*diary.Video, error)
	ListVideos(ctx context.Context) ([]*diary.Video, error)
	ListCropped(ctx context.Context) ([]*diary.Video, error)
	GetVideo(ctx context.Context, id string) (*diary.Video, error)
	UpdateVideo(ctx context.Context, id string, u diary.VideoUpdate) (*diary.Video, error)
	DeleteVideo(ctx context.Context, id string) error
	DeleteAllVideos(ctx context.Context) error
	Counts(ctx context.Context) (total, cropped int, err error)
}

// CropJobs is the asynchronous crop façade. *crop.Jobs implements it.
type CropJobs interface {
	Submit(ctx context.Context, sourceID string, start, end float64) (*crop.Job, error)
	Get(ctx context.Context, id string) (*crop.Job, error)
	List(ctx context.Context, limit int) ([]*crop.Job, error)
	IsPending(sourceID string) bool
	InFlight() int
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.RequestSize(maxBodyBytes))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Range", "X-Request-ID"},
			ExposedHeaders: []string{"Content-Range", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Settings, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", listVideosHandler(cfg))
			r.Post("/", importVideoHandler(cfg))
			r.Delete("/", deleteAllVideosHandler(cfg))
			r.Get("/cropped", listCroppedHandler(cfg))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getVideoHandler(cfg))
				r.Patch("/", updateVideoHandler(cfg))
				r.Delete("/", deleteVideoHandler(cfg))
				r.Get("/stream", streamHandler(cfg))
				r.Get("/window", windowHandler(cfg))
				r.Post("/crops", createCropHandler(cfg))
			})
		})

		r.Get("/crops", listCropsHandler(cfg))
		r.Get("/crops/{id}", getCropHandler(cfg))

		r.Post("/timeline/drag", timelineDragHandler(cfg))
		r.Post("/export/reel", exportReelHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:        "ok",
			Version:       cfg.Version,
			UptimeS:       int64(time.Since(cfg.StartTime).Seconds()),
			DeviceID:      cfg.DeviceID,
			RenderBackend: cfg.RenderBackend,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		total, cropped, err := cfg.Videos.Counts(ctx)
		if err != nil {
			cfg.Logger.Error("failed to count videos", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read status", "INTERNAL_ERROR")
			return
		}

		resp := StatusResponse{
			State:        "idle",
			VideosCount:  total,
			CroppedCount: cropped,
			CropsRunning: cfg.Crops.InFlight(),
		}
		if resp.CropsRunning > 0 {
			resp.State = "cropping"
		}

		jobs, _ := cfg.Crops.List(ctx, 1)
		if len(jobs) == 1 && jobs[0].Status == crop.JobStatusFailed {
			resp.LastError = string(jobs[0].ErrorKind)
			if resp.State == "idle" {
				resp.State = "error"
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

// writeServiceError maps domain errors to responses. Anything unexpected
// is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var pe *diary.PersistenceError
	switch {
	case errors.Is(err, diary.ErrNotFound):
		WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
	case errors.Is(err, crop.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, "crop job not found", "NOT_FOUND")
	case errors.Is(err, crop.ErrCropInFlight):
		WriteError(w, http.StatusConflict, err.Error(), "CROP_IN_FLIGHT")
	case errors.Is(err, diary.ErrDuplicateID):
		WriteError(w, http.StatusConflict, "video already exists", "CONFLICT")
	case crop.KindOf(err) == crop.KindPermissionDenied:
		WriteErrorKind(w, http.StatusForbidden, "permission to read the video was denied", "PERMISSION_DENIED", crop.KindPermissionDenied)
	case errors.Is(err, diary.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case crop.KindOf(err) != "":
		logger.Error("crop failed", "kind", crop.KindOf(err), "error", err)
		WriteErrorKind(w, http.StatusInternalServerError, CropFailedMessage, "CROP_FAILED", crop.KindOf(err))
	case errors.As(err, &pe):
		logger.Error("persistence failure", "op", pe.Op, "error", pe.Err)
		WriteError(w, http.StatusInternalServerError, "storage error", "INTERNAL_ERROR")
	default:
		logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func WriteErrorKind(w http.ResponseWriter, status int, message, code string, kind crop.Kind) {
	WriteJSON(w, status, ErrorResponse{Error: message, Code: code, Kind: string(kind)})
}
