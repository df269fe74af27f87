package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/clipdiary/internal/crop"
	"github.com/heimdex/clipdiary/internal/export"
	"github.com/heimdex/clipdiary/internal/timeline"
)

func createCropHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateCropRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		job, err := cfg.Crops.Submit(r.Context(), chi.URLParam(r, "id"), req.StartTime, req.EndTime)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, CreateCropResponse{JobID: job.ID, Status: job.Status})
	}
}

func listCropsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500", "BAD_REQUEST")
				return
			}
			limit = n
		}

		jobs, err := cfg.Crops.List(r.Context(), limit)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		resp := CropJobsResponse{Jobs: make([]CropJobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getCropHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Crops.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		resp := JobToResponse(job)
		if job.Status == crop.JobStatusCompleted && job.VideoID != "" {
			if video, err := cfg.Videos.GetVideo(r.Context(), job.VideoID); err == nil {
				v := VideoToResponse(video)
				resp.Video = &v
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func timelineDragHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TimelineDragRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		c, err := timeline.New(timeline.Config{
			Duration:    req.Duration,
			Width:       req.Width,
			MaxDuration: req.MaxDuration,
			Snap:        req.Snap,
		}, req.StartPosition)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}

		resp := TimelineDragResponse{
			SegmentWidth: c.Config().SegmentWidth(),
			Windows:      make([]timeline.Window, 0, len(req.Deltas)),
		}
		for _, dx := range req.Deltas {
			resp.Windows = append(resp.Windows, c.Drag(dx))
		}
		resp.Settle = c.Release()
		if req.PlaybackTime != nil {
			p := c.Playhead(*req.PlaybackTime)
			resp.Playhead = &p
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func exportReelHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.ReelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		videos, err := cfg.Videos.ListCropped(r.Context())
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		res, err := export.WriteReel(req, videos)
		switch {
		case errors.Is(err, export.ErrEmptyReel):
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "EMPTY_REEL")
			return
		case err != nil:
			cfg.Logger.Error("reel export failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}
