package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/clipdiary/internal/diary"
	"github.com/heimdex/clipdiary/internal/playback"
)

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Videos.ListVideos(r.Context())
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, VideosToResponse(videos, cfg.Crops.IsPending))
	}
}

func listCroppedHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Videos.ListCropped(r.Context())
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, VideosToResponse(videos, cfg.Crops.IsPending))
	}
}

func importVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		picked := diary.PickerResult{Canceled: req.Picker.Canceled}
		for _, a := range req.Picker.Assets {
			picked.Assets = append(picked.Assets, diary.PickedAsset{URI: a.URI, Duration: a.Duration, Type: a.Type})
		}
		asset, err := diary.SelectAsset(picked)
		if errors.Is(err, diary.ErrPickerCanceled) {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		video, err := cfg.Videos.ImportVideo(r.Context(), asset, diary.Metadata{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, VideoToResponse(video))
	}
}

func deleteAllVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Videos.DeleteAllVideos(r.Context()); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, err := cfg.Videos.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		resp := VideoToResponse(video)
		resp.CropPending = cfg.Crops.IsPending(video.ID)
		WriteJSON(w, http.StatusOK, resp)
	}
}

func updateVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		u := diary.VideoUpdate{
			URI:         req.URI,
			Title:       req.Title,
			Description: req.Description,
			Thumbnail:   req.Thumbnail,
			Duration:    req.Duration,
			CreatedAt:   req.CreatedAt,
		}
		if len(req.CropConfig) > 0 {
			u.SetCropConfig = true
			if !bytes.Equal(bytes.TrimSpace(req.CropConfig), []byte("null")) {
				var c CropConfigRequest
				if err := json.Unmarshal(req.CropConfig, &c); err != nil {
					WriteError(w, http.StatusBadRequest, "invalid crop_config", "BAD_REQUEST")
					return
				}
				if c.Duration == 0 {
					c.Duration = c.EndTime - c.StartTime
				}
				u.CropConfig = &diary.CropConfig{
					StartTime: c.StartTime,
					EndTime:   c.EndTime,
					Duration:  c.Duration,
					OutputURI: c.OutputURI,
				}
			}
		}

		video, err := cfg.Videos.UpdateVideo(r.Context(), chi.URLParam(r, "id"), u)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, VideoToResponse(video))
	}
}

func deleteVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Videos.DeleteVideo(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func streamHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, err := cfg.Videos.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if err := cfg.Playback.Stream(w, r, video); err != nil {
			cfg.Logger.Error("playback error", "video_id", video.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "playback failed", "INTERNAL_ERROR")
		}
	}
}

func windowHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, err := cfg.Videos.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		win, err := playback.WindowFor(video)
		if err != nil {
			cfg.Logger.Warn("unreadable sidecar metadata", "video_id", video.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read video metadata", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, win)
	}
}
