package diary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/clipdiary/internal/cache"
	"github.com/heimdex/clipdiary/internal/logging"
)

// ThumbnailGenerator extracts a still frame from a video.
type ThumbnailGenerator interface {
	GenerateThumbnail(ctx context.Context, videoPath, outputPath string, offset float64) error
}

// Caches groups the derived caches the service keeps coherent with the store.
type Caches struct {
	Thumbnails *cache.ThumbnailCache
	Lists      *cache.ListCache[[]*Video]
}

// DefaultCaches builds both caches with their default bounds.
func DefaultCaches() Caches {
	return Caches{
		Thumbnails: cache.NewThumbnailCache(cache.ThumbnailDefaults),
		Lists:      cache.NewListCache[[]*Video](cache.ListDefaults, ListSize),
	}
}

// ListSize is the accounting size of a list snapshot: the summed length of
// its thumbnail references.
func ListSize(videos []*Video) int64 {
	var n int64
	for _, v := range videos {
		n += int64(len(v.Thumbnail))
	}
	return n
}

// VideoUpdate is a partial edit. Nil pointers are left untouched. When
// SetCropConfig is true CropConfig replaces the stored value, and a nil
// CropConfig clears it.
type VideoUpdate struct {
	URI           *string
	Title         *string
	Description   *string
	Thumbnail     *string
	CreatedAt     *int64
	Duration      *int
	SetCropConfig bool
	CropConfig    *CropConfig
}

// Service is the UI-facing state layer over the store. Every mutation
// invalidates the list snapshot before returning.
type Service struct {
	store     Store
	caches    Caches
	gen       ThumbnailGenerator
	thumbsDir string
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store Store, caches Caches, gen ThumbnailGenerator, thumbsDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		store:     store,
		caches:    caches,
		gen:       gen,
		thumbsDir: thumbsDir,
		logger:    logging.WithComponent(logger, "diary"),
		now:       time.Now,
	}
}

// SelectAsset returns the first picked asset. A canceled or empty result
// yields ErrPickerCanceled.
func SelectAsset(res PickerResult) (PickedAsset, error) {
	if res.Canceled || len(res.Assets) == 0 {
		return PickedAsset{}, ErrPickerCanceled
	}
	return res.Assets[0], nil
}

// ValidateAsset rejects anything that is not a supported local video file
// under MaxImportBytes.
func ValidateAsset(asset PickedAsset) error {
	if asset.Type != "video" {
		return invalidf("asset type %q is not a video", asset.Type)
	}
	if !IsVideoFile(asset.URI) {
		return invalidf("unsupported video file type %q", filepath.Ext(asset.URI))
	}
	info, err := os.Stat(LocalPath(asset.URI))
	if err != nil {
		return invalidf("file does not exist: %s", logging.SanitizePath(asset.URI))
	}
	if info.IsDir() {
		return invalidf("path is a directory: %s", logging.SanitizePath(asset.URI))
	}
	if info.Size() > MaxImportBytes {
		return invalidf("video is %d bytes, limit is %d", info.Size(), MaxImportBytes)
	}
	return nil
}

// ImportVideo validates a picked asset and its metadata and inserts a new
// video with a generated thumbnail.
func (s *Service) ImportVideo(ctx context.Context, asset PickedAsset, meta Metadata) (*Video, error) {
	if err := ValidateAsset(asset); err != nil {
		return nil, err
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	thumb, err := s.Thumbnail(ctx, asset.URI)
	if err != nil {
		return nil, fmt.Errorf("generate thumbnail: %w", err)
	}

	v := &Video{
		ID:          NewID(),
		URI:         asset.URI,
		Title:       strings.TrimSpace(meta.Title),
		Description: strings.TrimSpace(meta.Description),
		CreatedAt:   s.now().UnixMilli(),
		Duration:    int(math.Floor(math.Max(asset.Duration, 0))),
		Thumbnail:   thumb,
	}
	if err := s.AddVideo(ctx, v); err != nil {
		return nil, err
	}

	logging.WithVideoID(s.logger, v.ID).Info("video imported",
		"path", logging.SanitizePath(v.URI), "duration", v.Duration)
	return v, nil
}

// AddVideo inserts v as is.
func (s *Service) AddVideo(ctx context.Context, v *Video) error {
	defer s.invalidateList()
	return s.store.Insert(ctx, v)
}

// ListVideos returns every video, newest first, served from the list cache
// when warm.
func (s *Service) ListVideos(ctx context.Context) ([]*Video, error) {
	if videos, ok := s.caches.Lists.Get(cache.AllVideosKey); ok {
		return videos, nil
	}
	gen := s.caches.Lists.Generation()
	videos, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	s.caches.Lists.SetIfCurrent(cache.AllVideosKey, videos, gen)
	return videos, nil
}

// ListCropped returns the cropped collection.
func (s *Service) ListCropped(ctx context.Context) ([]*Video, error) {
	if videos, ok := s.caches.Lists.Get(cache.AllVideosKey); ok {
		cropped := []*Video{}
		for _, v := range videos {
			if v.IsCropped() {
				cropped = append(cropped, v)
			}
		}
		return cropped, nil
	}
	return s.store.GetCropped(ctx)
}

// GetVideo returns ErrNotFound for an unknown id.
func (s *Service) GetVideo(ctx context.Context, id string) (*Video, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *Service) UpdateVideo(ctx context.Context, id string, u VideoUpdate) (*Video, error) {
	existing, err := s.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := Fields{}
	if u.Title != nil {
		if err := checkLength("title", *u.Title, TitleMaxLen); err != nil {
			return nil, err
		}
		fields[FieldTitle] = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		if err := checkLength("description", *u.Description, DescriptionMaxLen); err != nil {
			return nil, err
		}
		fields[FieldDescription] = strings.TrimSpace(*u.Description)
	}
	if u.URI != nil {
		if *u.URI == "" {
			return nil, invalidf("uri must not be empty")
		}
		fields[FieldURI] = *u.URI
	}
	if u.Thumbnail != nil {
		fields[FieldThumbnail] = *u.Thumbnail
	}
	if u.CreatedAt != nil {
		fields[FieldCreatedAt] = *u.CreatedAt
	}
	if u.Duration != nil {
		if *u.Duration < 0 {
			return nil, invalidf("duration must not be negative")
		}
		fields[FieldDuration] = *u.Duration
	}
	if u.SetCropConfig {
		if u.CropConfig != nil {
			if err := u.CropConfig.Validate(); err != nil {
				return nil, err
			}
			fields[FieldCropConfig] = u.CropConfig
		} else {
			fields[FieldCropConfig] = nil
		}
	}

	if len(fields) == 0 {
		return existing, nil
	}

	err = s.store.Update(ctx, id, fields)
	s.invalidateList()
	if err != nil {
		return nil, err
	}
	if u.URI != nil && *u.URI != existing.URI {
		s.caches.Thumbnails.Remove(existing.URI)
	}
	return s.GetVideo(ctx, id)
}

// ClearCrop removes the crop metadata from a video, leaving other fields.
func (s *Service) ClearCrop(ctx context.Context, id string) (*Video, error) {
	return s.UpdateVideo(ctx, id, VideoUpdate{SetCropConfig: true})
}

// DeleteVideo is idempotent: deleting an unknown id succeeds.
func (s *Service) DeleteVideo(ctx context.Context, id string) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.store.Delete(ctx, id)
	s.invalidateList()
	if err != nil {
		return err
	}
	if existing != nil {
		s.caches.Thumbnails.Remove(existing.URI)
		s.removeThumbnail(ctx, existing.Thumbnail)
		logging.WithVideoID(s.logger, id).Info("video deleted")
	}
	return nil
}

// DeleteAllVideos empties the store and removes every generated thumbnail.
func (s *Service) DeleteAllVideos(ctx context.Context) error {
	existing, err := s.store.GetAll(ctx)
	if err != nil {
		s.logger.Warn("could not list thumbnails before delete all", "error", err)
	}

	err = s.store.DeleteAll(ctx)
	s.invalidateList()
	if err != nil {
		return err
	}
	s.caches.Thumbnails.Purge()
	for _, v := range existing {
		if s.ownsThumbnail(v.Thumbnail) {
			s.deleteThumbnailFile(v.Thumbnail)
		}
	}
	s.logger.Info("all videos deleted")
	return nil
}

// removeThumbnail deletes a generated thumbnail once no remaining video
// refers to it. A crop can inherit its source's thumbnail.
func (s *Service) removeThumbnail(ctx context.Context, thumb string) {
	if !s.ownsThumbnail(thumb) {
		return
	}
	remaining, err := s.store.GetAll(ctx)
	if err != nil {
		s.logger.Warn("keeping thumbnail, could not check references", "path", logging.SanitizePath(thumb), "error", err)
		return
	}
	for _, v := range remaining {
		if v.Thumbnail == thumb {
			return
		}
	}
	s.deleteThumbnailFile(thumb)
}

func (s *Service) deleteThumbnailFile(thumb string) {
	if err := os.Remove(thumb); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove thumbnail", "path", logging.SanitizePath(thumb), "error", err)
	}
}

// ownsThumbnail reports whether thumb was generated into thumbsDir.
func (s *Service) ownsThumbnail(thumb string) bool {
	if thumb == "" || s.thumbsDir == "" {
		return false
	}
	rel, err := filepath.Rel(s.thumbsDir, thumb)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Counts returns the number of videos and how many of them are crops.
func (s *Service) Counts(ctx context.Context) (total, cropped int, err error) {
	return s.store.Count(ctx)
}

// Thumbnail returns a thumbnail for uri, generating one on a cache miss.
func (s *Service) Thumbnail(ctx context.Context, uri string) (string, error) {
	if thumb, ok := s.caches.Thumbnails.Get(uri); ok {
		if _, err := os.Stat(thumb); err == nil {
			return thumb, nil
		}
		s.caches.Thumbnails.Remove(uri)
	}
	if s.gen == nil {
		return "", errors.New("no thumbnail generator configured")
	}

	if err := os.MkdirAll(s.thumbsDir, 0755); err != nil {
		return "", fmt.Errorf("create thumbnails directory: %w", err)
	}
	out := filepath.Join(s.thumbsDir, NewID()+".jpg")
	src := uri
	if !IsRemote(uri) {
		src = LocalPath(uri)
	}
	if err := s.gen.GenerateThumbnail(ctx, src, out, 0); err != nil {
		os.Remove(out)
		return "", err
	}

	var size int64
	if info, err := os.Stat(out); err == nil {
		size = info.Size()
	}
	s.caches.Thumbnails.Set(uri, out, size)
	return out, nil
}

func (s *Service) invalidateList() {
	s.caches.Lists.Invalidate(cache.AllVideosKey)
}
