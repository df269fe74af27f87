package diary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/clipdiary/internal/cache"
)

type fakeThumbnailer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeThumbnailer) GenerateThumbnail(ctx context.Context, videoPath, outputPath string, offset float64) error {
	f.calls.Add(1)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("jpeg"), 0644)
}

type serviceFixture struct {
	svc    *Service
	store  *SQLiteStore
	caches Caches
	gen    *fakeThumbnailer
	dir    string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := newTestStore(t)
	caches := DefaultCaches()
	gen := &fakeThumbnailer{}
	dir := t.TempDir()
	return &serviceFixture{
		svc:    NewService(store, caches, gen, filepath.Join(dir, "thumbs"), nil),
		store:  store,
		caches: caches,
		gen:    gen,
		dir:    dir,
	}
}

func (f *serviceFixture) writeVideo(t *testing.T, name string, size int) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0644))
	return p
}

func validMeta() Metadata {
	return Metadata{Title: "Morning run", Description: "Five kilometers by the river"}
}

func TestSelectAsset(t *testing.T) {
	_, err := SelectAsset(PickerResult{Canceled: true, Assets: []PickedAsset{{URI: "a.mp4"}}})
	assert.ErrorIs(t, err, ErrPickerCanceled)

	_, err = SelectAsset(PickerResult{})
	assert.ErrorIs(t, err, ErrPickerCanceled)

	asset, err := SelectAsset(PickerResult{Assets: []PickedAsset{{URI: "first.mp4"}, {URI: "second.mp4"}}})
	require.NoError(t, err)
	assert.Equal(t, "first.mp4", asset.URI)
}

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr bool
	}{
		{"valid", validMeta(), false},
		{"max lengths", Metadata{Title: strings.Repeat("t", 50), Description: strings.Repeat("d", 500)}, false},
		{"multibyte counted as characters", Metadata{Title: strings.Repeat("é", 50), Description: "ok"}, false},
		{"empty title", Metadata{Title: "", Description: "ok"}, true},
		{"blank title", Metadata{Title: "   ", Description: "ok"}, true},
		{"long title", Metadata{Title: strings.Repeat("t", 51), Description: "ok"}, true},
		{"empty description", Metadata{Title: "ok"}, true},
		{"long description", Metadata{Title: "ok", Description: strings.Repeat("d", 501)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestImportVideo(t *testing.T) {
	f := newServiceFixture(t)
	path := f.writeVideo(t, "clip.MP4", 2048)

	v, err := f.svc.ImportVideo(context.Background(), PickedAsset{URI: path, Duration: 30.9, Type: "video"}, validMeta())
	require.NoError(t, err)

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, path, v.URI)
	assert.Equal(t, 30, v.Duration)
	assert.Nil(t, v.CropConfig)
	assert.FileExists(t, v.Thumbnail)

	stored, err := f.svc.GetVideo(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Title, stored.Title)
}

func TestImportVideo_RejectsInvalidAssets(t *testing.T) {
	f := newServiceFixture(t)
	good := f.writeVideo(t, "ok.mp4", 10)
	text := f.writeVideo(t, "notes.txt", 10)

	tests := []struct {
		name  string
		asset PickedAsset
	}{
		{"image type", PickedAsset{URI: good, Type: "image"}},
		{"bad extension", PickedAsset{URI: text, Type: "video"}},
		{"missing file", PickedAsset{URI: filepath.Join(f.dir, "gone.mov"), Type: "video"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ImportVideo(context.Background(), tt.asset, validMeta())
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Equal(t, int32(0), f.gen.calls.Load(), "rejected input must not reach thumbnail generation")
}

func TestImportVideo_RejectsOversizedFile(t *testing.T) {
	f := newServiceFixture(t)
	path := filepath.Join(f.dir, "big.webm")
	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, fh.Truncate(MaxImportBytes+1))
	fh.Close()

	_, err = f.svc.ImportVideo(context.Background(), PickedAsset{URI: path, Type: "video"}, validMeta())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListVideos_CachedUntilMutation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	require.NoError(t, f.svc.AddVideo(ctx, sampleVideo("a", 1)))
	first, err := f.svc.ListVideos(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, ok := f.caches.Lists.Get(cache.AllVideosKey)
	require.True(t, ok, "list should be cached after a read")

	// A write behind the service's back is not visible while the cache is warm.
	require.NoError(t, f.store.Insert(ctx, sampleVideo("sneaky", 5)))
	cached, err := f.svc.ListVideos(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	// A write through the service invalidates synchronously.
	require.NoError(t, f.svc.AddVideo(ctx, sampleVideo("b", 2)))
	fresh, err := f.svc.ListVideos(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 3)
}

func TestMutationsInvalidateListCache(t *testing.T) {
	ctx := context.Background()
	mutations := map[string]func(*Service) error{
		"update": func(s *Service) error {
			title := "new title"
			_, err := s.UpdateVideo(ctx, "a", VideoUpdate{Title: &title})
			return err
		},
		"delete":     func(s *Service) error { return s.DeleteVideo(ctx, "a") },
		"delete all": func(s *Service) error { return s.DeleteAllVideos(ctx) },
		"clear crop": func(s *Service) error { _, err := s.ClearCrop(ctx, "a"); return err },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			f := newServiceFixture(t)
			require.NoError(t, f.svc.AddVideo(ctx, sampleVideo("a", 1)))
			_, err := f.svc.ListVideos(ctx)
			require.NoError(t, err)

			require.NoError(t, mutate(f.svc))

			_, ok := f.caches.Lists.Get(cache.AllVideosKey)
			assert.False(t, ok)
		})
	}
}

func TestListCropped(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	cropped := sampleVideo("c", 2)
	cropped.CropConfig = &CropConfig{StartTime: 10, EndTime: 15, Duration: 5}
	require.NoError(t, f.svc.AddVideo(ctx, sampleVideo("a", 1)))
	require.NoError(t, f.svc.AddVideo(ctx, cropped))

	cold, err := f.svc.ListCropped(ctx)
	require.NoError(t, err)
	require.Len(t, cold, 1)

	_, err = f.svc.ListVideos(ctx)
	require.NoError(t, err)
	warm, err := f.svc.ListCropped(ctx)
	require.NoError(t, err)
	require.Len(t, warm, 1)
	assert.Equal(t, "c", warm[0].ID)
}

func TestDeleteAllVideos_EmptiesBothCollections(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	cropped := sampleVideo("c", 2)
	cropped.CropConfig = &CropConfig{StartTime: 0, EndTime: 5, Duration: 5}
	require.NoError(t, f.svc.AddVideo(ctx, sampleVideo("a", 1)))
	require.NoError(t, f.svc.AddVideo(ctx, cropped))
	f.caches.Thumbnails.Set("/videos/a.mp4", "/thumbs/a.jpg", 10)

	require.NoError(t, f.svc.DeleteAllVideos(ctx))

	all, err := f.svc.ListVideos(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	croppedOnly, err := f.svc.ListCropped(ctx)
	require.NoError(t, err)
	assert.Empty(t, croppedOnly)
	assert.Equal(t, 0, f.caches.Thumbnails.Len())
}

func TestDeleteVideo_IdempotentAndEvictsThumbnail(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	v := sampleVideo("a", 1)
	require.NoError(t, f.svc.AddVideo(ctx, v))
	f.caches.Thumbnails.Set(v.URI, v.Thumbnail, 10)

	require.NoError(t, f.svc.DeleteVideo(ctx, "a"))
	require.NoError(t, f.svc.DeleteVideo(ctx, "a"))

	_, ok := f.caches.Thumbnails.Get(v.URI)
	assert.False(t, ok)
	_, err := f.svc.GetVideo(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearCrop_LeavesOtherFields(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	v := sampleVideo("a", 1)
	v.CropConfig = &CropConfig{StartTime: 10, EndTime: 15, Duration: 5}
	require.NoError(t, f.svc.AddVideo(ctx, v))

	got, err := f.svc.ClearCrop(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got.CropConfig)
	assert.Equal(t, v.Title, got.Title)
	assert.Equal(t, v.Description, got.Description)
}

func TestUpdateVideo_Validation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	require.NoError(t, f.svc.AddVideo(ctx, sampleVideo("a", 1)))

	long := strings.Repeat("x", 51)
	_, err := f.svc.UpdateVideo(ctx, "a", VideoUpdate{Title: &long})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.UpdateVideo(ctx, "a", VideoUpdate{SetCropConfig: true, CropConfig: &CropConfig{StartTime: 5, EndTime: 5}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	title := "fine"
	_, err = f.svc.UpdateVideo(ctx, "missing", VideoUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThumbnail_UsesCache(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	src := f.writeVideo(t, "a.mp4", 10)

	t1, err := f.svc.Thumbnail(ctx, src)
	require.NoError(t, err)
	t2, err := f.svc.Thumbnail(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, t1, t2)
	assert.Equal(t, int32(1), f.gen.calls.Load())
	assert.Equal(t, int64(len("jpeg")), f.caches.Thumbnails.Bytes())
}

func TestThumbnail_RegeneratesWhenFileVanished(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	src := f.writeVideo(t, "a.mp4", 10)

	t1, err := f.svc.Thumbnail(ctx, src)
	require.NoError(t, err)
	require.NoError(t, os.Remove(t1))

	_, err = f.svc.Thumbnail(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.gen.calls.Load())
}

func TestThumbnail_GeneratorFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.gen.err = errors.New("decoder not ready")

	_, err := f.svc.Thumbnail(context.Background(), f.writeVideo(t, "a.mp4", 10))
	require.Error(t, err)
	assert.Equal(t, 0, f.caches.Thumbnails.Len())
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "video/quicktime", MIMEType("clip.MOV"))
	assert.Equal(t, "video/webm", MIMEType("/a/b.webm"))
	assert.Equal(t, "application/octet-stream", MIMEType("notes.txt"))
	assert.True(t, IsVideoFile("x.mkv"))
	assert.False(t, IsVideoFile("x"))
}

// pausingStore holds the first GetAll after its query has run, so a write
// can land between the read and the cache fill.
type pausingStore struct {
	*SQLiteStore
	paused atomic.Bool
	loaded chan struct{}
	resume chan struct{}
}

func (p *pausingStore) GetAll(ctx context.Context) ([]*Video, error) {
	videos, err := p.SQLiteStore.GetAll(ctx)
	if p.paused.CompareAndSwap(false, true) {
		close(p.loaded)
		<-p.resume
	}
	return videos, err
}

func TestListVideos_WriteDuringReadIsNotOverwrittenByStaleSnapshot(t *testing.T) {
	store := &pausingStore{
		SQLiteStore: newTestStore(t),
		loaded:      make(chan struct{}),
		resume:      make(chan struct{}),
	}
	svc := NewService(store, DefaultCaches(), &fakeThumbnailer{}, t.TempDir(), nil)
	ctx := context.Background()

	done := make(chan []*Video)
	go func() {
		videos, err := svc.ListVideos(ctx)
		assert.NoError(t, err)
		done <- videos
	}()

	<-store.loaded
	require.NoError(t, svc.AddVideo(ctx, sampleVideo("new", 1000)))
	close(store.resume)
	assert.Empty(t, <-done)

	videos, err := svc.ListVideos(ctx)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "new", videos[0].ID)
}

func TestDeleteVideo_RemovesGeneratedThumbnailOnceUnreferenced(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	thumb, err := f.svc.Thumbnail(ctx, f.writeVideo(t, "a.mp4", 10))
	require.NoError(t, err)

	source := sampleVideo("a", 1)
	source.Thumbnail = thumb
	crop := sampleVideo("c", 2)
	crop.Thumbnail = thumb
	crop.CropConfig = &CropConfig{StartTime: 0, EndTime: 5, Duration: 5}
	require.NoError(t, f.svc.AddVideo(ctx, source))
	require.NoError(t, f.svc.AddVideo(ctx, crop))

	require.NoError(t, f.svc.DeleteVideo(ctx, "c"))
	assert.FileExists(t, thumb)

	require.NoError(t, f.svc.DeleteVideo(ctx, "a"))
	assert.NoFileExists(t, thumb)
}

func TestDeleteVideo_LeavesForeignThumbnail(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	foreign := f.writeVideo(t, "picked.jpg", 10)
	v := sampleVideo("a", 1)
	v.Thumbnail = foreign
	require.NoError(t, f.svc.AddVideo(ctx, v))

	require.NoError(t, f.svc.DeleteVideo(ctx, "a"))
	assert.FileExists(t, foreign)
}

func TestDeleteAllVideos_RemovesGeneratedThumbnails(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	var thumbs []string
	for _, id := range []string{"a", "b"} {
		thumb, err := f.svc.Thumbnail(ctx, f.writeVideo(t, id+".mp4", 10))
		require.NoError(t, err)
		v := sampleVideo(id, 1)
		v.Thumbnail = thumb
		require.NoError(t, f.svc.AddVideo(ctx, v))
		thumbs = append(thumbs, thumb)
	}

	require.NoError(t, f.svc.DeleteAllVideos(ctx))
	for _, thumb := range thumbs {
		assert.NoFileExists(t, thumb)
	}
}
