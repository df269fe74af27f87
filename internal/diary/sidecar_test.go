package diary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/docs/crops", "metadata_crop_1700.json"), SidecarPath("/docs/crops/crop_1700.mp4"))
	assert.Equal(t, filepath.Join("/docs/crops", "metadata_crop_1700.json"), SidecarPath("file:///docs/crops/crop_1700.mp4"))
}

func TestSidecar_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "crop_42.mp4")
	meta := VideoMetadata{OriginalURI: "/src.mp4", StartTime: 10, EndTime: 15, Duration: 5, CreatedAt: 42}

	path, err := WriteSidecar(video, meta)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "metadata_crop_42.json"), path)

	got, err := ReadSidecar(video)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, meta, *got)
}

func TestReadSidecar_Missing(t *testing.T) {
	got, err := ReadSidecar(filepath.Join(t.TempDir(), "none.mp4"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadSidecar_LegacyNameWins(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mov")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip_metadata.json"), []byte(`{"startTime":1,"endTime":2,"duration":1}`), 0644))
	_, err := WriteSidecar(video, VideoMetadata{StartTime: 7, EndTime: 9, Duration: 2})
	require.NoError(t, err)

	got, err := ReadSidecar(video)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.StartTime)
}

func TestReadSidecar_Corrupt(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(SidecarPath(video), []byte("{"), 0644))

	_, err := ReadSidecar(video)
	assert.Error(t, err)
}
