package crop

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/heimdex/clipdiary/internal/diary"
	"github.com/heimdex/clipdiary/internal/events"
	"github.com/heimdex/clipdiary/internal/pipeline"
	"github.com/heimdex/clipdiary/internal/render"
)

type submitCall struct {
	url      string
	start    float64
	duration float64
}

// fakeRenderer scripts the remote backend. uploadErrs and downloadErrs are
// consumed one per call before the call succeeds.
type fakeRenderer struct {
	mu sync.Mutex

	uploadErrs   []error
	uploads      []string
	submits      []submitCall
	submitErr    error
	statuses     []*render.JobStatus // last entry repeats
	pollErr      error
	polls        int
	downloadErrs []error
	downloads    int
	outputBytes  int
	gate         chan struct{}
}

func (f *fakeRenderer) UploadSource(ctx context.Context, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, localPath)
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		return "", err
	}
	return "https://ingest.example.com/sources/abc.mp4", nil
}

func (f *fakeRenderer) SubmitRender(ctx context.Context, sourceURL string, start, duration float64) (string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, submitCall{sourceURL, start, duration})
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "render-1", nil
}

func (f *fakeRenderer) PollStatus(ctx context.Context, jobID string) (*render.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	i := f.polls - 1
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return f.statuses[i], nil
}

func (f *fakeRenderer) Download(ctx context.Context, url, destPath string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	if len(f.downloadErrs) > 0 {
		err := f.downloadErrs[0]
		f.downloadErrs = f.downloadErrs[1:]
		return 0, err
	}
	data := make([]byte, f.outputBytes)
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func succeeded() []*render.JobStatus {
	return []*render.JobStatus{
		{ID: "render-1", Status: render.StatusQueued},
		{ID: "render-1", Status: render.StatusRendering},
		{ID: "render-1", Status: render.StatusSucceeded, OutputURL: "https://cdn.example.com/out.mp4"},
	}
}

// fakeFFmpeg fails the first thumbnailFailures probes and reports
// probeDuration for every output.
type fakeFFmpeg struct {
	mu                sync.Mutex
	thumbnailFailures int
	thumbnails        int
	probeDuration     float64
	trims             []float64
}

func (f *fakeFFmpeg) Probe(ctx context.Context, path string) (*pipeline.ProbeResult, error) {
	return &pipeline.ProbeResult{Duration: f.probeDuration}, nil
}

func (f *fakeFFmpeg) GenerateThumbnail(ctx context.Context, in, out string, offset float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumbnails++
	if f.thumbnails <= f.thumbnailFailures {
		return errors.New("decoder not ready")
	}
	return os.WriteFile(out, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0644)
}

func (f *fakeFFmpeg) Trim(ctx context.Context, in, out string, duration float64) error {
	f.mu.Lock()
	f.trims = append(f.trims, duration)
	f.mu.Unlock()
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data[:len(data)/2], 0644)
}

type fakeSink struct {
	mu       sync.Mutex
	videos   []*diary.Video
	addErr   error
	thumbErr error
}

func (f *fakeSink) AddVideo(ctx context.Context, v *diary.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.videos = append(f.videos, v)
	return nil
}

func (f *fakeSink) Thumbnail(ctx context.Context, uri string) (string, error) {
	if f.thumbErr != nil {
		return "", f.thumbErr
	}
	return uri + ".jpg", nil
}

func (f *fakeSink) added() []*diary.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*diary.Video(nil), f.videos...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		if ev.Type != events.TypeCropStage {
			out = append(out, ev.Type)
		}
	}
	return out
}

// recordingSleep records requested delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}
