package crop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/heimdex/clipdiary/internal/diary"
	"github.com/heimdex/clipdiary/internal/logging"
)

// ErrJobNotFound is returned by Get for an unknown job id.
var ErrJobNotFound = errors.New("crop job not found")

// SourceLookup resolves the video being cropped.
type SourceLookup interface {
	GetVideo(ctx context.Context, id string) (*diary.Video, error)
}

// Jobs runs crops in the background and records their progress. A source
// has at most one crop in flight; different sources run in parallel.
type Jobs struct {
	orch    *Orchestrator
	store   JobStore
	sources SourceLookup
	logger  *slog.Logger

	// base outlives any request so a crop keeps running after the client
	// that started it goes away.
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inFlight map[string]string
	wg       sync.WaitGroup
}

// NewJobs wires job bookkeeping into the orchestrator's stage hook.
func NewJobs(orch *Orchestrator, store JobStore, sources SourceLookup, logger *slog.Logger) *Jobs {
	if logger == nil {
		logger = logging.Discard()
	}
	base, cancel := context.WithCancel(context.Background())
	j := &Jobs{
		orch:     orch,
		store:    store,
		sources:  sources,
		logger:   logging.WithComponent(logger, "crop-jobs"),
		base:     base,
		cancel:   cancel,
		inFlight: make(map[string]string),
	}

	prev := orch.OnStage
	orch.OnStage = func(req Request, stage Stage) {
		if err := store.UpdateStage(j.base, req.ID, stage); err != nil {
			j.logger.Warn("failed to record crop stage", "crop_id", req.ID, "stage", stage, "error", err)
		}
		if prev != nil {
			prev(req, stage)
		}
	}
	return j
}

// Submit validates the request, records a pending job and starts the crop.
// It returns ErrCropInFlight if the source is already being cropped.
func (j *Jobs) Submit(ctx context.Context, sourceID string, start, end float64) (*Job, error) {
	source, err := j.sources.GetVideo(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	req := Request{ID: diary.NewID(), Source: source, StartTime: start, EndTime: end}
	if _, err := validate(req); err != nil {
		return nil, err
	}

	if !j.claim(sourceID, req.ID) {
		return nil, ErrCropInFlight
	}

	now := time.Now()
	job := &Job{
		ID:        req.ID,
		SourceID:  sourceID,
		StartTime: start,
		EndTime:   end,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := j.store.Create(ctx, job); err != nil {
		j.release(sourceID)
		return nil, err
	}

	j.wg.Add(1)
	go j.run(sourceID, req)

	j.logger.Info("crop job submitted", "crop_id", job.ID, "source_id", sourceID, "start", start, "end", end)
	return job, nil
}

func (j *Jobs) run(sourceID string, req Request) {
	defer j.wg.Done()
	defer j.release(sourceID)

	video, err := j.orch.Run(j.base, req)
	if err != nil {
		var ce *Error
		stage, kind := StageValidating, KindRenderFailed
		if errors.As(err, &ce) {
			stage, kind = ce.Stage, ce.Kind
		}
		if serr := j.store.Fail(context.Background(), req.ID, kind, stage, err.Error()); serr != nil {
			j.logger.Error("failed to record crop failure", "crop_id", req.ID, "error", serr)
		}
		return
	}
	if serr := j.store.Complete(context.Background(), req.ID, video.ID); serr != nil {
		j.logger.Error("failed to record crop completion", "crop_id", req.ID, "error", serr)
	}
}

// Get returns a job by id.
func (j *Jobs) Get(ctx context.Context, id string) (*Job, error) {
	job, err := j.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// List returns the most recent jobs first.
func (j *Jobs) List(ctx context.Context, limit int) ([]*Job, error) {
	return j.store.List(ctx, limit)
}

// IsPending reports whether sourceID has a crop in flight.
func (j *Jobs) IsPending(sourceID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.inFlight[sourceID]
	return ok
}

// InFlight is the number of crops currently running.
func (j *Jobs) InFlight() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.inFlight)
}

// Wait blocks until every submitted crop has finished.
func (j *Jobs) Wait() {
	j.wg.Wait()
}

// Shutdown cancels running crops and waits for their cleanup, or for ctx.
func (j *Jobs) Shutdown(ctx context.Context) error {
	j.cancel()
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Jobs) claim(sourceID, jobID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, busy := j.inFlight[sourceID]; busy {
		return false
	}
	j.inFlight[sourceID] = jobID
	return true
}

func (j *Jobs) release(sourceID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.inFlight, sourceID)
}
