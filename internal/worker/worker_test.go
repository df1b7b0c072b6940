package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidolu/vision-worker/constants"
	"github.com/davidolu/vision-worker/internal/entity"
	"github.com/davidolu/vision-worker/internal/inference"
	"github.com/davidolu/vision-worker/internal/repository"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeRepo is an in-memory JobRepository mirroring the real store's
// transition semantics.
type fakeRepo struct {
	jobs  map[uuid.UUID]*entity.Job
	order []uuid.UUID

	listErr     map[constants.JobStatus]error
	claimErr    error
	completeErr error
	failErr     error
	deleteErr   error

	claimed   []uuid.UUID
	deleted   []uuid.UUID
	abandoned []uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		jobs:    make(map[uuid.UUID]*entity.Job),
		listErr: make(map[constants.JobStatus]error),
	}
}

func (f *fakeRepo) add(job entity.Job) uuid.UUID {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	f.jobs[job.ID] = &job
	f.order = append(f.order, job.ID)
	return job.ID
}

func (f *fakeRepo) Insert(ctx context.Context, job *entity.Job) error {
	f.add(*job)
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

func (f *fakeRepo) ListByStatus(ctx context.Context, status constants.JobStatus) ([]entity.Job, error) {
	if err := f.listErr[status]; err != nil {
		return nil, err
	}
	var out []entity.Job
	for _, id := range f.order {
		if job, ok := f.jobs[id]; ok && job.Status == status {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkProcessing(ctx context.Context, id uuid.UUID, prev constants.JobStatus, now time.Time) error {
	if f.claimErr != nil {
		return f.claimErr
	}
	job, ok := f.jobs[id]
	if !ok || job.Status != prev {
		return errors.New("claim guard missed")
	}
	f.claimed = append(f.claimed, id)
	job.Status = constants.JobStatusProcessing
	job.UpdatedAt = &now
	return nil
}

func (f *fakeRepo) MarkCompleted(ctx context.Context, id uuid.UUID, res repository.Completion) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	job := f.jobs[id]
	job.Status = constants.JobStatusCompleted
	job.Processed = true
	job.ResultURL = &res.ResultURL
	job.Detections = res.Detections
	job.ErrorMessage = nil
	job.RetryCount = 0
	job.ProcessingTimeSeconds = &res.ProcessingTimeSeconds
	job.UpdatedAt = &res.Now
	job.ProcessedAt = &res.Now
	return nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, res repository.Failure) error {
	if f.failErr != nil {
		return f.failErr
	}
	job := f.jobs[id]
	job.Status = constants.JobStatusFailed
	job.Processed = false
	job.ErrorMessage = &res.Message
	job.RetryCount = res.RetryCount
	job.ProcessingTimeSeconds = &res.ProcessingTimeSeconds
	job.UpdatedAt = &res.Now
	return nil
}

func (f *fakeRepo) MarkAbandoned(ctx context.Context, id uuid.UUID, now time.Time) error {
	job := f.jobs[id]
	job.Status = constants.JobStatusAbandoned
	job.UpdatedAt = &now
	f.abandoned = append(f.abandoned, id)
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.jobs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// fakeInference succeeds unless the source URL contains "bad".
type fakeInference struct {
	detections entity.DetectionList
	calls      []string
}

func (f *fakeInference) Process(ctx context.Context, sourceURL, filename string) (inference.Result, error) {
	f.calls = append(f.calls, sourceURL)
	if strings.Contains(sourceURL, "bad") {
		return inference.Result{}, errors.New("detector unavailable")
	}
	return inference.Result{
		ResultURL:  "https://store.example/object/public/processed-images/processed_" + filename,
		Detections: f.detections,
	}, nil
}

// stepClock returns times advancing by step on every call.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptrTime(t time.Time) *time.Time { return &t }
