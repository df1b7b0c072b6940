package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davidolu/vision-worker/constants"
	"github.com/davidolu/vision-worker/internal/entity"
	"github.com/davidolu/vision-worker/internal/worker"
)

func TestProcessOne_SuccessResetsRetryState(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add(entity.Job{
		Filename:     "cat.jpg",
		SourceURL:    "https://img.example/cat.jpg",
		Status:       constants.JobStatusFailed,
		RetryCount:   2,
		ErrorMessage: ptrString("previous failure"),
	})

	svc := &fakeInference{detections: entity.DetectionList{
		{Class: "cat", Confidence: 0.91, BBox: [4]float64{1, 2, 3, 4}},
	}}
	clock := &stepClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC), step: 10 * time.Second}
	ctrl := worker.NewController(repo, svc, testLogger, worker.WithClock(clock.now))

	out := ctrl.ProcessOne(context.Background(), *repo.jobs[id])

	if !out.Completed || out.ProcessErr != nil || out.PersistErr != nil {
		t.Fatalf("outcome = %+v, want completed with no errors", out)
	}
	if out.Detections != 1 {
		t.Errorf("Detections = %d, want 1", out.Detections)
	}

	job := repo.jobs[id]
	if job.Status != constants.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if !job.Processed {
		t.Error("processed flag not set")
	}
	if job.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0 after success", job.RetryCount)
	}
	if job.ErrorMessage != nil {
		t.Errorf("error_message = %q, want cleared", *job.ErrorMessage)
	}
	if job.ResultURL == nil || *job.ResultURL == "" {
		t.Error("result_url not set")
	}
	if job.ProcessedAt == nil {
		t.Error("processed_at not set")
	}
	// Clock steps 10s per call: claim, start, end of attempt.
	if job.ProcessingTimeSeconds == nil || *job.ProcessingTimeSeconds != 10 {
		t.Errorf("processing_time_seconds = %v, want 10", job.ProcessingTimeSeconds)
	}
}

func TestProcessOne_FailureIncrementsRetryFromReadValue(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add(entity.Job{
		Filename:   "dog.jpg",
		SourceURL:  "https://img.example/bad/dog.jpg",
		Status:     constants.JobStatusPending,
		RetryCount: 1,
	})

	ctrl := worker.NewController(repo, &fakeInference{}, testLogger)
	out := ctrl.ProcessOne(context.Background(), *repo.jobs[id])

	if out.Completed {
		t.Fatal("outcome reports completed for a failed attempt")
	}
	if out.ProcessErr == nil {
		t.Fatal("ProcessErr not set")
	}
	if out.PersistErr != nil {
		t.Fatalf("PersistErr = %v, want nil", out.PersistErr)
	}

	job := repo.jobs[id]
	if job.Status != constants.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.RetryCount != 2 {
		t.Errorf("retry_count = %d, want 2 (incremented from the value read at attempt start)", job.RetryCount)
	}
	if job.ErrorMessage == nil || *job.ErrorMessage == "" {
		t.Error("error_message not recorded")
	}
	if job.UpdatedAt == nil {
		t.Error("updated_at not set on transition")
	}
}

func TestProcessOne_ClaimFailureDoesNotAbortAttempt(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add(entity.Job{
		Filename:  "bird.jpg",
		SourceURL: "https://img.example/bird.jpg",
		Status:    constants.JobStatusPending,
	})
	repo.claimErr = errors.New("store hiccup")

	ctrl := worker.NewController(repo, &fakeInference{}, testLogger)
	out := ctrl.ProcessOne(context.Background(), *repo.jobs[id])

	if !out.Completed {
		t.Fatalf("attempt did not proceed past a failed claim: %+v", out)
	}
	if repo.jobs[id].Status != constants.JobStatusCompleted {
		t.Errorf("status = %s, want completed", repo.jobs[id].Status)
	}
}

func TestProcessOne_TerminalPersistFailureSurfaces(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add(entity.Job{
		Filename:  "fish.jpg",
		SourceURL: "https://img.example/fish.jpg",
		Status:    constants.JobStatusPending,
	})
	repo.completeErr = errors.New("store unreachable")

	ctrl := worker.NewController(repo, &fakeInference{}, testLogger)
	out := ctrl.ProcessOne(context.Background(), *repo.jobs[id])

	if out.Completed {
		t.Error("outcome reports completed although the terminal write failed")
	}
	if out.PersistErr == nil {
		t.Error("PersistErr not surfaced")
	}
}

func TestProcessOne_RepeatedFailuresCountMonotonically(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add(entity.Job{
		Filename:  "truck.jpg",
		SourceURL: "https://img.example/bad/truck.jpg",
		Status:    constants.JobStatusPending,
	})

	ctrl := worker.NewController(repo, &fakeInference{}, testLogger)
	for n := 1; n <= 3; n++ {
		ctrl.ProcessOne(context.Background(), *repo.jobs[id])
		if got := repo.jobs[id].RetryCount; got != n {
			t.Fatalf("after failure %d: retry_count = %d, want %d", n, got, n)
		}
	}
}

func ptrString(s string) *string { return &s }
