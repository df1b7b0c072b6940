package inference

import (
	"context"

	"github.com/davidolu/vision-worker/internal/entity"
)

// Result is what a successful inference run hands back to the controller.
type Result struct {
	// ResultURL is the public reference of the annotated artifact.
	ResultURL string
	// Detections is ordered as returned by the detector, after filtering.
	Detections entity.DetectionList
}

// Service runs one full inference pass for a source image: fetch the input,
// run detection, store the annotated output. Any stage failure surfaces as a
// single error; the controller only needs pass/fail plus a message.
type Service interface {
	Process(ctx context.Context, sourceURL, filename string) (Result, error)
}
