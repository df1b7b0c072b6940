package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidolu/vision-worker/constants"
)

// Detection is a single object found in an image.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// DetectionList is stored as a JSON column.
type DetectionList []Detection

func (d DetectionList) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *DetectionList) Scan(src any) error {
	if src == nil {
		*d = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("detections: unsupported scan type %T", src)
	}
	if len(b) == 0 {
		*d = nil
		return nil
	}
	return json.Unmarshal(b, d)
}

// Job is one unit of work: a single image to be analyzed.
// Rows are created externally with status=pending and mutated only by the
// controller (status transitions) and the cleaner (removal/archival).
type Job struct {
	ID                    uuid.UUID           `db:"id"`
	Filename              string              `db:"filename"`
	SourceURL             string              `db:"source_url"`
	Status                constants.JobStatus `db:"status"`
	Processed             bool                `db:"processed"`
	ResultURL             *string             `db:"result_url"`
	Detections            DetectionList       `db:"detections"`
	ErrorMessage          *string             `db:"error_message"`
	RetryCount            int                 `db:"retry_count"`
	ProcessingTimeSeconds *float64            `db:"processing_time_seconds"`
	CreatedAt             time.Time           `db:"created_at"`
	UpdatedAt             *time.Time          `db:"updated_at"`
	ProcessedAt           *time.Time          `db:"processed_at"`
}
