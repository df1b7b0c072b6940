package constants

// JobStatus is the canonical status for rows in vision_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "pending"    // awaiting first attempt
	JobStatusProcessing JobStatus = "processing" // attempt in progress
	JobStatusCompleted  JobStatus = "completed"  // terminal success
	JobStatusFailed     JobStatus = "failed"     // failed, eligible for retry
	JobStatusAbandoned  JobStatus = "abandoned"  // retries exhausted, archived by cleanup
)

func (s JobStatus) String() string { return string(s) }
