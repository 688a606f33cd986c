package domain

import "time"

// Attempt stages, named after the adapter that produced the outcome.
const (
	StageFetch     = "fetch"
	StageTranscode = "transcode"
	StageStore     = "store"
)

// ImageAttempt records a single processing attempt for one source image.
type ImageAttempt struct {
	ID           string
	RequestID    string
	SerialNumber int
	ImageIndex   int
	Stage        string
	OutputURL    *string
	Error        *string
	CreatedAt    time.Time
}
