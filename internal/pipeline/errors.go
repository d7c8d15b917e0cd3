package pipeline

import "fmt"

// StageError identifies which pipeline stage failed for which job. The
// orchestrator aborts the job and persists nothing once a stage fails.
type StageError struct {
	VideoID string
	Stage   string // save_source, extract, load_model, detect, compose, upload, store
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("job %s: stage %s: %v", e.VideoID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
