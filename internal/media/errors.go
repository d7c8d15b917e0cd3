package media

import "fmt"

// ExtractionError means the source video could not be decoded into frames.
// The output directory must be treated as invalid and the job aborted.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract frames from %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ComposeError means the annotated frames could not be encoded into an
// output video.
type ComposeError struct {
	FramesDir string
	Err       error
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("compose video from %s: %v", e.FramesDir, e.Err)
}

func (e *ComposeError) Unwrap() error { return e.Err }
