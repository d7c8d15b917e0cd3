package vision

import "fmt"

// InferenceError means one frame's detection call failed: a malformed image,
// a model-load failure, or the inference run itself erroring.
type InferenceError struct {
	Frame string
	Err   error
}

func (e *InferenceError) Error() string {
	if e.Frame == "" {
		return fmt.Sprintf("inference: %v", e.Err)
	}
	return fmt.Sprintf("inference on %s: %v", e.Frame, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
