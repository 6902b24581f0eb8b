package lifecycle

import "fmt"

// TempResourceError reports that a temp path could not be resolved or
// created. Domain logic never runs after it.
type TempResourceError struct {
	Stage string
	Key   string
	Path  string
	Err   error
}

func (e *TempResourceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("stage %s: temp resource %s: %v", e.Stage, e.Key, e.Err)
	}
	return fmt.Sprintf("stage %s: temp resource %s (%s): %v", e.Stage, e.Key, e.Path, e.Err)
}

func (e *TempResourceError) Unwrap() error { return e.Err }

// InputResolutionError reports that an input selector could not be rendered
// or did not resolve to exactly one retrievable record.
type InputResolutionError struct {
	Stage    string
	Key      string
	Selector string
	Err      error
}

func (e *InputResolutionError) Error() string {
	return fmt.Sprintf("stage %s: input %s (%s): %v", e.Stage, e.Key, e.Selector, e.Err)
}

func (e *InputResolutionError) Unwrap() error { return e.Err }

// DomainExecutionError wraps any failure of the stage body. The cause is
// opaque to the wrapper.
type DomainExecutionError struct {
	Stage string
	Err   error
}

func (e *DomainExecutionError) Error() string {
	return fmt.Sprintf("stage %s: execution failed: %v", e.Stage, e.Err)
}

func (e *DomainExecutionError) Unwrap() error { return e.Err }

// OutputLoadError reports that an output could not be registered. Outputs
// loaded before the failure stay in the store.
type OutputLoadError struct {
	Stage string
	Key   string
	Err   error
}

func (e *OutputLoadError) Error() string {
	return fmt.Sprintf("stage %s: output %s: %v", e.Stage, e.Key, e.Err)
}

func (e *OutputLoadError) Unwrap() error { return e.Err }
