package main

// Exit codes returned to scripts and container supervisors.
const (
	exitFailure = 1
	exitConfig  = 2
)

// ExitCodeError wraps an error with a specific process exit code.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
