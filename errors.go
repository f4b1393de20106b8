package depspider

import "fmt"

// AnalyzeError reports that a directly-requested file could not be read or
// parsed. It is the only failure class surfaced to callers: resolution
// misses, config parse failures, and cancellation are absorbed where they
// occur.
type AnalyzeError struct {
	Path string
	Err  error
}

func (e *AnalyzeError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.Path, e.Err)
}

func (e *AnalyzeError) Unwrap() error {
	return e.Err
}
