package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShuttingDown is returned by Generate once BeginShutdown has been called.
var ErrShuttingDown = errors.New("report generator is shutting down")

// AcquisitionError represents a failure to launch or configure a rendering session
type AcquisitionError struct {
	Message string
	Cause   error
}

func (e *AcquisitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("acquisition error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("acquisition error: %s", e.Message)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Cause
}

// NavigationError represents every navigation strategy failing
type NavigationError struct {
	Message string
	Cause   error
}

func (e *NavigationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("navigation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("navigation error: %s", e.Message)
}

func (e *NavigationError) Unwrap() error {
	return e.Cause
}

// PageLoadError represents a page that never showed a ready element or any content
type PageLoadError struct {
	Message string
	Cause   error
}

func (e *PageLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("page load error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("page load error: %s", e.Message)
}

func (e *PageLoadError) Unwrap() error {
	return e.Cause
}

// ChartLoadError represents too few charts appearing. Failed lists exactly the
// chart ids that timed out.
type ChartLoadError struct {
	Failed []string
	Loaded int
	Total  int
	Cause  error
}

func (e *ChartLoadError) Error() string {
	msg := fmt.Sprintf("chart load error: too many charts failed to load: %d/%d", len(e.Failed), e.Total)
	if len(e.Failed) > 0 {
		msg += " (" + strings.Join(e.Failed, ", ") + ")"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *ChartLoadError) Unwrap() error {
	return e.Cause
}

// RenderError represents every PDF variant failing
type RenderError struct {
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("render error: %s", e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// UploadError represents an artifact that could not be stored
type UploadError struct {
	Message string
	Cause   error
}

func (e *UploadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upload error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("upload error: %s", e.Message)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// GenerationError is the terminal failure of a report generation. Message is
// what callers and the job record see.
type GenerationError struct {
	Message  string
	Attempts int
	Cause    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("report generation failed after %d attempt(s): %s", e.Attempts, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// isNavigationClass reports whether err calls for the progressive retry delay.
func isNavigationClass(err error) bool {
	var navErr *NavigationError
	return errors.As(err, &navErr)
}
