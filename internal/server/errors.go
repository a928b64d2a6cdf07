package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/report-renderer/internal/pipeline"
	"github.com/jonathan/report-renderer/internal/schemas"
	"github.com/jonathan/report-renderer/internal/types"
)

// ErrJobNotFound indicates the referenced job does not exist or could not be read
type ErrJobNotFound struct {
	JobID string
}

func (e *ErrJobNotFound) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

// ErrJobTerminal indicates the job already finished and cannot be generated again
type ErrJobTerminal struct {
	JobID  string
	Status types.JobStatus
}

func (e *ErrJobTerminal) Error() string {
	return fmt.Sprintf("job %s is already %s", e.JobID, e.Status)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		schemaErr     *schemas.ValidationError
		fieldErrs     validator.ValidationErrors
		notFound      *ErrJobNotFound
		terminal      *ErrJobTerminal
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &schemaErr), errors.As(err, &fieldErrs):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &terminal):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is what a caller sees for err: the terminal message for a failed
// generation, the error text otherwise.
func errorMessage(err error) string {
	var genErr *pipeline.GenerationError
	if errors.As(err, &genErr) {
		return genErr.Message
	}
	return err.Error()
}
