package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/jonathan/report-renderer/internal/pipeline"
	"github.com/jonathan/report-renderer/internal/schemas"
	"github.com/jonathan/report-renderer/internal/types"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string               `json:"error"`
	Details   []schemas.FieldError `json:"details,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// ChartResults lists which chart elements appeared.
type ChartResults struct {
	Loaded []string `json:"loaded"`
	Failed []string `json:"failed"`
}

// GenerateReportResponse is the success body of POST /generate-report.
type GenerateReportResponse struct {
	Success      bool         `json:"success"`
	URL          string       `json:"url"`
	Attempts     int          `json:"attempts"`
	ChartResults ChartResults `json:"chartResults"`
}

// CreateJobResponse is the body of POST /jobs.
type CreateJobResponse struct {
	JobID    string          `json:"jobId"`
	Status   types.JobStatus `json:"status"`
	Progress int             `json:"progress"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string           `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
	Uptime     float64          `json:"uptime"`
	Memory     MemoryStats      `json:"memory"`
	Processing ProcessingStats  `json:"processing"`
	Config     HealthConfigInfo `json:"config"`
}

// MemoryStats is a subset of runtime.MemStats, in bytes.
type MemoryStats struct {
	Alloc     uint64 `json:"alloc"`
	Sys       uint64 `json:"sys"`
	HeapInuse uint64 `json:"heapInuse"`
	NumGC     uint32 `json:"numGC"`
}

// ProcessingStats reports the generator's load.
type ProcessingStats struct {
	InFlight int64 `json:"inFlight"`
	Draining bool  `json:"draining"`
}

// HealthConfigInfo echoes the retry and timeout settings, timeouts in milliseconds.
type HealthConfigInfo struct {
	MaxRetries int              `json:"maxRetries"`
	Timeouts   map[string]int64 `json:"timeouts"`
}

// decodeBody reads the request body, checks it against the named schema, then
// decodes and validates it into dst.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema string, dst interface{ Validate() error }) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &ErrValidation{Message: "could not read request body: " + err.Error()}
	}
	if err := schemas.Validate(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &ErrValidation{Message: "invalid JSON: " + err.Error()}
	}
	return dst.Validate()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: errorMessage(err), Timestamp: s.now().UTC()}
	var schemaErr *schemas.ValidationError
	if errors.As(err, &schemaErr) {
		body.Error = "invalid request body"
		body.Details = schemaErr.Errors
	}
	s.jsonResponse(w, HTTPStatus(err), body)
}

// handleGenerateReport runs a report generation synchronously for an existing,
// unfinished job. The generator marks it Processing once the run is admitted.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateReportRequest
	if err := s.decodeBody(w, r, schemas.GenerateReport, &req); err != nil {
		s.writeError(w, err)
		return
	}
	log := s.logger.With("job_id", req.JobID, "brand_id", req.BrandID)
	job, ok := s.jobs.GetJob(r.Context(), req.JobID)
	if !ok {
		s.writeError(w, &ErrJobNotFound{JobID: req.JobID})
		return
	}
	if !job.Status.CanTransitionTo(types.JobStatusProcessing) {
		log.Warn("refusing to regenerate a finished job", "status", job.Status)
		s.writeError(w, &ErrJobTerminal{JobID: req.JobID, Status: job.Status})
		return
	}

	params := req.Params()
	params.FillMissing(job.ReportParams)
	log.Info("payload received",
		"campaigns", len(params.CampaignIDs),
		"locations", len(params.LocationIDs),
		"level", params.Level,
		"base_url", req.BaseURL,
	)

	// A disconnecting client must not abort a generation that is already writing job state.
	result, err := s.generator.Generate(context.WithoutCancel(r.Context()), pipeline.Request{
		JobID:     req.JobID,
		BaseURL:   req.BaseURL,
		Params:    params,
		Selectors: req.Selectors,
	})
	if err != nil {
		log.Error("report generation failed", "error", err)
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, GenerateReportResponse{
		Success:  true,
		URL:      result.URL,
		Attempts: result.Attempts,
		ChartResults: ChartResults{
			Loaded: nonNil(result.LoadedCharts),
			Failed: nonNil(result.FailedCharts),
		},
	})
}

// handleCreateJob creates a pending job from report parameters.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req types.CreateJobRequest
	if err := s.decodeBody(w, r, schemas.CreateJob, &req); err != nil {
		s.writeError(w, err)
		return
	}

	params := req.ReportParams
	params.Level = params.Level.Normalize()
	id, err := s.jobs.CreateJob(r.Context(), params)
	if err != nil {
		s.logger.Error("failed to create job", "brand_id", params.BrandID, "error", err)
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, CreateJobResponse{JobID: id, Status: types.JobStatusPending, Progress: 0})
}

// handleGetJob returns a job record for polling.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok := s.jobs.GetJob(r.Context(), id)
	if !ok {
		s.writeError(w, &ErrJobNotFound{JobID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleHealth reports liveness, memory, load and the effective retry/timeout settings.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	opts := s.generator.Options()

	s.jsonResponse(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: s.now().UTC(),
		Uptime:    time.Since(s.startedAt).Seconds(),
		Memory: MemoryStats{
			Alloc:     mem.Alloc,
			Sys:       mem.Sys,
			HeapInuse: mem.HeapInuse,
			NumGC:     mem.NumGC,
		},
		Processing: ProcessingStats{
			InFlight: s.generator.InFlight(),
			Draining: s.generator.Draining(),
		},
		Config: HealthConfigInfo{
			MaxRetries: opts.MaxRetries,
			Timeouts: map[string]int64{
				"navigation":         opts.NavigationTimeout.Milliseconds(),
				"fallbackNavigation": opts.FallbackNavigationTimeout.Milliseconds(),
				"pageReady":          opts.PageReadyTimeout.Milliseconds(),
				"chartWait":          opts.ChartWaitTimeout.Milliseconds(),
				"pdfGeneration":      opts.PDFTimeout.Milliseconds(),
			},
		},
	})
}

// handleDiagnoseURL probes a URL in a fresh browser. Navigation failures are
// reported in a 200 body; only a browser that cannot start is a 500.
func (s *Server) handleDiagnoseURL(w http.ResponseWriter, r *http.Request) {
	var req types.DiagnoseRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil || req.URL == "" {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "URL is required"})
		return
	}
	if err := schemas.Validate(schemas.DiagnoseURL, body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, &ErrValidation{Field: "url", Message: "must be an absolute URL"})
		return
	}
	if s.diagnoser == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "diagnostics are not available")
		return
	}

	s.logger.Info("diagnosing url", "url", req.URL)
	result, err := s.diagnoser.Diagnose(r.Context(), req.URL)
	if err != nil {
		s.jsonResponse(w, http.StatusInternalServerError, map[string]any{
			"success":   false,
			"error":     err.Error(),
			"timestamp": s.now().UTC(),
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
