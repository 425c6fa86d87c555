package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"imageConverter/api/dto"
	"imageConverter/api/middleware"
	"imageConverter/api/validation"
	"imageConverter/internal/jobs"
)

const (
	FormField = "image"

	// room for multipart boundaries and headers on top of the file itself
	multipartOverhead = 1 << 20
	maxMemory         = 32 << 20
)

type JobService interface {
	Submit(ctx context.Context, originalName string, data []byte) (*jobs.Job, error)
	GetStatus(ctx context.Context, id string) (*jobs.Job, error)
	Health(ctx context.Context) error
}

type JobHandler struct {
	service     JobService
	maxFileSize int64
	logger      *zap.Logger
}

func NewJobHandler(service JobService, maxFileSize int64, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		service:     service,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

func (h *JobHandler) Convert(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(w, "File too large", err, traceID, http.StatusRequestEntityTooLarge)
			return
		}
		h.handleError(w, "No image file provided", err, traceID, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(FormField)
	if err != nil {
		h.handleError(w, "No image file provided", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		h.handleError(w, "File too large", validation.ErrFileTooLarge, traceID, http.StatusRequestEntityTooLarge)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		h.handleError(w, "Failed to read file", err, traceID, http.StatusBadRequest)
		return
	}

	if _, err := validation.ValidateUpload(data, h.maxFileSize); err != nil {
		if errors.Is(err, validation.ErrFileTooLarge) {
			h.handleError(w, "File too large", err, traceID, http.StatusRequestEntityTooLarge)
			return
		}
		h.handleError(w, "Invalid image file", err, traceID, http.StatusBadRequest)
		return
	}

	job, err := h.service.Submit(r.Context(), filepath.Base(header.Filename), data)
	if err != nil {
		if errors.Is(err, jobs.ErrStoreUnavailable) {
			h.handleError(w, "Storage unavailable", err, traceID, http.StatusServiceUnavailable)
			return
		}
		h.handleError(w, "Failed to submit job", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Image accepted",
		zap.String("trace_id", traceID),
		zap.String("job_id", job.ID),
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(data)),
	)

	h.respondJSON(w, http.StatusAccepted, dto.ConvertResponse{
		Success:   true,
		JobID:     job.ID,
		Status:    job.Status,
		StatusURL: "/status/" + job.ID,
	})
}

func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		h.handleError(w, "Job ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	job, err := h.service.GetStatus(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			h.handleError(w, "Job not found", err, traceID, http.StatusNotFound)
		case errors.Is(err, jobs.ErrStoreUnavailable):
			h.handleError(w, "Storage unavailable", err, traceID, http.StatusServiceUnavailable)
		default:
			h.handleError(w, "Failed to get job status", err, traceID, http.StatusInternalServerError)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, dto.NewStatusResponse(job))
}

func (h *JobHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		h.respondJSON(w, http.StatusServiceUnavailable, dto.HealthResponse{Status: "degraded", Store: "unavailable"})
		return
	}
	h.respondJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok", Store: "connected"})
}

func (h *JobHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	log := h.logger.Warn
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log(message,
		zap.String("trace_id", traceID),
		zap.Int("status", status),
		zap.Error(err),
	)

	h.respondJSON(w, status, dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func (h *JobHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
