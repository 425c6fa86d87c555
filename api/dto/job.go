package dto

import (
	"time"

	"imageConverter/internal/jobs"
)

type ConvertResponse struct {
	Success   bool        `json:"success"`
	JobID     string      `json:"jobId"`
	Status    jobs.Status `json:"status"`
	StatusURL string      `json:"statusUrl"`
}

type StatusResponse struct {
	Success        bool          `json:"success"`
	JobID          string        `json:"jobId"`
	Status         jobs.Status   `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	ProcessingTime *int64        `json:"processingTime"`
	Results        *jobs.Results `json:"results,omitempty"`
	Error          string        `json:"error,omitempty"`
}

func NewStatusResponse(job *jobs.Job) *StatusResponse {
	return &StatusResponse{
		Success:        true,
		JobID:          job.ID,
		Status:         job.Status,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
		ProcessingTime: job.ProcessingTime,
		Results:        job.Results,
		Error:          job.Error,
	}
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}
