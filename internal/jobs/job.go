package jobs

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo enforces queued -> processing -> completed|failed.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

type Job struct {
	ID             string     `json:"id"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	OriginalName   string     `json:"originalName"`
	OriginalSize   int64      `json:"originalSize"`
	ImageData      []byte     `json:"imageData,omitempty"`
	ProcessingTime *int64     `json:"processingTime,omitempty"`
	Results        *Results   `json:"results,omitempty"`
	Error          string     `json:"error,omitempty"`
	LeaseExpiresAt *time.Time `json:"leaseExpiresAt,omitempty"`
}

type Variant struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
	Size     int    `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type PreservedMetadata struct {
	HasGPS       bool   `json:"hasGPS"`
	HasTimestamp bool   `json:"hasTimestamp"`
	Timestamp    string `json:"timestamp,omitempty"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type Results struct {
	Thumbnail         Variant           `json:"thumbnail"`
	FullSize          Variant           `json:"fullSize"`
	OriginalSize      int64             `json:"originalSize"`
	PreservedMetadata PreservedMetadata `json:"preservedMetadata"`
}

// Patch is the delta accepted by Registry.Update. Nil fields are left untouched.
type Patch struct {
	Status         *Status
	ProcessingTime *int64
	Results        *Results
	Error          *string
}

func Processing() Patch {
	s := StatusProcessing
	return Patch{Status: &s}
}

func Completed(results *Results, elapsed time.Duration) Patch {
	s := StatusCompleted
	ms := elapsed.Milliseconds()
	return Patch{Status: &s, Results: results, ProcessingTime: &ms}
}

func Failed(reason string, elapsed time.Duration) Patch {
	s := StatusFailed
	ms := elapsed.Milliseconds()
	return Patch{Status: &s, Error: &reason, ProcessingTime: &ms}
}

// apply merges p into j and checks the result against the lifecycle rules.
func (j *Job) apply(p Patch, now time.Time) error {
	if j.Status.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, j.ID, j.Status)
	}

	if p.Status != nil && *p.Status != j.Status {
		if !j.Status.CanTransitionTo(*p.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, *p.Status)
		}
		j.Status = *p.Status
	}
	if p.ProcessingTime != nil {
		j.ProcessingTime = p.ProcessingTime
	}
	if p.Results != nil {
		j.Results = p.Results
	}
	if p.Error != nil {
		j.Error = *p.Error
	}

	switch j.Status {
	case StatusCompleted:
		if j.Results == nil {
			return fmt.Errorf("%w: completed job %s has no results", ErrInvalidTransition, j.ID)
		}
		j.Error = ""
		j.ImageData = nil
	case StatusFailed:
		if j.Error == "" {
			return fmt.Errorf("%w: failed job %s has no error", ErrInvalidTransition, j.ID)
		}
		j.Results = nil
		j.ImageData = nil
	default:
		if j.Results != nil || j.Error != "" {
			return fmt.Errorf("%w: %s job %s cannot carry an outcome", ErrInvalidTransition, j.Status, j.ID)
		}
	}

	j.UpdatedAt = now
	return nil
}
