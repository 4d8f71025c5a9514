// Package queue runs background holdings refreshes on a bounded worker pool.
package queue

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeRefreshHoldings refetches a fund's disclosure and re-detects its relationship.
	JobTypeRefreshHoldings JobType = "refresh_holdings"
)

var (
	// ErrQueueFull is returned when the pool cannot accept more jobs.
	ErrQueueFull = errors.New("refresh queue is full")
	// ErrPoolStopped is returned for jobs submitted after Stop.
	ErrPoolStopped = errors.New("refresh pool stopped")
)

// Job represents a queued job
type Job struct {
	ID         string
	Type       JobType
	FundCode   string
	CreatedAt  time.Time
	Retries    int
	MaxRetries int
}

// Handler executes a job.
type Handler func(ctx context.Context, job *Job) error
