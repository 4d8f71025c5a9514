package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/fundval/internal/clientdata"
	"github.com/aristath/fundval/internal/modules/holdings"
	"github.com/aristath/fundval/internal/modules/relationships"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MarkerStore holds the short-lived refresh markers shared by all callers.
type MarkerStore interface {
	Claim(table, key string, data interface{}, ttl time.Duration) (bool, error)
	Delete(table, key string) error
}

// HoldingsRefresher refetches a fund's disclosure.
type HoldingsRefresher interface {
	Refresh(ctx context.Context, fundCode string) (*holdings.Snapshot, error)
}

// RelationshipDetector re-runs relationship detection after a refresh.
type RelationshipDetector interface {
	Invalidate(fundCode string)
	Resolve(fundCode string, fundHoldings []holdings.Holding, targetETF string) (*relationships.Relationship, error)
}

// Enqueuer accepts jobs.
type Enqueuer interface {
	Enqueue(job *Job) error
}

type refreshMarker struct {
	JobID       string    `json:"job_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Refresher coalesces holdings refresh requests. The first caller for a fund
// claims a marker and queues the job; later callers within the marker TTL
// return immediately.
type Refresher struct {
	markers   MarkerStore
	queue     Enqueuer
	markerTTL time.Duration
	log       zerolog.Logger
}

// NewRefresher creates a new refresher
func NewRefresher(markers MarkerStore, queue Enqueuer, markerTTL time.Duration, log zerolog.Logger) *Refresher {
	return &Refresher{
		markers:   markers,
		queue:     queue,
		markerTTL: markerTTL,
		log:       log.With().Str("component", "refresher").Logger(),
	}
}

// Submit queues a refresh for fundCode. queued is false when a refresh is
// already pending inside the marker window.
func (r *Refresher) Submit(fundCode string) (jobID string, queued bool, err error) {
	jobID = uuid.New().String()
	marker := refreshMarker{JobID: jobID, RequestedAt: time.Now()}

	claimed, err := r.markers.Claim(clientdata.TableRefreshMarkers, fundCode, marker, r.markerTTL)
	if err != nil {
		return "", false, fmt.Errorf("failed to claim refresh marker: %w", err)
	}
	if !claimed {
		return "", false, nil
	}

	job := &Job{
		ID:         jobID,
		Type:       JobTypeRefreshHoldings,
		FundCode:   fundCode,
		CreatedAt:  marker.RequestedAt,
		MaxRetries: 1,
	}
	if err := r.queue.Enqueue(job); err != nil {
		// Release the marker so a later request can try again
		if delErr := r.markers.Delete(clientdata.TableRefreshMarkers, fundCode); delErr != nil {
			r.log.Warn().Err(delErr).Str("fund_code", fundCode).Msg("Failed to release refresh marker")
		}
		return "", false, err
	}

	r.log.Debug().Str("fund_code", fundCode).Str("job_id", jobID).Msg("Holdings refresh queued")
	return jobID, true, nil
}

// Request is the fire-and-forget form of Submit.
func (r *Refresher) Request(fundCode string) bool {
	_, queued, err := r.Submit(fundCode)
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			r.log.Warn().Str("fund_code", fundCode).Msg("Refresh queue full, request dropped")
		} else {
			r.log.Error().Err(err).Str("fund_code", fundCode).Msg("Failed to request refresh")
		}
		return false
	}
	return queued
}

// NewRefreshHandler returns the job handler that refreshes holdings and then
// re-detects the fund's relationship with the fresh disclosure.
func NewRefreshHandler(holdingsSvc HoldingsRefresher, detector RelationshipDetector, log zerolog.Logger) Handler {
	log = log.With().Str("job", string(JobTypeRefreshHoldings)).Logger()

	return func(ctx context.Context, job *Job) error {
		snapshot, err := holdingsSvc.Refresh(ctx, job.FundCode)
		if err != nil {
			return err
		}

		detector.Invalidate(job.FundCode)
		rel, err := detector.Resolve(job.FundCode, snapshot.Holdings, snapshot.TargetETF)
		if err != nil {
			log.Warn().Err(err).Str("fund_code", job.FundCode).Msg("Relationship detection failed")
			return nil
		}

		event := log.Info().
			Str("fund_code", job.FundCode).
			Str("report_date", snapshot.ReportDate).
			Int("holdings", len(snapshot.Holdings))
		if rel != nil {
			event = event.Str("parent_code", rel.ParentCode).Str("relation_type", string(rel.Type))
		}
		event.Msg("Fund refreshed")
		return nil
	}
}
