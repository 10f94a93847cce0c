package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/pkg/jobs"
)

// Release retry results reported to metrics.
const (
	releaseRetryScheduled = "scheduled"
	releaseRetryReleased  = "released"
	releaseRetrySkipped   = "skipped"
	releaseRetryDropped   = "dropped"
)

type seatRelease struct {
	SectionID string
	StudentID string
}

// SeatReleaseConfig tunes the background release worker.
type SeatReleaseConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// SeatReleaseRetrier returns seats whose immediate release failed after a compensation or a
// cancellation. The ledger keeps the seat while the student holds an ACTIVE record in the section.
type SeatReleaseRetrier struct {
	ledger  CapacityLedger
	metrics *MetricsService
	logger  *zap.Logger
	queue   *jobs.Queue[seatRelease]
}

// NewSeatReleaseRetrier builds a retrier; call Start before scheduling.
func NewSeatReleaseRetrier(ledger CapacityLedger, metrics *MetricsService, cfg SeatReleaseConfig, log *zap.Logger) *SeatReleaseRetrier {
	if log == nil {
		log = zap.NewNop()
	}
	r := &SeatReleaseRetrier{
		ledger:  ledger,
		metrics: metrics,
		logger:  log,
	}
	r.queue = jobs.New("seat-release", r.release, jobs.Config{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     log,
		OnDrop: func(payload any, err error) {
			metrics.RecordReleaseRetry(releaseRetryDropped)
			if job, ok := payload.(seatRelease); ok {
				log.Error("seat release abandoned, ledger needs reconciliation",
					zap.String("section_id", job.SectionID),
					zap.String("student_id", job.StudentID),
					zap.Error(err),
				)
			}
		},
	})
	return r
}

// Start launches the workers.
func (r *SeatReleaseRetrier) Start(ctx context.Context) {
	r.queue.Start(ctx)
}

// Stop halts the workers; releases still waiting are logged as abandoned.
func (r *SeatReleaseRetrier) Stop() {
	r.queue.Stop()
}

// Wait blocks until every scheduled release has completed or been abandoned.
func (r *SeatReleaseRetrier) Wait() {
	r.queue.Wait()
}

// Schedule queues a release of the student's seat in the section.
func (r *SeatReleaseRetrier) Schedule(sectionID, studentID string) error {
	if err := r.queue.Enqueue(seatRelease{SectionID: sectionID, StudentID: studentID}); err != nil {
		return fmt.Errorf("schedule seat release: %w", err)
	}
	r.metrics.RecordReleaseRetry(releaseRetryScheduled)
	return nil
}

func (r *SeatReleaseRetrier) release(ctx context.Context, job seatRelease) error {
	released, err := r.ledger.Release(ctx, job.SectionID, job.StudentID)
	if err != nil {
		return err
	}
	if !released {
		r.metrics.RecordReleaseRetry(releaseRetrySkipped)
		r.logger.Info("seat release skipped, seat already returned or student re-enrolled",
			zap.String("section_id", job.SectionID),
			zap.String("student_id", job.StudentID),
		)
		return nil
	}
	r.metrics.RecordReleaseRetry(releaseRetryReleased)
	r.logger.Info("deferred seat release succeeded",
		zap.String("section_id", job.SectionID),
		zap.String("student_id", job.StudentID),
	)
	return nil
}
