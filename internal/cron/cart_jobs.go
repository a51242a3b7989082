package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/pyshop/pyshop-backend/pkg/logger"
	"github.com/pyshop/pyshop-backend/pkg/metrics"
)

// cartStore is the slice of the cart repository the jobs need.
type cartStore interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
	DeleteRetired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CartExpiryJob sweeps active session carts whose TTL has lapsed. Lazy expiry
// on the request path catches carts as they are touched; this job catches the
// ones nobody comes back for.
type CartExpiryJob struct {
	store   cartStore
	logg    *logger.Logger
	metrics *metrics.CronJobMetrics
}

// NewCartExpiryJob builds the expiry sweep job.
func NewCartExpiryJob(store cartStore, logg *logger.Logger, m *metrics.CronJobMetrics) (*CartExpiryJob, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &CartExpiryJob{store: store, logg: logg, metrics: m}, nil
}

func (j *CartExpiryJob) Name() string {
	return "cart_expiry"
}

func (j *CartExpiryJob) Run(ctx context.Context) error {
	expired, err := j.store.ExpireOverdue(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("expire overdue carts: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(j.Name(), expired)
	}
	j.logg.Info(j.logg.WithField(ctx, "expired_carts", expired), "expiry sweep complete")
	return nil
}

// CartCleanupJob deletes expired and converted carts once they have served
// their audit purpose.
type CartCleanupJob struct {
	store     cartStore
	logg      *logger.Logger
	metrics   *metrics.CronJobMetrics
	retention time.Duration
}

// NewCartCleanupJob builds the retired-cart deletion job.
func NewCartCleanupJob(store cartStore, logg *logger.Logger, m *metrics.CronJobMetrics, retention time.Duration) (*CartCleanupJob, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	return &CartCleanupJob{store: store, logg: logg, metrics: m, retention: retention}, nil
}

func (j *CartCleanupJob) Name() string {
	return "cart_cleanup"
}

func (j *CartCleanupJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)
	deleted, err := j.store.DeleteRetired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete retired carts: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(j.Name(), deleted)
	}
	j.logg.Info(j.logg.WithField(ctx, "deleted_carts", deleted), "cleanup sweep complete")
	return nil
}
