package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pyshop/pyshop-backend/pkg/metrics"
)

type stubCartStore struct {
	expired       int64
	deleted       int64
	expireErr     error
	deleteErr     error
	lastCutoff    time.Time
	expireCalled  bool
	cleanupCalled bool
}

func (s *stubCartStore) ExpireOverdue(_ context.Context, _ time.Time) (int64, error) {
	s.expireCalled = true
	return s.expired, s.expireErr
}

func (s *stubCartStore) DeleteRetired(_ context.Context, cutoff time.Time) (int64, error) {
	s.cleanupCalled = true
	s.lastCutoff = cutoff
	return s.deleted, s.deleteErr
}

func TestCartExpiryJob(t *testing.T) {
	store := &stubCartStore{expired: 4}
	m := metrics.NewCronJobMetrics(prometheus.NewRegistry())
	job, err := NewCartExpiryJob(store, testLogger(), m)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "cart_expiry" {
		t.Fatalf("unexpected name %q", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !store.expireCalled {
		t.Fatal("expected the store sweep to be invoked")
	}
}

func TestCartExpiryJobPropagatesError(t *testing.T) {
	store := &stubCartStore{expireErr: errors.New("db down")}
	job, err := NewCartExpiryJob(store, testLogger(), nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error to propagate")
	}
}

func TestCartCleanupJobCutoff(t *testing.T) {
	store := &stubCartStore{deleted: 2}
	retention := 720 * time.Hour
	job, err := NewCartCleanupJob(store, testLogger(), nil, retention)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "cart_cleanup" {
		t.Fatalf("unexpected name %q", job.Name())
	}

	before := time.Now().UTC().Add(-retention)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	after := time.Now().UTC().Add(-retention)
	if store.lastCutoff.Before(before) || store.lastCutoff.After(after) {
		t.Fatalf("cutoff %v not within retention window", store.lastCutoff)
	}
}

func TestCartCleanupJobValidation(t *testing.T) {
	if _, err := NewCartCleanupJob(&stubCartStore{}, testLogger(), nil, 0); err == nil {
		t.Fatal("expected error for zero retention")
	}
	if _, err := NewCartCleanupJob(nil, testLogger(), nil, time.Hour); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewCartExpiryJob(&stubCartStore{}, nil, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
