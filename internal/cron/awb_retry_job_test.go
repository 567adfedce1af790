package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
)

type fakeAWBRetrier struct {
	assigned int
	err      error
	calls    int
}

func (f *fakeAWBRetrier) RetryPendingAWBs(ctx context.Context) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.assigned, nil
}

func TestAWBRetryJobRuns(t *testing.T) {
	retrier := &fakeAWBRetrier{assigned: 3}
	job, err := NewAWBRetryJob(AWBRetryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Shipping: retrier,
	})
	if err != nil {
		t.Fatalf("NewAWBRetryJob: %v", err)
	}
	if job.Name() != "awb-retry" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if retrier.calls != 1 {
		t.Fatalf("expected one retry pass, got %d", retrier.calls)
	}
}

func TestAWBRetryJobPropagatesError(t *testing.T) {
	job, err := NewAWBRetryJob(AWBRetryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Shipping: &fakeAWBRetrier{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("NewAWBRetryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestAWBRetryJobRequiresDependencies(t *testing.T) {
	if _, err := NewAWBRetryJob(AWBRetryJobParams{Shipping: &fakeAWBRetrier{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewAWBRetryJob(AWBRetryJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected shipping error")
	}
}
