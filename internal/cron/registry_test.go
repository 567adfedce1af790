package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry.Register(jobA)
	registry.Register(jobB)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	// ensure caller cannot mutate internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryIgnoresNilAndDuplicateNames(t *testing.T) {
	registry := NewRegistry(nil, &stubJob{name: "a"})
	registry.Register(&stubJob{name: "a"})
	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
}

func TestRegistryDueHonorsCadence(t *testing.T) {
	everyCycle := &stubJob{name: "every-cycle"}
	daily := &stubJob{name: "daily"}
	registry := NewRegistry(everyCycle)
	registry.RegisterEvery(daily, 24*time.Hour)

	now := time.Now()
	first := registry.Due(now)
	if len(first) != 2 {
		t.Fatalf("first cycle should run everything, got %d jobs", len(first))
	}

	second := registry.Due(now.Add(5 * time.Minute))
	if len(second) != 1 || second[0] != everyCycle {
		t.Fatalf("daily job must wait out its cadence, got %d jobs", len(second))
	}

	third := registry.Due(now.Add(25 * time.Hour))
	if len(third) != 2 {
		t.Fatalf("daily job is due again after its cadence, got %d jobs", len(third))
	}
}
