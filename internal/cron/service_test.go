package cron

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agriconnect/agriconnect-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	held     bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held || f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "payment-expiry"}
	failure := &testJob{name: "outbox-retention", err: errors.New("boom")}
	lock := &fakeLock{}
	service := newTestService(t, lock, success, failure)

	err := service.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "outbox-retention") {
		t.Fatalf("expected failure naming the job, got %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job once, got %d and %d", success.runs, failure.runs)
	}
	if lock.acquired {
		t.Fatal("lock not released after the cycle")
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "payment-expiry"}
	service := newTestService(t, &fakeLock{held: true}, job)

	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran without the lock")
	}
}

type expiringLock struct {
	fakeLock
	extends int
}

func (e *expiringLock) Extend(context.Context) (bool, error) {
	e.extends++
	return false, nil
}

func TestRunOnceStopsWhenLeaseLost(t *testing.T) {
	first := &testJob{name: "payment-expiry"}
	second := &testJob{name: "outbox-retention"}
	lock := &expiringLock{}
	service := newTestService(t, lock, first, second)

	err := service.RunOnce(context.Background())
	if !errors.Is(err, errLeaseLost) {
		t.Fatalf("expected lease lost error, got %v", err)
	}
	if first.runs != 1 || second.runs != 0 {
		t.Fatalf("expected only the first job to run, got %d and %d", first.runs, second.runs)
	}
	if lock.extends != 1 {
		t.Fatalf("expected one extend attempt, got %d", lock.extends)
	}
}
