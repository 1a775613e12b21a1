package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsBadSpec(t *testing.T) {
	t.Parallel()

	if _, err := New("every day", nil, nil); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
	if _, err := New("@every 6h", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.ErrorLevel)
	var order []string
	jobs := []Job{
		{Name: "format_candidates", Run: func(context.Context) error {
			order = append(order, "format_candidates")
			return errors.New("bad status: 500")
		}},
		{Name: "format_requisitions", Run: func(context.Context) error {
			order = append(order, "format_requisitions")
			return nil
		}},
	}

	s, err := New("@hourly", jobs, zap.New(core))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if !s.RunOnce(context.Background()) {
		t.Fatalf("expected the cycle to run")
	}
	if len(order) != 2 {
		t.Fatalf("expected both jobs to run, got %v", order)
	}
	if observed.FilterMessage("job failed").Len() != 1 {
		t.Fatalf("expected one failure log")
	}
}

func TestRunOnceSkipsOverlappingCycles(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	s, err := New("@hourly", []Job{{Name: "slow", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunOnce(context.Background())
	}()

	<-started
	if s.RunOnce(context.Background()) {
		t.Fatalf("expected overlapping cycle to be skipped")
	}
	close(release)
	wg.Wait()
}

func TestStartRunsImmediately(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)
	s, err := New("@every 1h", []Job{{Name: "tick", Run: func(context.Context) error {
		ran <- struct{}{}
		return nil
	}}}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not run on start")
	}
}
