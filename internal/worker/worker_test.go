package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"spendlens/internal/amqp"
	"spendlens/internal/analysis"
	"spendlens/internal/log"
	"spendlens/internal/services"
)

type fakeAnalyzer struct {
	mu   sync.Mutex
	reqs []services.AnalyzeRequest
	err  error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req services.AnalyzeRequest) (analysis.StoredRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return analysis.StoredRun{}, f.err
	}
	return analysis.StoredRun{Metadata: analysis.RunMetadata{ID: "run-1", Trigger: req.Trigger, Status: analysis.RunCompleted}}, nil
}

func TestHandleAnalysisRequest(t *testing.T) {
	tests := []struct {
		name        string
		trigger     string
		wantTrigger string
	}{
		{"message trigger kept", "manual", "manual"},
		{"empty trigger defaults", "", analysis.TriggerMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAnalyzer{}
			w := NewAnalysisWorker(fa, log.Discard())
			msg := &amqp.AnalysisRequestMessage{RequestID: "req-1", Trigger: tt.trigger}

			if err := w.HandleAnalysisRequest(context.Background(), msg); err != nil {
				t.Fatalf("HandleAnalysisRequest() error = %v", err)
			}
			if len(fa.reqs) != 1 {
				t.Fatalf("expected one run, got %d", len(fa.reqs))
			}
			if fa.reqs[0].Trigger != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", fa.reqs[0].Trigger, tt.wantTrigger)
			}
			if fa.reqs[0].Rows != nil {
				t.Error("queued requests must analyze the configured ledger")
			}
		})
	}
}

func TestHandleAnalysisRequest_Error(t *testing.T) {
	boom := errors.New("ledger unavailable")
	w := NewAnalysisWorker(&fakeAnalyzer{err: boom}, log.Discard())

	err := w.HandleAnalysisRequest(context.Background(), &amqp.AnalysisRequestMessage{RequestID: "req-9"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if !strings.Contains(err.Error(), "req-9") {
		t.Errorf("error should name the request: %v", err)
	}
}

func TestRunScheduled(t *testing.T) {
	fa := &fakeAnalyzer{}
	w := NewAnalysisWorker(fa, log.Discard())
	w.RunScheduled(context.Background())

	if len(fa.reqs) != 1 || fa.reqs[0].Trigger != analysis.TriggerSchedule {
		t.Fatalf("unexpected requests: %+v", fa.reqs)
	}

	// failures are logged, not returned
	fa.err = errors.New("boom")
	w.RunScheduled(context.Background())
	if len(fa.reqs) != 2 {
		t.Errorf("expected second attempt, got %d", len(fa.reqs))
	}
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	w := NewAnalysisWorker(&fakeAnalyzer{}, log.Discard())
	for _, spec := range []string{"", "not a cron", "0 0 * * * *"} {
		if _, err := NewScheduler(spec, w, log.Discard()); err == nil {
			t.Errorf("NewScheduler(%q) should fail", spec)
		}
	}
}

func TestScheduler_Lifecycle(t *testing.T) {
	w := NewAnalysisWorker(&fakeAnalyzer{}, log.Discard())
	s, err := NewScheduler("*/5 * * * *", w, log.Discard())
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if !s.Next().IsZero() {
		t.Error("stopped scheduler should report no next run")
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrSchedulerRunning) {
		t.Errorf("second Start() error = %v, want ErrSchedulerRunning", err)
	}

	next := s.Next()
	if next.IsZero() || next.Sub(time.Now()) > 5*time.Minute {
		t.Errorf("next run = %v", next)
	}
	if next.Minute()%5 != 0 {
		t.Errorf("next run minute = %d, want a multiple of 5", next.Minute())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if !s.Next().IsZero() {
		t.Error("stopped scheduler should report no next run")
	}
}
