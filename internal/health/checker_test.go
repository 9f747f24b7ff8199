package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type stubEngine struct {
	err   error
	calls atomic.Int64
}

func (s *stubEngine) Ready(ctx context.Context) error {
	s.calls.Add(1)
	return s.err
}

func TestChecker_Liveness(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil)

	response := checker.Liveness(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness_NoEngine(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil)

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}

	if response.Checks == nil {
		t.Fatal("Expected checks to be present")
	}

	engineCheck, ok := response.Checks["engine"]
	if !ok {
		t.Fatal("Expected engine check to be present")
	}

	if engineCheck.Status != StatusUnhealthy {
		t.Errorf("Expected engine check to be unhealthy, got %s", engineCheck.Status)
	}
}

func TestChecker_Readiness_EngineReady(t *testing.T) {
	t.Parallel()
	checker := NewChecker(&stubEngine{})

	response := checker.Readiness(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness_EngineFailing(t *testing.T) {
	t.Parallel()
	checker := NewChecker(&stubEngine{err: errors.New("engine is closed")})

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}
	if got := response.Checks["engine"].Message; got != "engine is closed" {
		t.Errorf("Expected engine check message, got %q", got)
	}
}

func TestChecker_Readiness_ShuttingDown(t *testing.T) {
	t.Parallel()
	checker := NewChecker(&stubEngine{})
	checker.SetShuttingDown()

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status during shutdown, got %s", response.Status)
	}
	if _, ok := response.Checks["shutdown"]; !ok {
		t.Error("Expected shutdown check to be present")
	}
}

func TestChecker_Readiness_CachesResult(t *testing.T) {
	t.Parallel()
	engine := &stubEngine{}
	checker := NewChecker(engine)

	for range 5 {
		if response := checker.Readiness(context.Background()); !response.IsHealthy() {
			t.Fatalf("Expected healthy status, got %s", response.Status)
		}
	}

	if got := engine.calls.Load(); got != 1 {
		t.Errorf("Expected 1 engine probe for back-to-back readiness checks, got %d", got)
	}
}

func TestResponse_IsHealthy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"healthy", StatusHealthy, true},
		{"unhealthy", StatusUnhealthy, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			response := &Response{Status: tt.status}
			if response.IsHealthy() != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", response.IsHealthy(), tt.expected)
			}
		})
	}
}
