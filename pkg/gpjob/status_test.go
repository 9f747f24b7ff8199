package gpjob

import "testing"

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status Status
		want   bool
	}{
		{StatusCreated, false},
		{StatusSubmitting, false},
		{StatusStarted, false},
		{StatusPaused, false},
		{StatusCancelingRequested, false},
		{StatusSucceeded, true},
		{StatusFailed, true},
		{StatusCanceled, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
