package batch

import (
	"context"
	"testing"

	"registrar/internal/failures"
)

func TestAbandonedKeepsRealFailuresAfterCancel(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		res  Result
		want bool
	}{
		{"cancelled unit after cancel", cancelled, Result{Status: StatusFailed, Kind: failures.KindCancelled}, true},
		{"grading failure after cancel", cancelled, Result{Status: StatusFailed, Kind: failures.KindGrading}, false},
		{"render failure after cancel", cancelled, Result{Status: StatusFailed, Kind: failures.KindRendering}, false},
		{"success after cancel", cancelled, Result{Status: StatusSucceeded}, false},
		{"cancelled kind without cancel", context.Background(), Result{Status: StatusFailed, Kind: failures.KindCancelled}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := abandoned(tt.ctx, tt.res); got != tt.want {
				t.Fatalf("abandoned = %v, want %v", got, tt.want)
			}
		})
	}
}
