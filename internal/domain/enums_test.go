package domain

import "testing"

func TestSessionStatus_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status SessionStatus
		want   string
	}{
		{SessionStatusCreated, "created"},
		{SessionStatusEnriching, "enriching"},
		{SessionStatusCompleted, "completed"},
		{SessionStatusFailed, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := tt.status.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if !tt.status.IsValid() {
				t.Errorf("%q should be valid", tt.status)
			}
		})
	}
}

func TestSkipReason_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason SkipReason
		want   bool
	}{
		{SkipReasonNotFound, true},
		{SkipReasonRateLimited, true},
		{SkipReasonTransient, true},
		{SkipReasonFatal, true},
		{SkipReason("NOT_FOUND"), false},
		{SkipReason(""), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			t.Parallel()
			if got := tt.reason.IsValid(); got != tt.want {
				t.Errorf("SkipReason(%q).IsValid() = %v, want %v", tt.reason, got, tt.want)
			}
		})
	}
}
