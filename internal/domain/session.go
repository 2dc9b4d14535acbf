package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a session lives after its last access.
const DefaultSessionTTL = 30 * 24 * time.Hour

// IsTerminal reports whether no further transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// sessionTransitions lists, for each target status, the statuses it may be entered from.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusEnriching: {SessionStatusCreated},
	SessionStatusCompleted: {SessionStatusEnriching},
	SessionStatusFailed:    {SessionStatusCreated, SessionStatusEnriching},
}

// CanTransitionTo reports whether s -> next is a legal edge.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, from := range sessionTransitions[next] {
		if from == s {
			return true
		}
	}
	return false
}

// TransitionSources returns the statuses from which next may be entered.
// The result is empty for statuses that cannot be entered at all.
func TransitionSources(next SessionStatus) []SessionStatus {
	src := sessionTransitions[next]
	out := make([]SessionStatus, len(src))
	copy(out, src)
	return out
}

// Session is a batch of uploaded records progressing through enrichment.
type Session struct {
	ID             uuid.UUID
	Status         SessionStatus
	TotalCount     int
	EnrichedCount  int
	ErrorMessage   *string
	UploadMetadata map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      time.Time
}

// Validate checks the fields set by the ingestion boundary.
func (s *Session) Validate() error {
	var errs []FieldError
	if s.ID == uuid.Nil {
		errs = append(errs, FieldError{Field: "id", Message: "required"})
	}
	if !s.Status.IsValid() {
		errs = append(errs, FieldError{Field: "status", Message: "unknown status " + string(s.Status)})
	}
	if s.TotalCount < 0 {
		errs = append(errs, FieldError{Field: "total_count", Message: "must be >= 0"})
	}
	if s.EnrichedCount < 0 || s.EnrichedCount > s.TotalCount {
		errs = append(errs, FieldError{Field: "enriched_count", Message: "must be within [0, total_count]"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// Progress is the client-facing view of a session, read from its denormalized counters.
type Progress struct {
	SessionID     uuid.UUID
	Status        SessionStatus
	TotalCount    int
	EnrichedCount int
	ErrorMessage  *string
}

// Percent returns enrichment progress in [0, 100].
func (p Progress) Percent() float64 {
	if p.TotalCount == 0 {
		if p.Status == SessionStatusCompleted {
			return 100
		}
		return 0
	}
	return float64(p.EnrichedCount) * 100 / float64(p.TotalCount)
}
