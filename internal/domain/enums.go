package domain

// SessionStatus is the lifecycle state of an upload session.
type SessionStatus string

const (
	SessionStatusCreated   SessionStatus = "created"
	SessionStatusEnriching SessionStatus = "enriching"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

func (s SessionStatus) String() string { return string(s) }

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusCreated, SessionStatusEnriching, SessionStatusCompleted, SessionStatusFailed:
		return true
	}
	return false
}

// SkipReason classifies why a record was left unenriched in a pass.
// It prefixes the stored last_enrich_error.
type SkipReason string

const (
	SkipReasonNotFound    SkipReason = "not_found"
	SkipReasonRateLimited SkipReason = "rate_limited"
	SkipReasonTransient   SkipReason = "transient"
	SkipReasonFatal       SkipReason = "fatal"
)

func (r SkipReason) String() string { return string(r) }

func (r SkipReason) IsValid() bool {
	switch r {
	case SkipReasonNotFound, SkipReasonRateLimited, SkipReasonTransient, SkipReasonFatal:
		return true
	}
	return false
}
