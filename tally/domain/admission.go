package domain

import "time"

// VoterKey identifica quem está votando na borda HTTP (header, IP, ...).
type VoterKey string

// Limiter decide se uma ação é permitida agora.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por eleitor.
// A implementação pode manter cache, TTL, etc.
type LimiterStore interface {
	Get(VoterKey) Limiter
}

type Admission struct {
	Allowed bool
	// RetryAfter vai no header Retry-After quando o voto é recusado.
	RetryAfter time.Duration
}
