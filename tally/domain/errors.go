package domain

import "errors"

var (
	// ErrNotFound é o "não encontrado" esperado do CounterStore (primeiro voto).
	ErrNotFound = errors.New("counter not found")
	// ErrConflict sinaliza que a revisão lida não é mais a atual.
	ErrConflict         = errors.New("counter revision conflict")
	ErrCorruptCount     = errors.New("stored vote count is corrupt")
	ErrCountOverflow    = errors.New("vote count overflow")
	ErrMalformedPayload = errors.New("malformed candidate payload")
	ErrMalformedKey     = errors.New("malformed candidate key")
	ErrNoReply          = errors.New("no tally reply")
	ErrNoConsumerGroup  = errors.New("consumer group name is required")
)
