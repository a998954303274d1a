package application

import (
	"context"
	"time"

	"vote-tally/tally/domain"
)

// AdmissionService decide se um eleitor pode votar agora.
// Não sabe nada sobre HTTP, apenas devolve uma Admission.
type AdmissionService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s AdmissionService) Decide(key domain.VoterKey) domain.Admission {
	if s.Store == nil {
		return domain.Admission{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Admission{Allowed: true}
	}
	return domain.Admission{Allowed: false, RetryAfter: s.RetryAfter}
}

// SlotGate limita requisições simultâneas com espera opcional.
//   - AcquireTimeout <= 0: espera até o ctx encerrar.
//   - AcquireTimeout > 0: desiste após o timeout.
type SlotGate struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

func (g SlotGate) Acquire(ctx context.Context) (func(), bool) {
	if g.Pool == nil {
		return func() {}, true
	}
	if g.AcquireTimeout <= 0 {
		return g.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, g.AcquireTimeout)
	defer cancel()
	return g.Pool.Acquire(acqCtx)
}
