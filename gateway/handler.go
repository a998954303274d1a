package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vote-tally/tally"
	"vote-tally/tally/domain"
)

const logModule = "gateway"

type Handler struct {
	Bus          domain.Bus
	CastSubject  string
	TallySubject string
	// TallyTimeout limita a espera pela resposta do agregador. 0 usa 2s.
	TallyTimeout time.Duration
	Logger       *slog.Logger
}

type voteRequest struct {
	Candidate *uint64 `json:"candidate"`
}

type voteAccepted struct {
	Candidate uint64 `json:"candidate"`
}

// Routes monta o mux com POST /votes e GET /tally.
func (h Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /votes", h.castVote)
	mux.HandleFunc("GET /tally", h.fetchTally)
	return mux
}

func (h Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h Handler) castVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10))
	if err := dec.Decode(&req); err != nil || req.Candidate == nil {
		http.Error(w, "body must be {\"candidate\": <non-negative integer>}", http.StatusBadRequest)
		return
	}

	id := domain.CandidateID(*req.Candidate)
	if err := tally.CastVote(r.Context(), h.Bus, h.CastSubject, id); err != nil {
		h.logger().Error("cast vote publish failed",
			"event", "gateway_cast_failed",
			"module", logModule,
			"layer", "http",
			"candidate", uint64(id),
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusAccepted, voteAccepted{Candidate: uint64(id)})
}

func (h Handler) fetchTally(w http.ResponseWriter, r *http.Request) {
	timeout := h.TallyTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	res, err := tally.FetchTally(ctx, h.Bus, h.TallySubject)
	switch {
	case errors.Is(err, domain.ErrNoReply):
		http.Error(w, "no tally reply", http.StatusGatewayTimeout)
		return
	case err != nil:
		h.logger().Error("fetch tally failed",
			"event", "gateway_tally_failed",
			"module", logModule,
			"layer", "http",
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	if res.Instance != "" {
		w.Header().Set(tally.InstanceHeader, res.Instance)
	}
	writeJSON(w, http.StatusOK, res.Snapshot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
