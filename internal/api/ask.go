package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/nyashahama/hazard-query-backend/internal/orchestrator"
)

// ─── POST /api/ask ────────────────────────────────────────────────────────────

type askRequest struct {
	Query string `json:"query"`
}

// truncatedNotice is appended when the answer stream fails part way. The
// status line has already gone out, so this is the only signal left.
const truncatedNotice = "\n\n_The answer was interrupted. Please try again._\n"

// handleAsk answers a hazard question as a streamed markdown body. Each chunk
// is flushed as it arrives. A client disconnect cancels the request context,
// which aborts the upstream model and database work.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}

	q := strings.TrimSpace(req.Query)
	if q == "" {
		respondErr(w, http.StatusBadRequest, "query is required")
		return
	}
	if utf8.RuneCountInString(q) > s.cfg.MaxQueryLength {
		respondErr(w, http.StatusBadRequest, "query is too long")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	answer, err := s.asker.Ask(ctx, q)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnavailable) {
			s.logger.Warn("ask: unavailable", "error", err, logField(r))
			respondErr(w, http.StatusServiceUnavailable, "the service cannot answer right now, please try again later")
			return
		}
		s.respondInternalErr(w, r, err)
		return
	}
	defer answer.Stream.Close()

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Ask-ID", answer.ID.String())
	w.Header().Set("X-Query-Phase", string(answer.Phase))
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for answer.Stream.Next() {
		if _, err := io.WriteString(w, answer.Stream.Chunk()); err != nil {
			s.logger.Debug("ask: client went away", "ask_id", answer.ID, "error", err, logField(r))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := answer.Stream.Err(); err != nil {
		s.logger.Warn("ask: stream failed",
			"ask_id", answer.ID,
			"phase", answer.Phase,
			"error", err,
			logField(r),
		)
		if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			_, _ = io.WriteString(w, truncatedNotice)
		}
	}
}
