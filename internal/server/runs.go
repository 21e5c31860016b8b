package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"slidesmith-backend/internal/pipeline"
	"slidesmith-backend/internal/types"
)

const runTimeout = 10 * time.Minute

// handleCreateRun validates the request, starts the pipeline in the
// background and returns the run id immediately. Progress is polled with
// GET /api/runs/{runId}.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req types.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := getOrCreateSessionID(r, w)
	gen := req.GenerationRequest.WithDefaults(s.defaultProvider)
	if err := gen.Validate(); err != nil {
		s.writeAppError(w, err)
		return
	}

	id := uuid.NewString()
	progress := pipeline.NewProgress()
	ctx, cancel := context.WithTimeout(s.baseCtx, runTimeout)
	s.store.StartRun(id, sid, gen, progress, cancel)
	opts := pipeline.Options{AllowPartial: req.AllowPartial}
	go func() {
		defer cancel()
		res, err := s.pipeline.Run(ctx, gen, progress, opts)
		s.store.FinishRun(id, res, err)
	}()

	s.log.Info("run started", map[string]interface{}{
		"run_id":   id,
		"provider": string(gen.ModelProvider),
		"slides":   gen.NumberOfSlides,
	})
	w.Header().Set("X-Session-Id", sid)
	s.writeJSON(w, http.StatusAccepted, types.RunCreatedResponse{RunID: id})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runId")
	view, ok := s.store.GetRun(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	resp := types.RunResponse{
		RunID:     view.ID,
		Done:      view.Done,
		Progress:  view.Progress,
		Deck:      view.Deck,
		Slides:    view.Slides,
		HTML:      view.Document,
		CreatedAt: view.CreatedAt,
	}
	if !view.FinishedAt.IsZero() {
		finished := view.FinishedAt
		resp.FinishedAt = &finished
	}
	s.writeJSON(w, http.StatusOK, resp)
}
