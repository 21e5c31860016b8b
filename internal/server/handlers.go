package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"slidesmith-backend/internal/analyzer"
	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/assemble"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/render"
	"slidesmith-backend/internal/types"
)

const (
	analyzeTimeout  = 60 * time.Second
	generateTimeout = 180 * time.Second
	slideTimeout    = 120 * time.Second

	defaultDeckTitle = "Presentation"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req types.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := getOrCreateSessionID(r, w)
	provider, err := s.providerOrDefault(req.ModelProvider)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyzeTimeout)
	defer cancel()
	res, err := s.analyzer.Analyze(ctx, req.Prompt, provider)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.store.SetPendingAnalysis(sid, *res, provider)

	w.Header().Set("X-Session-Id", sid)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnswers(w http.ResponseWriter, r *http.Request) {
	var req types.AnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := getSessionID(r)
	pending, ok := s.store.GetPendingAnalysis(sid)
	if sid == "" || !ok {
		s.writeError(w, http.StatusNotFound, "no pending analysis for this session")
		return
	}

	gen := analyzer.ApplyAnswers(pending.Result, answerStrings(req.Answers))
	gen.ModelProvider = pending.Provider
	if req.ModelProvider != "" {
		provider, err := llm.ParseProviderID(req.ModelProvider)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		gen.ModelProvider = provider
	}
	if err := gen.Validate(); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.store.ClearPendingAnalysis(sid)

	w.Header().Set("X-Session-Id", sid)
	s.writeJSON(w, http.StatusOK, gen)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req deck.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()
	doc, err := s.content.GenerateDeck(ctx, req)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	var req deck.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()
	seq, err := s.content.StreamDeckContent(ctx, req)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.relay(w, seq)
}

func (s *Server) handleSlideHTML(w http.ResponseWriter, r *http.Request) {
	t, ok := s.decodeSlideTarget(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), slideTimeout)
	defer cancel()
	slide, err := s.renderer.RenderSlide(ctx, t)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, types.HTMLResponse{HTML: slide.Markup})
}

// handleSlideHTMLStream relays the raw model output; the client normalizes
// the concatenated markup itself.
func (s *Server) handleSlideHTMLStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	t, ok := s.decodeSlideTarget(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), slideTimeout)
	defer cancel()
	seq, err := s.renderer.StreamSlideMarkup(ctx, t)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.relay(w, seq)
}

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var req types.AssembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.writeJSON(w, http.StatusOK, types.HTMLResponse{HTML: assemble.Assemble(req.Slides)})
}

func (s *Server) decodeSlideTarget(w http.ResponseWriter, r *http.Request) (render.Target, bool) {
	var req types.SlideHTMLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return render.Target{}, false
	}
	if req.SlideContent == nil || req.Index == nil {
		s.writeAppError(w, apperr.NewValidationError("slideContent and index are required"))
		return render.Target{}, false
	}
	style := deck.StyleProfessional
	if req.Style != "" {
		st, ok := deck.ParseStyle(req.Style)
		if !ok {
			s.writeAppError(w, apperr.NewValidationError(fmt.Sprintf("style must be one of %v", deck.Styles)))
			return render.Target{}, false
		}
		style = st
	}
	provider, err := s.providerOrDefault(req.ModelProvider)
	if err != nil {
		s.writeAppError(w, err)
		return render.Target{}, false
	}
	title := strings.TrimSpace(req.PresentationTitle)
	if title == "" {
		title = defaultDeckTitle
	}
	return render.Target{
		Slide:     *req.SlideContent,
		Style:     style,
		Index:     *req.Index,
		DeckTitle: title,
		Provider:  provider,
	}, true
}

// relay writes fragments as they arrive. Headers are committed with the
// first fragment so a failure before any output still gets a JSON error.
func (s *Server) relay(w http.ResponseWriter, seq iter.Seq2[string, error]) {
	flusher := w.(http.Flusher)
	started := false
	start := func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		started = true
	}
	for text, err := range seq {
		if err != nil {
			if !started {
				s.writeAppError(w, err)
				return
			}
			s.log.WithError(err).Warn("stream interrupted", nil)
			return
		}
		if !started {
			start()
		}
		if _, err := io.WriteString(w, text); err != nil {
			return
		}
		flusher.Flush()
	}
	if !started {
		start()
	}
}

func (s *Server) providerOrDefault(raw string) (llm.ProviderID, error) {
	if strings.TrimSpace(raw) == "" {
		return s.defaultProvider, nil
	}
	return llm.ParseProviderID(raw)
}

// answerStrings flattens JSON answer values. Numbers keep their shortest form.
func answerStrings(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}

// writeAppError maps an application error to its HTTP status and body.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	var e *apperr.Error
	if !errors.As(err, &e) {
		if code >= http.StatusInternalServerError {
			s.log.WithError(err).Error("request failed", nil)
		}
		s.writeError(w, code, err.Error())
		return
	}
	resp := types.ErrorResponse{
		Error:     e.Message,
		Kind:      e.Kind,
		Code:      e.Code,
		Details:   e.Details,
		Provider:  e.Provider,
		Retryable: e.Retryable,
	}
	if resp.Details == "" && e.Cause != nil {
		resp.Details = e.Cause.Error()
	}
	if code >= http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed", map[string]interface{}{
			"kind": string(e.Kind),
			"code": string(e.Code),
		})
	}
	s.writeJSON(w, code, resp)
}

func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConfiguration:
		if e.Code == apperr.ErrCodeUnknownProvider {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case apperr.KindAnalysis:
		if apperr.KindOf(e.Cause) != "" {
			return statusFor(e.Cause)
		}
		return http.StatusBadGateway
	case apperr.KindProvider, apperr.KindMalformed, apperr.KindSlideRender:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func newSessionID() string {
	return uuid.NewString()
}

// getSessionID retrieves the session ID from cookie or query parameter/header
func getSessionID(r *http.Request) string {
	// Try cookie first
	if cookie, err := GetSessionCookie(r); err == nil && cookie != "" {
		return cookie
	}
	// Fall back to header
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	// Fall back to query parameter
	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		return sid
	}
	return ""
}

// getOrCreateSessionID gets existing session ID or creates a new one, setting the cookie
func getOrCreateSessionID(r *http.Request, w http.ResponseWriter) string {
	sid := getSessionID(r)
	if sid == "" {
		sid = newSessionID()
		SetSessionCookie(w, r, sid)
	}
	return sid
}
