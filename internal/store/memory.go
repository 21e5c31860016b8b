package store

import (
	"context"
	"sync"
	"time"

	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/pipeline"
)

// Default TTLs.
var (
	pendingTTL = 15 * time.Minute
	runTTL     = 30 * time.Minute
)

// PendingAnalysis is an analysis waiting for the user's answers.
type PendingAnalysis struct {
	Result    deck.PromptAnalysisResult
	Provider  llm.ProviderID
	UpdatedAt time.Time
}

// Run is one background pipeline run.
type Run struct {
	ID         string
	SessionID  string
	Request    deck.GenerationRequest
	Progress   *pipeline.Progress
	Result     *pipeline.Result
	Err        error
	CreatedAt  time.Time
	FinishedAt time.Time

	cancel context.CancelFunc
}

// RunView is a copy of a run safe to hand to readers.
type RunView struct {
	ID         string
	Request    deck.GenerationRequest
	Progress   pipeline.Snapshot
	Deck       *deck.DeckDocument
	Slides     []deck.RenderedSlide
	Document   string
	Done       bool
	CreatedAt  time.Time
	FinishedAt time.Time
}

type MemoryStore struct {
	mu               sync.RWMutex
	pendingBySession map[string]PendingAnalysis
	runs             map[string]*Run
	pendingTTL       time.Duration
	runTTL           time.Duration
	now              func() time.Time
}

// NewMemoryStore keeps finished runs for runTTL; zero uses the default.
func NewMemoryStore(runRetention time.Duration) *MemoryStore {
	if runRetention <= 0 {
		runRetention = runTTL
	}
	return &MemoryStore{
		pendingBySession: make(map[string]PendingAnalysis),
		runs:             make(map[string]*Run),
		pendingTTL:       pendingTTL,
		runTTL:           runRetention,
		now:              time.Now,
	}
}

// SetPendingAnalysis stores/updates the analysis awaiting answers for a session.
func (m *MemoryStore) SetPendingAnalysis(sessionID string, res deck.PromptAnalysisResult, provider llm.ProviderID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res.Questions = append([]deck.Question(nil), res.Questions...)
	m.pendingBySession[sessionID] = PendingAnalysis{Result: res, Provider: provider, UpdatedAt: m.now()}
}

// GetPendingAnalysis returns the pending analysis if within TTL.
func (m *MemoryStore) GetPendingAnalysis(sessionID string) (PendingAnalysis, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pendingBySession[sessionID]
	if !ok {
		return PendingAnalysis{}, false
	}
	if m.now().Sub(p.UpdatedAt) > m.pendingTTL {
		delete(m.pendingBySession, sessionID)
		return PendingAnalysis{}, false
	}
	p.Result.Questions = append([]deck.Question(nil), p.Result.Questions...)
	return p, true
}

func (m *MemoryStore) ClearPendingAnalysis(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendingBySession, sessionID)
}

// StartRun registers a run. cancel is invoked if the run is evicted before
// it finishes.
func (m *MemoryStore) StartRun(id, sessionID string, req deck.GenerationRequest, progress *pipeline.Progress, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id] = &Run{
		ID:        id,
		SessionID: sessionID,
		Request:   req,
		Progress:  progress,
		CreatedAt: m.now(),
		cancel:    cancel,
	}
}

// FinishRun records the outcome of a run.
func (m *MemoryStore) FinishRun(id string, res *pipeline.Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return
	}
	run.Result = res
	run.Err = err
	run.FinishedAt = m.now()
	run.cancel = nil
}

// GetRun returns a view of the run if it exists and has not expired.
func (m *MemoryStore) GetRun(id string) (RunView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return RunView{}, false
	}
	if m.expiredLocked(run) {
		m.evictLocked(id, run)
		return RunView{}, false
	}
	view := RunView{
		ID:         run.ID,
		Request:    run.Request,
		Progress:   run.Progress.Snapshot(),
		Done:       !run.FinishedAt.IsZero(),
		CreatedAt:  run.CreatedAt,
		FinishedAt: run.FinishedAt,
	}
	if run.Result != nil {
		view.Deck = run.Result.Deck
		view.Slides = append([]deck.RenderedSlide(nil), run.Result.Rendered...)
		view.Document = run.Result.Document
	}
	return view, true
}

// Sweep drops expired pending analyses and runs, cancelling runs still in
// flight. It returns the number of runs removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid, p := range m.pendingBySession {
		if m.now().Sub(p.UpdatedAt) > m.pendingTTL {
			delete(m.pendingBySession, sid)
		}
	}
	removed := 0
	for id, run := range m.runs {
		if m.expiredLocked(run) {
			m.evictLocked(id, run)
			removed++
		}
	}
	return removed
}

// RunCount is the number of runs currently held.
func (m *MemoryStore) RunCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

func (m *MemoryStore) expiredLocked(run *Run) bool {
	since := run.FinishedAt
	if since.IsZero() {
		since = run.CreatedAt
	}
	return m.now().Sub(since) > m.runTTL
}

func (m *MemoryStore) evictLocked(id string, run *Run) {
	if run.cancel != nil {
		run.cancel()
	}
	delete(m.runs, id)
}
