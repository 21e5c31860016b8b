package pipeline

import (
	"maps"
	"strings"
	"sync"
	"time"

	"slidesmith-backend/internal/apperr"
)

type Stage string

const (
	StageIdle              Stage = "idle"
	StageAnalyzing         Stage = "analyzing"
	StageAwaitingAnswers   Stage = "awaitingAnswers"
	StageGeneratingContent Stage = "generatingContent"
	StageRenderingSlides   Stage = "renderingSlides"
	StageAssembling        Stage = "assembling"
	StageReady             Stage = "ready"
	StageFailed            Stage = "failed"
)

// Progress is the caller-owned state of one run. The pipeline is the only
// writer; any number of readers may take snapshots concurrently.
type Progress struct {
	mu        sync.RWMutex
	stage     Stage
	streamed  strings.Builder
	completed int
	total     int
	live      map[int]string
	slideErrs map[int]string
	err       error
	updatedAt time.Time
}

func NewProgress() *Progress {
	p := &Progress{}
	p.Reset()
	return p
}

// Snapshot is a point-in-time copy of Progress.
type Snapshot struct {
	Stage           Stage          `json:"stage"`
	StreamedContent string         `json:"streamedContent"`
	CompletedSlides int            `json:"completedSlides"`
	TotalSlides     int            `json:"totalSlides"`
	LiveSlides      map[int]string `json:"liveSlides,omitempty"`
	SlideErrors     map[int]string `json:"slideErrors,omitempty"`
	Error           string         `json:"error,omitempty"`
	ErrorKind       apperr.Kind    `json:"errorKind,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Reset returns p to idle. Called when a new run starts.
func (p *Progress) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = StageIdle
	p.streamed.Reset()
	p.completed = 0
	p.total = 0
	p.live = make(map[int]string)
	p.slideErrs = make(map[int]string)
	p.err = nil
	p.updatedAt = time.Now()
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Snapshot{
		Stage:           p.stage,
		StreamedContent: p.streamed.String(),
		CompletedSlides: p.completed,
		TotalSlides:     p.total,
		LiveSlides:      maps.Clone(p.live),
		SlideErrors:     maps.Clone(p.slideErrs),
		UpdatedAt:       p.updatedAt,
	}
	if p.err != nil {
		s.Error = p.err.Error()
		s.ErrorKind = apperr.KindOf(p.err)
	}
	return s
}

func (p *Progress) Stage() Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stage
}

func (p *Progress) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

func (p *Progress) setStage(s Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = s
	p.updatedAt = time.Now()
}

func (p *Progress) appendContent(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamed.WriteString(text)
	p.updatedAt = time.Now()
}

func (p *Progress) startRendering(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = StageRenderingSlides
	p.total = total
	p.completed = 0
	p.updatedAt = time.Now()
}

// fail moves to StageFailed and keeps everything produced so far.
func (p *Progress) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = StageFailed
	p.err = err
	p.updatedAt = time.Now()
}

// SlideFragment appends to the live text of one slide.
func (p *Progress) SlideFragment(index int, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[index] += text
	p.updatedAt = time.Now()
}

// SlideDone counts a successful slide or records its error.
func (p *Progress) SlideDone(index int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.slideErrs[index] = err.Error()
	} else {
		p.completed++
	}
	p.updatedAt = time.Now()
}
