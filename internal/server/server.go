package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"slidesmith-backend/internal/analyzer"
	"slidesmith-backend/internal/config"
	"slidesmith-backend/internal/content"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/pipeline"
	"slidesmith-backend/internal/prompts"
	"slidesmith-backend/internal/render"
	"slidesmith-backend/internal/store"
)

const sweepInterval = time.Minute

type Server struct {
	router          *chi.Mux
	cfg             config.Config
	log             logger.Logger
	store           *store.MemoryStore
	analyzer        *analyzer.Analyzer
	content         *content.Generator
	renderer        *render.Renderer
	pipeline        *pipeline.Pipeline
	defaultProvider llm.ProviderID

	// runs outlive the request that started them
	baseCtx   context.Context
	stop      context.CancelFunc
	sweepDone chan struct{}
	closeOnce sync.Once
}

type options struct {
	streamer llm.Streamer
	log      logger.Logger
}

type Option func(*options)

// WithStreamer replaces the provider registry, mainly for tests.
func WithStreamer(s llm.Streamer) Option {
	return func(o *options) { o.streamer = s }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

func NewServer(cfg config.Config, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewStructured(cfg.LogLevel, cfg.LogFormat)
	}
	if o.streamer == nil {
		o.streamer = llm.NewRegistry(cfg, o.log)
	}

	defaultProvider, err := llm.ParseProviderID(cfg.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_PROVIDER: %w", err)
	}
	mode, err := deck.ParseMode(cfg.ParserMode)
	if err != nil {
		return nil, fmt.Errorf("PARSER_MODE: %w", err)
	}
	set, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	a := analyzer.New(o.streamer, set.Analyzer, mode, defaultProvider, o.log)
	c := content.New(o.streamer, set, mode, defaultProvider, o.log)
	rd := render.New(o.streamer, set.Slide, cfg.MaxParallelSlides, o.log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true, // Enable credentials for cookies
		MaxAge:           300,
	}))

	baseCtx, stop := context.WithCancel(context.Background())
	s := &Server{
		router:          r,
		cfg:             cfg,
		log:             o.log.With(map[string]interface{}{"component": "server"}),
		store:           store.NewMemoryStore(cfg.RunTTL),
		analyzer:        a,
		content:         c,
		renderer:        rd,
		pipeline:        pipeline.New(a, c, rd, o.log),
		defaultProvider: defaultProvider,
		baseCtx:         baseCtx,
		stop:            stop,
		sweepDone:       make(chan struct{}),
	}
	s.routes()
	go s.sweep()
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(s.requestLogger)
	s.router.Get("/api/health", s.handleHealth)
	// Two-phase flow: analyze, then answer the clarifying questions
	s.router.Post("/api/analyze", s.handleAnalyze)
	s.router.Post("/api/analyze/answers", s.handleAnswers)
	// Deck content
	s.router.Post("/api/generate", s.handleGenerate)
	s.router.Post("/api/generate/stream", s.handleGenerateStream)
	// Single slide markup
	s.router.Post("/api/slide-html", s.handleSlideHTML)
	s.router.Post("/api/slide-html/stream", s.handleSlideHTMLStream)
	s.router.Post("/api/assemble", s.handleAssemble)
	// Background pipeline runs
	s.router.Post("/api/runs", s.handleCreateRun)
	s.router.Get("/api/runs/{runId}", s.handleGetRun)
	if s.cfg.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler())
	}
}

func (s *Server) Router() http.Handler { return s.router }

// Close cancels in-flight runs and stops the sweeper.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.stop()
		<-s.sweepDone
	})
}

func (s *Server) sweep() {
	defer close(s.sweepDone)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			if n := s.store.Sweep(); n > 0 {
				s.log.Debug("swept expired runs", map[string]interface{}{
					"count":     n,
					"remaining": s.store.RunCount(),
				})
			}
		}
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"request_id":  middleware.GetReqID(r.Context()),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"defaultProvider": string(s.defaultProvider),
		"runs":            s.store.RunCount(),
	})
}
