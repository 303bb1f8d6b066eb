// Package http exposes the converter service over HTTP: the convert and
// media endpoints plus health, status and prometheus metrics.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Molvine192/projectM-music/internal/cache"
	"github.com/Molvine192/projectM-music/internal/core"
	"github.com/Molvine192/projectM-music/internal/extract"
)

// ArtifactSource is the cache layer as seen by the handlers.
type ArtifactSource interface {
	GetOrResolve(ctx context.Context, identifier string) (*cache.Entry, error)
	Open(name string) (afero.File, error)
	Len() int
}

// History is the append-only play/ping log as seen by the handlers.
// Recording failures are logged, never surfaced to callers.
type History interface {
	RecordPlay(ctx context.Context, rec core.PlayRecord) error
	RecordPing(ctx context.Context, remote string, at time.Time) error
	PlayCount(ctx context.Context) (int, error)
	RecentPlays(ctx context.Context, limit int) ([]core.PlayRecord, error)
}

// FirstPlayMarker reports whether a play is the first observed for its
// identifier.
type FirstPlayMarker interface {
	Mark(identifier string) bool
}

// Searcher queries the video-info backend's search endpoint.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]extract.SearchResult, error)
}

type Server struct {
	config     *core.ServerConfig
	source     ArtifactSource
	history    History
	firstPlays FirstPlayMarker
	searcher   Searcher
	logger     *zap.Logger
	server     *http.Server
	metrics    *Metrics
	started    time.Time
}

func NewServer(
	config *core.ServerConfig,
	source ArtifactSource,
	history History,
	firstPlays FirstPlayMarker,
	searcher Searcher,
	metrics *Metrics,
	logger *zap.Logger,
) *Server {
	s := &Server{
		config:     config,
		source:     source,
		history:    history,
		firstPlays: firstPlays,
		searcher:   searcher,
		metrics:    metrics,
		logger:     logger,
		started:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/recent", s.handleRecent)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/convert", s.handleConvert)
	mux.HandleFunc("/media/", s.handleMedia)
	mux.Handle("/metrics", metrics.handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Handler returns the route tree, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}
