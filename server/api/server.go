package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Server hosts the attestation HTTP surface. Routes are mounted on
// Router by the caller before Start; middleware registered through Use
// wraps every mounted route.
type Server struct {
	cfg Config
	log zerolog.Logger

	Router *mux.Router

	srv   *http.Server
	chain []func(http.Handler) http.Handler

	mtx      sync.Mutex
	listener net.Listener
}

func NewServer(cfg Config, log zerolog.Logger) *Server {
	router := mux.NewRouter()
	s := &Server{
		cfg:    cfg,
		log:    log.With().Str("component", "api").Logger(),
		Router: router,
	}
	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	return s
}

// Use registers middleware. The first registered middleware sees the
// request first.
func (s *Server) Use(mw func(http.Handler) http.Handler) {
	s.chain = append(s.chain, mw)
}

// EnableCORS allows cross-origin calls from any origin, for the demo
// frontend. Lock this down behind a proxy in production.
func (s *Server) EnableCORS() {
	s.Use(handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID", "X-API-KEY"}),
	))
}

// Start listens and serves until ctx is cancelled, then drains in-flight
// requests within the configured shutdown timeout. Proof polling can
// hold a request open for minutes, so WriteTimeout stays generous.
func (s *Server) Start(ctx context.Context) error {
	handler := http.Handler(s.Router)
	for i := len(s.chain) - 1; i >= 0; i-- {
		handler = s.chain[i](handler)
	}
	s.srv.Handler = handler

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	s.listener = ln
	s.mtx.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.cfg.ListenAddr).Msg("attestation API listening")
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("attestation API stopped")
	return nil
}
