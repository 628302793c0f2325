// Package server exposes the command dispatcher over HTTP.
//
//	POST /api/v1/commands/{name}   body: command arguments as JSON
//	GET  /api/v1/commands          list of command names
//	GET  /healthz                  liveness
//
// A successful command answers {"data": ...}; a failed one answers
// {"error": "...", "kind": "..."} with a status derived from the kind.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/koustreak/stellars3/internal/errs"
	"github.com/koustreak/stellars3/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dispatcher runs a named command with a JSON payload.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, payload []byte) (any, error)
	Names() []string
}

// Config holds the HTTP server settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps request bodies; 0 means unlimited.
	MaxBodyBytes int64
}

// Server serves commands over HTTP.
type Server struct {
	cfg  Config
	log  *logger.Logger
	disp Dispatcher
	http *http.Server
}

// New builds a Server. log may be nil.
func New(cfg Config, disp Dispatcher, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{cfg: cfg, log: log, disp: disp}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health)
	r.Route("/api/v1/commands", func(r chi.Router) {
		r.Get("/", s.listCommands)
		r.Post("/{name}", s.runCommand)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errs.Newf(errs.ErrKindInvalidInput, "no route for %s %s", r.Method, r.URL.Path), http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errs.Newf(errs.ErrKindInvalidInput, "method %s not allowed", r.Method), http.StatusMethodNotAllowed)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Request(r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataBody{Data: s.disp.Names()})
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body := io.Reader(r.Body)
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "request body too large", err), http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "failed to read request body", err), http.StatusBadRequest)
		return
	}

	out, err := s.disp.Dispatch(r.Context(), name, payload)
	if err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: out})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errs.Wrap(errs.ErrKindConfig, "failed to listen on "+s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.With().
		Str("addr", ln.Addr().String()).
		Int("commands", len(s.disp.Names())).
		Logger().
		Info("server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx := context.Background()
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	s.log.Info("server shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.log.With().Err(err).Logger().Warn("graceful shutdown incomplete")
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
