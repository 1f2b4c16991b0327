// Package gateway serves environment sessions over HTTP and websocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sirupsen/logrus"

	"github.com/boristopalov/sciworld/internal/logging"
	"github.com/boristopalov/sciworld/internal/schema"
	"github.com/boristopalov/sciworld/pkg/core"
	"github.com/boristopalov/sciworld/pkg/environment"
)

const defaultMaxBodyBytes = 1 << 20

type Server struct {
	sessions *environment.Manager
	logger   *logrus.Logger
	maxBody  int64

	upgrader websocket.Upgrader
}

type Option func(*Server)

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

func NewServer(sessions *environment.Manager, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		logger:   logging.Discard(),
		maxBody:  defaultMaxBodyBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /tasks", s.handleTasks)
	mux.HandleFunc("POST /tasks", s.handleTasks)
	mux.HandleFunc("POST /load", s.handleLoad)
	mux.HandleFunc("POST /reset", s.handleLoad)
	mux.HandleFunc("POST /step", s.handleStep)
	mux.HandleFunc("GET /ws", s.handleWS)
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx2)
	}()

	s.logger.WithField("addr", addr).Info("gateway listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return goerr.Wrap(err, "gateway stopped", goerr.Value("addr", addr))
	}
	return nil
}

func (s *Server) session(r *http.Request) *environment.Session {
	return s.sessions.Session(r.Header.Get(SessionHeader))
}

func (s *Server) handleTasks(rw http.ResponseWriter, r *http.Request) {
	tasks, err := s.session(r).ListTasks(r.Context())
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, tasks)
}

func (s *Server) handleLoad(rw http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := s.decode(rw, r, schema.Load, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}

	snap, err := s.session(r).Load(r.Context(), req.Name, req.Variation)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, snap)
}

func (s *Server) handleStep(rw http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if err := s.decode(rw, r, schema.Step, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}

	snap, err := s.session(r).Step(r.Context(), req.Action)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, snap)
}

// decode validates the body against the named schema before unmarshalling it.
func (s *Server) decode(rw http.ResponseWriter, r *http.Request, name string, v any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, s.maxBody))
	if err != nil {
		return goerr.Wrap(core.ErrBadRequest, "failed to read body", goerr.Value("cause", err.Error()))
	}
	if err := schema.Validate(name, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return goerr.Wrap(core.ErrBadRequest, "failed to decode body", goerr.Value("cause", err.Error()))
	}
	return nil
}

func (s *Server) writeError(rw http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	entry := s.logger.WithFields(logrus.Fields{
		"path":    r.URL.Path,
		"session": r.Header.Get(SessionHeader),
		"code":    code,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("engine call failed")
	} else {
		entry.Warn("rejected request")
	}
	writeJSON(rw, status, ErrorResponse{Error: ErrorBody{Code: code, Message: err.Error()}})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
