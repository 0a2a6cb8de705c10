// Package server implements the chat backend the widget talks to.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const requestTimeout = 60 * time.Second

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func codedErrorf(code int, msg string) error {
	return &codedError{err: errors.New(msg), code: code}
}

type Server struct {
	answerer Answerer
	log      zerolog.Logger
}

// New returns a server that answers with a. A nil answerer makes every chat
// request fail with ErrNotConfigured.
func New(a Answerer, log zerolog.Logger) *Server {
	return &Server{answerer: a, log: log}
}

// Handler builds the router. allowedOrigins enables CORS for those origins;
// an empty list leaves CORS off.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Post("/api/chat", s.chat)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	answer, err := s.answer(r)
	if err != nil {
		code := http.StatusInternalServerError
		var cerr *codedError
		if errors.As(err, &cerr) {
			code = cerr.code
		}
		if code == http.StatusInternalServerError {
			hlog.FromRequest(r).Error().Err(err).Msg("chat request failed")
		}
		writeJSON(w, r, code, chatResponse{Error: err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, chatResponse{Answer: answer})
}

func (s *Server) answer(r *http.Request) (string, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("decode chat request")
		return "", codedErrorf(http.StatusBadRequest, "no message")
	}
	if req.Message == "" {
		return "", codedErrorf(http.StatusBadRequest, "no message")
	}
	if s.answerer == nil {
		return "", ErrNotConfigured
	}
	return s.answerer.Answer(r.Context(), req.Message)
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write response")
	}
}
