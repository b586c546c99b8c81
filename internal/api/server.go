package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/quizchain/internal/config"
	"github.com/JakeFAU/quizchain/internal/logging"
	"github.com/JakeFAU/quizchain/internal/metrics"
	"github.com/JakeFAU/quizchain/internal/quiz"
)

const (
	maxRequestBytes = 1 << 20
	// timeoutGrace lets the handler write its own "processing timeout"
	// response before the outer TimeoutHandler gives up on it.
	timeoutGrace = 5 * time.Second
)

// Runner runs one quiz chain under a hard deadline.
type Runner interface {
	RunWithin(ctx context.Context, req quiz.WorkflowRequest, limit time.Duration) (quiz.WorkflowResult, error)
}

// Server wires HTTP handlers to the workflow runner.
type Server struct {
	router      chi.Router
	runner      Runner
	secret      string
	hardTimeout time.Duration
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:      runner,
		secret:      cfg.Auth.Secret,
		hardTimeout: cfg.HardTimeout(),
		logger:      logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	if s.hardTimeout > 0 {
		r.Use(timeoutMiddleware(s.hardTimeout + timeoutGrace))
	}

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())
	r.Post("/quiz_endpoint", s.quizEndpoint)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "quizchain",
		"note":    "POST to /quiz_endpoint with {email,secret,url}",
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.runner == nil || s.secret == "" {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type quizRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

type resultMeta struct {
	RunID             string                 `json:"run_id"`
	Steps             []quiz.StepRecord      `json:"steps"`
	ElapsedSeconds    float64                `json:"elapsed_seconds"`
	TerminationReason quiz.TerminationReason `json:"termination_reason"`
}

type quizResponse struct {
	Received   bool        `json:"received"`
	Email      string      `json:"email"`
	URL        string      `json:"url"`
	Answer     quiz.Answer `json:"answer,omitzero"`
	ResultMeta resultMeta  `json:"result_meta"`
}

func (s *Server) quizEndpoint(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	var req quizRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.URL = strings.TrimSpace(req.URL)
	if req.Email == "" || req.Secret == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	if !s.secretMatches(req.Secret) {
		s.logger.Warn("rejected quiz request",
			zap.String("email", req.Email),
			zap.String("request_id", requestID(r.Context())),
		)
		writeError(w, http.StatusForbidden, "invalid secret")
		return
	}

	logger := s.logger.With(
		zap.String("request_id", requestID(r.Context())),
		zap.String("email", req.Email),
		zap.String("url", req.URL),
		logging.Secret("secret", req.Secret),
	)
	logger.Info("quiz request accepted")

	res, err := s.runner.RunWithin(r.Context(), quiz.WorkflowRequest{
		StartURL: req.URL,
		Email:    req.Email,
		Secret:   req.Secret,
	}, s.hardTimeout)
	if err != nil {
		if errors.Is(err, quiz.ErrOverallTimeout) {
			logger.Error("quiz processing timed out", zap.Duration("limit", s.hardTimeout))
			writeError(w, http.StatusInternalServerError, "processing timeout")
			return
		}
		msg := logging.Scrub(err.Error(), req.Secret)
		logger.Error("quiz processing failed", zap.String("error", msg))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("processing failed: %s", msg))
		return
	}

	logger.Info("quiz request finished",
		zap.String("run_id", res.RunID),
		zap.Int("steps", len(res.Steps)),
		zap.String("termination_reason", string(res.TerminationReason)),
	)
	res = res.Finite()
	writeJSON(w, http.StatusOK, quizResponse{
		Received: true,
		Email:    req.Email,
		URL:      req.URL,
		Answer:   res.FinalAnswer,
		ResultMeta: resultMeta{
			RunID:             res.RunID,
			Steps:             res.Steps,
			ElapsedSeconds:    res.ElapsedSeconds,
			TerminationReason: res.TerminationReason,
		},
	})
}

func (s *Server) secretMatches(got string) bool {
	if s.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) == 1
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("panic", rec),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
