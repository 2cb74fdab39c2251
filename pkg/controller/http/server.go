package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/utils/errutil"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
	"github.com/secmon-lab/dermis/pkg/utils/safe"
)

const (
	defaultUserHeader   = "X-User-ID"
	defaultMaxBodyBytes = 20 << 20
)

// ChatUseCase resolves a conversation into a reply
type ChatUseCase interface {
	Resolve(ctx context.Context, req *model.ResolveRequest) (*model.Resolution, error)
}

// SkinUseCase estimates visual skin signals
type SkinUseCase interface {
	Analyze(ctx context.Context, userID types.UserID, images [][]byte) (*model.VisualSignal, error)
}

type Server struct {
	router       *chi.Mux
	chatUC       ChatUseCase
	skinUC       SkinUseCase
	userHeader   string
	maxBodyBytes int64
}

type Options func(*Server)

// WithUserHeader sets the request header carrying the user ID. The header is expected
// to be set by an authenticating proxy.
func WithUserHeader(name string) Options {
	return func(s *Server) {
		s.userHeader = name
	}
}

func WithMaxBodyBytes(n int64) Options {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

func New(chatUC ChatUseCase, skinUC SkinUseCase, opts ...Options) (*Server, error) {
	if chatUC == nil {
		return nil, goerr.New("chat use case is required")
	}
	if skinUC == nil {
		return nil, goerr.New("skin use case is required")
	}

	r := chi.NewRouter()

	s := &Server{
		router:       r,
		chatUC:       chatUC,
		skinUC:       skinUC,
		userHeader:   defaultUserHeader,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(userMiddleware(s.userHeader))
		r.Use(bodyLimitMiddleware(s.maxBodyBytes))

		r.Post("/chat", chatHandler(s.chatUC))
		r.Post("/skin/analyze", skinAnalyzeHandler(s.skinUC))
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.Default().With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(logging.With(r.Context(), logger))

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}
