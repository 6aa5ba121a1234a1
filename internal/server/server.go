package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/comigor/leanchems-go/internal/config"
	"github.com/comigor/leanchems-go/internal/logger"
)

//go:embed static
var staticFiles embed.FS

// Chatter runs one conversation turn.
type Chatter interface {
	Process(ctx context.Context, message, sessionID string) (string, string, error)
}

// Cleaner purges expired sessions.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// Server is the Leanchems HTTP server.
type Server struct {
	httpServer *http.Server
	chat       Chatter
	cleaner    Cleaner
}

// NewServer creates a new server.
func NewServer(cfg config.ServerConfig, chat Chatter, cleaner Cleaner) *Server {
	s := &Server{chat: chat, cleaner: cleaner}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	// Routes
	r.Post("/chat", s.handleChat)
	r.Post("/cleanup", s.handleCleanup)
	r.Get("/health", s.handleHealth)

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// fs.Sub only rejects malformed names; "static" is the embedded directory.
		panic(fmt.Sprintf("server: static assets: %v", err))
	}
	r.Get("/", s.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(assets))))

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	logger.L.Info("Leanchems server listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.L.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
