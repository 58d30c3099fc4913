// Package server exposes the assistant over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/internal/types"
	"github.com/xhad/campus/pkg/agent"
	"github.com/xhad/campus/pkg/auth"
)

type Config struct {
	Port           int
	MaxUploadBytes int64
	AllowedOrigins []string // websocket origins; "*" allows any, empty means same host only
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Agent    *agent.Agent
	Sessions *agent.Sessions
	Auth     *auth.Manager
	Students types.StudentStore
	Events   types.EventStore
}

type Server struct {
	config   Config
	deps     Deps
	upgrader websocket.Upgrader
	router   *gin.Engine
}

func New(config Config, deps Deps) *Server {
	if config.Port == 0 {
		config.Port = 8000
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = 20 << 20
	}

	s := &Server{
		config: config,
		deps:   deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(config.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = s.checkOrigin
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), s.deps.Auth.Identify())

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	// Assistant
	r.POST("/chatbot", s.chatbot)
	r.GET("/ask", s.ask)
	r.POST("/analyze-url", s.analyzeURL)
	r.POST("/process-video", s.processVideo)
	r.POST("/upload-pdf", s.uploadPDF)
	r.POST("/upload-excel", s.uploadExcel)
	r.GET("/ws", s.handleWebSocket)

	// Sign-in
	r.POST("/login", s.login)
	r.GET("/logout", s.logout)
	r.GET("/auth/login/google", s.googleLogin)
	r.GET("/auth/google/", s.googleCallback)

	// Records
	students := r.Group("/students", auth.Required())
	{
		students.GET("", s.listStudents)
		students.POST("", s.addStudent)
	}
	events := r.Group("/events", auth.Required())
	{
		events.GET("", s.listEvents)
		events.POST("", s.addEvent)
		events.DELETE("/:id", s.deleteEvent)
	}

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.config.Port).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
