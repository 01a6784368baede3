package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

// Answerer is the slice of the agent the HTTP layer depends on.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Config holds the listen address.
type Config struct {
	Host string
	Port int
}

func (c *Config) addr() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.Port
	if port == 0 {
		port = 8123
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Server exposes the RAG agent over HTTP.
type Server struct {
	config Config
	agent  Answerer
	router *gin.Engine
}

func New(config Config, agent Answerer) (*Server, error) {
	if agent == nil {
		return nil, errors.New("server: agent is required")
	}
	s := &Server{config: config, agent: agent}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware())
	router.GET("/health", s.handleHealth)
	router.POST("/chat", s.handleChat)
	return router
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

// handleChat runs single-turn RAG: send a question, get an answer.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	answer, err := s.agent.Answer(c.Request.Context(), req.Message)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("chat request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to answer"})
		return
	}
	c.JSON(http.StatusOK, chatResponse{Answer: answer})
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	addr := s.config.addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", "http://"+addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	case <-quit:
	}
	log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
