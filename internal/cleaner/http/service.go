package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ysy950803/userdbclean/internal/errors"
	"github.com/ysy950803/userdbclean/internal/history"
	"github.com/ysy950803/userdbclean/internal/model"
)

type Service struct {
	conf    Config
	control Control

	router *gin.Engine

	mu     sync.Mutex
	server *http.Server
}

type Config interface {
	GetHTTPAddr() string
}

// Control is the part of the maintenance engine exposed over HTTP.
type Control interface {
	StartClean(only []string, verbose *bool) model.StartResult
	Feed(input string) model.StartResult
	Status() model.Status
	History(ctx context.Context, limit int) ([]history.Entry, error)
}

func NewService(conf Config, control Control) *Service {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if err := router.SetTrustedProxies(nil); err != nil {
		log.Err(err).Msg("Failed to set trusted proxies")
	}

	router.Use(
		errors.RecoveryMiddleware(),
		errors.ErrorHandlerMiddleware(),
		gin.LoggerWithWriter(log.Logger, "/health"),
		corsMiddleware(),
	)

	s := &Service{
		conf:    conf,
		control: control,
		router:  router,
	}
	s.initRouter()
	return s
}

// Start listens on the configured address and serves in the background.
// Bind errors are returned synchronously.
func (s *Service) Start() error {
	addr := s.conf.GetHTTPAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}()

	log.Info().Msg("Starting HTTP server on " + ln.Addr().String())
	return nil
}

func (s *Service) Stop() error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}

	// 使用超时上下文优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Debug().Err(err).Msg("Failed to shutdown HTTP server")
		return nil
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Service) GetRouter() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
