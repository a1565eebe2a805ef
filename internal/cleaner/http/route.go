package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ysy950803/userdbclean/internal/errors"
	"github.com/ysy950803/userdbclean/internal/model"
)

const defaultHistoryLimit = 20

func (s *Service) initRouter() {
	s.router.GET("/health", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	api := s.router.Group("/api/v1")
	{
		api.POST("/clean", s.handleClean)
		api.POST("/input", s.handleInput)
		api.GET("/status", s.handleStatus)
		api.GET("/history", s.handleHistory)
	}
}

type cleanRequest struct {
	Only    []string `json:"only"`
	Verbose *bool    `json:"verbose"`
}

type inputRequest struct {
	Input string `json:"input"`
}

// POST /api/v1/clean
func (s *Service) handleClean(c *gin.Context) {
	var req cleanRequest
	if c.Request.ContentLength != 0 {
		// 空的 chunked 请求体视为未指定参数
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.Error(errors.InvalidArgument("invalid payload: %v", err))
			return
		}
	}

	result := s.control.StartClean(req.Only, req.Verbose)
	status := http.StatusOK
	if result == model.ResultStarted {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"result": result})
}

// POST /api/v1/input
func (s *Service) handleInput(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.InvalidArgument("invalid payload: %v", err))
		return
	}

	result := s.control.Feed(req.Input)
	status := http.StatusOK
	if result == model.ResultStarted {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"result": result})
}

// GET /api/v1/status
func (s *Service) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.control.Status())
}

// GET /api/v1/history?limit=N
func (s *Service) handleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.Error(errors.InvalidArgument("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := s.control.History(c.Request.Context(), limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}
