package handler

import (
	"net/http"
	"time"

	"contract-assistant/internal/config"
	"contract-assistant/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the contract API. mcpHandler is mounted on cfg.MCP.Path when
// not nil.
func NewRouter(cfg *config.Config, contractHandler *ContractHandler, mcpHandler http.Handler) *gin.Engine {
	router := gin.New()

	router.Use(RequestLogger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		contract := api.Group("/contract")
		{
			contract.GET("/templates", contractHandler.ListTemplates)

			contract.POST("/session", contractHandler.CreateSession)
			contract.POST("/session/list", contractHandler.GetSessionList)
			contract.POST("/session/clear", contractHandler.ClearAllSessions)
			contract.GET("/session/:session_id", contractHandler.GetSession)
			contract.PUT("/session/:session_id", contractHandler.UpdateSessionTitle)
			contract.DELETE("/session/:session_id", contractHandler.DeleteSession)
			contract.GET("/messages/:session_id", contractHandler.GetMessages)

			contract.POST("/request", contractHandler.SubmitRequest)
			contract.POST("/request/stream", contractHandler.StreamRequest)
			contract.POST("/params", contractHandler.SubmitParams)
			contract.POST("/session/:session_id/reset", contractHandler.Reset)
			contract.GET("/session/:session_id/download", contractHandler.Download)
		}
	}

	if mcpHandler != nil && cfg.MCP.Path != "" {
		router.Any(cfg.MCP.Path, gin.WrapH(mcpHandler))
		logger.Infof("MCP endpoint mounted at %s", cfg.MCP.Path)
	}

	return router
}

// RequestLogger logs one line per request through the application logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request completed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}
