// Package httpapi is the thin gin-based front door that fronts the tool
// dispatcher over HTTP: one POST route per MCP-style tool call plus a
// /health route aggregating the three backing stores' status. Grounded in
// tarsy's pkg/api gin handler conventions (c *gin.Context, gin.H bodies);
// MCP wire transport itself is out of scope, so this is a pragmatic
// JSON-over-HTTP substitute a caller (CLI, test harness, future adapter)
// can drive without speaking a specific RPC protocol.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/memoryd/memoryd/pkg/graphstore"
	"github.com/memoryd/memoryd/pkg/jobs"
	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/relational"
	"github.com/memoryd/memoryd/pkg/tools"
	"github.com/memoryd/memoryd/pkg/vectorstore"
)

// Deps is the set of components the HTTP surface reports on or dispatches
// through.
type Deps struct {
	Store      relational.Store
	Vector     *vectorstore.Store
	Graph      *graphstore.Store
	Jobs       *jobs.Manager
	Dispatcher *tools.Dispatcher
	Logger     *slog.Logger
}

// New builds the gin engine: GET /health, GET /tools, POST /tools/:name.
func New(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Logger))

	r.GET("/health", healthHandler(deps))
	r.GET("/tools", listToolsHandler(deps))
	r.POST("/tools/:name", callToolHandler(deps))

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"component", "httpapi",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func healthHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		relHealth, err := deps.Store.Health(ctx)
		if err != nil {
			relHealth = &models.Health{OK: false, Detail: err.Error()}
		}

		body := gin.H{
			"relational": relHealth,
			"overall_ok": relHealth.OK,
		}

		if deps.Vector != nil {
			vectorOK := deps.Vector.Health(ctx)
			body["vector"] = gin.H{"ok": vectorOK}
			if !vectorOK {
				body["overall_ok"] = false
			}
		}
		if deps.Graph != nil {
			graphOK := deps.Graph.Health(ctx)
			body["graph"] = gin.H{"ok": graphOK}
			if !graphOK {
				body["overall_ok"] = false
			}
		}

		status := http.StatusOK
		if ok, _ := body["overall_ok"].(bool); !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, body)
	}
}

func listToolsHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tools": deps.Dispatcher.Names()})
	}
}

func callToolHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		var args map[string]any
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&args); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid JSON body: " + err.Error()})
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()

		result := deps.Dispatcher.Call(ctx, name, args)
		c.JSON(http.StatusOK, result)
	}
}
