package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	aegis "github.com/KOMKZ/go-aegis"
	"github.com/KOMKZ/go-aegis/base"
)

// GinConfig customizes the admission middleware
type GinConfig struct {
	// Engine the governance engine (required)
	Engine *aegis.Engine

	// ResourceFunc maps a request to its resource name,
	// default "get:/orders/:id"
	ResourceFunc func(*gin.Context) string

	// BlockHandler writes the rejection response, default 429 JSON
	BlockHandler func(*gin.Context, *base.BlockError)

	// SkipPaths requests whose path is listed bypass governance
	SkipPaths []string
}

// DefaultGinConfig returns the middleware defaults
func DefaultGinConfig(engine *aegis.Engine) GinConfig {
	return GinConfig{
		Engine: engine,
		ResourceFunc: func(c *gin.Context) string {
			path := c.FullPath()
			if path == "" {
				path = c.Request.URL.Path
			}
			return fmt.Sprintf("%s:%s", strings.ToLower(c.Request.Method), path)
		},
		BlockHandler: func(c *gin.Context, blockErr *base.BlockError) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "request rejected",
				"block_type": blockErr.BlockType().String(),
			})
		},
	}
}

// GinGovernance guards every request with the engine: admitted requests
// run the handler and report their outcome, rejected ones get 429.
func GinGovernance(engine *aegis.Engine) gin.HandlerFunc {
	return GinGovernanceWithConfig(DefaultGinConfig(engine))
}

// GinGovernanceWithConfig is GinGovernance with custom behavior
func GinGovernanceWithConfig(cfg GinConfig) gin.HandlerFunc {
	if cfg.Engine == nil {
		panic("middleware: GinConfig.Engine cannot be nil")
	}
	defaults := DefaultGinConfig(cfg.Engine)
	if cfg.ResourceFunc == nil {
		cfg.ResourceFunc = defaults.ResourceFunc
	}
	if cfg.BlockHandler == nil {
		cfg.BlockHandler = defaults.BlockHandler
	}

	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		entry, blockErr := cfg.Engine.Entry(cfg.ResourceFunc(c),
			aegis.WithResourceType(base.ResTypeWeb),
			aegis.WithTrafficType(base.Inbound),
		)
		if blockErr != nil {
			cfg.BlockHandler(c, blockErr)
			return
		}

		defer func() {
			if len(c.Errors) > 0 {
				entry.Exit(base.WithError(c.Errors.Last()))
				return
			}
			if status := c.Writer.Status(); status >= http.StatusInternalServerError {
				entry.Exit(base.WithError(fmt.Errorf("http status %d", status)))
				return
			}
			entry.Exit()
		}()

		c.Next()
	}
}
