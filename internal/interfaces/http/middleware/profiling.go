package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether profiling labels are added to requests.
	Enabled bool
	// SkipPathPrefixes are path prefixes served without labels.
	SkipPathPrefixes []string
}

// DefaultProfilingConfig returns the default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPathPrefixes: []string{"/swagger"},
	}
}

// ProfilingWithConfig runs the rest of the chain under pprof labels for the
// HTTP method, the matched route and the integration ID path parameter, so
// Pyroscope can slice CPU and allocation profiles per admin operation.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		labels := map[string]string{
			telemetry.ProfilingLabelMethod:      c.Request.Method,
			telemetry.ProfilingLabelRoute:       c.FullPath(),
			telemetry.ProfilingLabelIntegration: strings.ToLower(c.Param("id")),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
