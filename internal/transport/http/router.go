package httptransport

import (
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"ar-scan-go/internal/platform/config"
	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/logging"
	"ar-scan-go/internal/platform/observability"
)

// Options configures the HTTP router builder.
type Options struct {
	Config *config.Config
	Logger *logging.Logger
}

// Router bundles together the gin engine and the API route group.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with logging, recovery, CORS
// and, when configured, static presentation assets.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, platformerrors.New(platformerrors.KindTransport, "http.build", "http router requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDiscard()
	}

	if opts.Config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(logger))

	origins := opts.Config.Web.AllowedOrigins
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	engine.Use(cors.New(corsCfg))

	if root := opts.Config.Web.StaticDir; root != "" {
		engine.Use(static.Serve("/", static.LocalFile(root, true)))
	}

	return &Router{
		Engine: engine,
		API:    engine.Group("/api"),
	}, nil
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		logger.InfoTag(
			logging.TagHTTP,
			"%s %s -> %d (%s)",
			c.Request.Method,
			c.Request.URL.Path,
			status,
			duration,
		)

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		observability.RecordMetric(c.Request.Context(), "http.request.duration_ms", float64(duration.Milliseconds()),
			map[string]string{
				"method": c.Request.Method,
				"path":   path,
				"status": strconv.Itoa(status),
			})
	}
}
