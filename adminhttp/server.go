// Package adminhttp is an optional read/control HTTP surface over a
// running supervisor.Supervisor: list children, tail one child's
// captured output, send it a signal, write to its stdin, and adjust the
// pool's scale limits. It imports only supervisor's public API and the
// core package has no knowledge it exists, per SPEC_FULL.md.
//
// Router assembly, middleware ordering, and the Gin/Zap logging
// middleware are adapted from cmd/zmux-server/main.go; the CORS and
// concurrent-request-cap middlewares are the same libraries the teacher
// wires in, generalized from a one-app router to an admin-surface router
// over process children instead of channels.
package adminhttp

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/procpool/supervisor"
	"github.com/procpool/supervisor/adminhttp/middleware"
)

// Server wraps an *http.Server exposing the admin API over sup.
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// Options configures the admin HTTP surface.
type Options struct {
	Addr          string
	DevCORSOrigin string // non-empty enables permissive dev CORS, mirroring main.go's ENV=dev branch
	MaxConcurrent int64  // 0 disables the cap
}

// New builds a Server that answers requests against sup. Call ListenAndServe
// to start serving; it blocks like http.Server.ListenAndServe.
func New(sup *supervisor.Supervisor, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("adminhttp")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery())
	r.Use(secure.New(secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
	}))
	if opts.DevCORSOrigin != "" {
		r.Use(cors.New(cors.Config{
			AllowOrigins: []string{opts.DevCORSOrigin},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	if opts.MaxConcurrent > 0 {
		r.Use(middleware.CapConcurrentRequests(opts.MaxConcurrent))
	}
	r.Use(middleware.RequestID())
	r.Use(zapLogger(log))

	registerRoutes(r, sup, log)

	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:8088"
	}

	return &Server{
		log: log,
		http: &http.Server{
			Addr:           addr,
			Handler:        r,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 15,
			ErrorLog:       zap.NewStdLog(log.WithOptions(zap.AddCallerSkip(1))),
		},
	}
}

// ListenAndServe starts serving and blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	s.log.Info("running admin HTTP server", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err != nil && errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close shuts the HTTP server down.
func (s *Server) Close() error { return s.http.Close() }

// zapLogger is the teacher's cmd/zmux-server/main.go ZapLogger middleware,
// unchanged in shape.
func zapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func registerRoutes(r *gin.Engine, sup *supervisor.Supervisor, log *zap.Logger) {
	r.GET("/api/children", func(c *gin.Context) {
		c.JSON(http.StatusOK, sup.Snapshot())
	})

	r.GET("/api/children/:pid", func(c *gin.Context) {
		pid, err := parsePid(c)
		if err != nil {
			return
		}
		for _, ch := range sup.Snapshot() {
			if ch.Pid == pid {
				c.JSON(http.StatusOK, ch)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"message": "child not found"})
	})

	r.GET("/api/children/:pid/tail", func(c *gin.Context) {
		pid, err := parsePid(c)
		if err != nil {
			return
		}
		n := 100
		if q := c.Query("n"); q != "" {
			if parsed, err := strconv.Atoi(q); err == nil {
				n = parsed
			}
		}
		lines, ok := sup.Tail(pid, n)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "no output captured for pid"})
			return
		}
		c.Header("X-Total-Count", strconv.Itoa(len(lines)))
		c.JSON(http.StatusOK, lines)
	})

	r.POST("/api/children/:pid/signal/:signum", func(c *gin.Context) {
		pid, err := parsePid(c)
		if err != nil {
			return
		}
		signum, err := strconv.Atoi(c.Param("signum"))
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid signal number"})
			return
		}
		if err := sup.Signal(pid, syscall.Signal(signum)); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pid": pid, "signal": signum})
	})

	r.POST("/api/children/:pid/stdin", func(c *gin.Context) {
		pid, err := parsePid(c)
		if err != nil {
			return
		}
		body := http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		defer body.Close()
		buf := make([]byte, 1<<20)
		n, err := body.Read(buf)
		if err != nil && n == 0 {
			c.JSON(http.StatusOK, gin.H{"pid": pid, "bytes": 0})
			return
		}
		sup.SendInput(pid, buf[:n])
		c.JSON(http.StatusOK, gin.H{"pid": pid, "bytes": n})
	})

	r.POST("/api/scale/up", func(c *gin.Context) {
		sup.ScaleUp()
		c.JSON(http.StatusAccepted, gin.H{"message": "scale up requested"})
	})

	r.POST("/api/scale/down", func(c *gin.Context) {
		sup.ScaleDown()
		c.JSON(http.StatusAccepted, gin.H{"message": "scale down requested"})
	})

	r.PUT("/api/scale/limits", func(c *gin.Context) {
		min, err1 := strconv.Atoi(c.Query("min"))
		max, err2 := strconv.Atoi(c.Query("max"))
		if err1 != nil || err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "min and max query params required"})
			return
		}
		sup.SetScaleLimits(min, max)
		c.JSON(http.StatusOK, gin.H{"min": min, "max": max})
	})
}

func parsePid(c *gin.Context) (int, error) {
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid pid"})
		return 0, fmt.Errorf("invalid pid: %w", err)
	}
	return pid, nil
}
