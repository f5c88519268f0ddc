package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/document"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/render"
	"github.com/ppiankov/claimcheck/internal/util"
)

// Checker runs the claim pipeline; *pipeline.Pipeline satisfies it
type Checker interface {
	Run(ctx context.Context, text string) (*model.Report, error)
	RunSource(ctx context.Context, source string) (*model.Report, error)
}

// CheckRequest is the POST /v1/check payload. Exactly one of Text or URL is required.
type CheckRequest struct {
	Text   string `json:"text"`
	URL    string `json:"url"`
	Format string `json:"format"` // json (default) or markdown
}

// Server exposes the pipeline over HTTP
type Server struct {
	checker      Checker
	maxBodyBytes int64
	logger       *slog.Logger
	version      string
	resolver     util.HostResolver
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version reported by /healthz
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithResolver sets the resolver used to vet document URLs
func WithResolver(r util.HostResolver) Option {
	return func(s *Server) { s.resolver = r }
}

// New creates a server; maxBodyBytes caps request bodies
func New(checker Checker, maxBodyBytes int64, opts ...Option) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = model.DefaultConfig().Server.MaxBodyBytes
	}
	s := &Server{
		checker:      checker,
		maxBodyBytes: maxBodyBytes,
		logger:       logging.Default(),
		version:      "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router constructs a Gin engine with registered routes
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealth)
	v1 := r.Group("/v1")
	v1.POST("/check", s.handleCheck)
	return r
}

// ListenAndServe serves until ctx is done, then drains in-flight requests
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return goerr.Wrap(err, "listen", goerr.V("addr", addr))
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.logger.Info("server.shutdown")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "shutdown")
		}
		return nil
	}
}

// requestLogger tags each request with a req_id and puts the logger in its context
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)

		log := s.logger.With("req_id", reqID)
		c.Request = c.Request.WithContext(logging.With(c.Request.Context(), log))

		c.Next()

		log.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
}

func (s *Server) handleCheck(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format != "" && format != "json" && format != "markdown" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or markdown"})
		return
	}

	hasText := strings.TrimSpace(req.Text) != ""
	hasURL := strings.TrimSpace(req.URL) != ""
	if hasText == hasURL {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of text or url is required"})
		return
	}

	ctx := c.Request.Context()
	var (
		report *model.Report
		err    error
	)
	if hasURL {
		// Only public remote documents; never local paths or internal hosts
		u, uerr := util.RemoteURL(ctx, req.URL, s.resolver)
		if uerr != nil {
			logging.From(ctx).Warn("http.check.url_rejected", "url", req.URL, "error", uerr)
			c.JSON(http.StatusBadRequest, gin.H{"error": urlRejection(uerr)})
			return
		}
		report, err = s.checker.RunSource(ctx, u.String())
	} else {
		report, err = s.checker.Run(ctx, req.Text)
	}
	if err != nil {
		status := statusFor(err)
		logging.From(ctx).Warn("http.check.failed", "status", status, "error", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if format == "markdown" {
		var buf bytes.Buffer
		if err := render.Markdown(&buf, report); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", buf.Bytes())
		return
	}
	c.JSON(http.StatusOK, report)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, document.ErrDisallowedByRobots):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func urlRejection(err error) string {
	switch {
	case errors.Is(err, util.ErrNotRemoteURL):
		return util.ErrNotRemoteURL.Error()
	case errors.Is(err, util.ErrPrivateAddress):
		return util.ErrPrivateAddress.Error()
	default:
		return "url host could not be resolved"
	}
}
