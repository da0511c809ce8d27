// Package diagnostics serves a local debug HTTP surface over the captured
// logs, network history and pending crash record.
package diagnostics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kerlexov/bugreport-go-sdk/pkg/crash"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
	"github.com/kerlexov/bugreport-go-sdk/pkg/issue"
	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"github.com/kerlexov/bugreport-go-sdk/pkg/netmon"
)

const shutdownTimeout = 5 * time.Second

// ReportSubmitter files a hand-written report.
type ReportSubmitter interface {
	SubmitReport(ctx context.Context, form issue.Form) (string, error)
}

type Option func(*Server)

func WithNetwork(monitor *netmon.Monitor) Option {
	return func(s *Server) {
		s.network = monitor
	}
}

func WithCrashRecords(records *crash.RecordStore) Option {
	return func(s *Server) {
		s.records = records
	}
}

func WithReporter(reporter ReportSubmitter) Option {
	return func(s *Server) {
		s.reporter = reporter
	}
}

// WithMetrics mounts handler at /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithMaxLogLines caps how many lines GET /debug/logs returns.
func WithMaxLogLines(n int) Option {
	return func(s *Server) {
		s.maxLogLines = n
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server represents the diagnostics HTTP server
type Server struct {
	store       *logstore.Store
	network     *netmon.Monitor
	records     *crash.RecordStore
	reporter    ReportSubmitter
	metrics     http.Handler
	maxLogLines int
	logger      *zap.Logger
	started     time.Time

	router *gin.Engine
	server *http.Server
}

func NewServer(store *logstore.Store, opts ...Option) *Server {
	s := &Server{
		store:   store,
		logger:  zap.NewNop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Route dumps from gin's debug mode would land on the host's stdout
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(securityHeaders())
	s.registerRoutes(router)
	s.router = router
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled and then shuts down.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("diagnostics server started", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealthCheck)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	debug := router.Group("/debug")
	{
		debug.GET("/logs", s.handleLogs)
		debug.DELETE("/logs", s.handleClearLogs)
		debug.GET("/network", s.handleNetwork)
		debug.GET("/crash", s.handlePendingCrash)
		debug.POST("/report", s.handleReport)
	}
}

func (s *Server) handleHealthCheck(c *gin.Context) {
	response := gin.H{
		"status":         "healthy",
		"timestamp":      time.Now().UTC(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"logs": gin.H{
			"size":     s.store.Len(),
			"capacity": s.store.Cap(),
		},
	}
	if s.network != nil {
		response["network_monitoring"] = s.network.IsActive()
	}
	if s.records != nil {
		response["pending_crash"] = s.records.Exists()
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) handleLogs(c *gin.Context) {
	lines := s.store.Lines()

	limit := queryInt(c, "lines", 0)
	if s.maxLogLines > 0 && (limit <= 0 || limit > s.maxLogLines) {
		limit = s.maxLogLines
	}
	if limit > 0 && limit < len(lines) {
		lines = lines[len(lines)-limit:]
	}

	c.JSON(http.StatusOK, gin.H{
		"lines":    lines,
		"count":    len(lines),
		"capacity": s.store.Cap(),
	})
}

func (s *Server) handleClearLogs(c *gin.Context) {
	s.store.Clear()

	c.JSON(http.StatusOK, gin.H{
		"message":   "Logs cleared",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleNetwork(c *gin.Context) {
	if s.network == nil {
		abortWithError(c, http.StatusNotFound, "NETWORK_DISABLED", "Network monitoring is not configured", nil)
		return
	}

	requests := s.network.Requests(queryInt(c, "count", 0))
	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"count":    len(requests),
		"active":   s.network.IsActive(),
	})
}

func (s *Server) handlePendingCrash(c *gin.Context) {
	if s.records == nil {
		abortWithError(c, http.StatusNotFound, "CRASH_DISABLED", "Crash capture is not configured", nil)
		return
	}

	rec, err := s.records.Load()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "CRASH_RECORD_ERROR", "Failed to read crash record", err)
		return
	}
	if rec == nil {
		abortWithError(c, http.StatusNotFound, "NO_PENDING_CRASH", "No pending crash record", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"crash": rec,
	})
}

func (s *Server) handleReport(c *gin.Context) {
	if s.reporter == nil {
		abortWithError(c, http.StatusServiceUnavailable, "REPORTER_DISABLED", "Report submission is not configured", nil)
		return
	}

	var form issue.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", err)
		return
	}
	if err := form.Validate(); err != nil {
		abortWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Report validation failed", err)
		return
	}

	url, err := s.reporter.SubmitReport(c.Request.Context(), form)
	if err != nil {
		s.logger.Warn("report submission failed", zap.Error(err))
		abortWithError(c, statusFor(err), "SUBMISSION_FAILED", "Failed to submit report", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Report submitted",
		"url":     url,
	})
}

// securityHeaders keeps debug payloads, which may hold captured secrets,
// out of caches and frames.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Cache-Control", "no-store")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

func statusFor(err error) int {
	switch errs.TypeOf(err) {
	case errs.ErrTypeConfig, errs.ErrTypeCircuitOpen:
		return http.StatusServiceUnavailable
	case errs.ErrTypeInvalidArgument:
		return http.StatusBadRequest
	case errs.ErrTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func abortWithError(c *gin.Context, status int, code, message string, err error) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if err != nil {
		body["details"] = err.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
