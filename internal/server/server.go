package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/alert"
	"btc-trend-watch/internal/series"
	"btc-trend-watch/internal/service"
)

// SessionAPI is the slice of the session the HTTP layer needs.
type SessionAPI interface {
	Status() service.Status
	VisibleRange(span series.Span) []series.PriceSample
	Rules() []alert.Rule
	CreateRule(ctx context.Context, threshold decimal.Decimal, condition alert.Condition) (alert.Rule, error)
	DeleteRule(ctx context.Context, id string) error
}

var _ SessionAPI = (*service.Session)(nil)

// Server exposes the dashboard state over a local JSON API.
type Server struct {
	addr    string
	session SessionAPI
	logger  zerolog.Logger
	engine  *gin.Engine
}

// New builds the router. addr is the listen address for Run.
func New(addr string, session SessionAPI, logger zerolog.Logger) *Server {
	s := &Server{
		addr:    addr,
		session: session,
		logger:  logger.With().Str("component", "server").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/series", s.handleSeries)
	api.GET("/outlook", s.handleOutlook)
	api.GET("/alerts", s.handleAlertsList)
	api.POST("/alerts", s.handleAlertsCreate)
	api.DELETE("/alerts/:id", s.handleAlertsDelete)

	s.engine = r
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("dashboard API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Status())
}

type seriesResponse struct {
	Range   string               `json:"range"`
	Samples []series.PriceSample `json:"samples"`
}

func (s *Server) handleSeries(c *gin.Context) {
	name := c.DefaultQuery("range", string(series.Span1H))
	span, err := series.ParseSpan(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "valid": series.SpanNames()})
		return
	}

	samples := s.session.VisibleRange(span)
	if samples == nil {
		samples = []series.PriceSample{}
	}
	c.JSON(http.StatusOK, seriesResponse{Range: string(span), Samples: samples})
}

func (s *Server) handleOutlook(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Status().Outlook)
}

func (s *Server) handleAlertsList(c *gin.Context) {
	rules := s.session.Rules()
	if rules == nil {
		rules = []alert.Rule{}
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "capacity": alert.MaxRules})
}

type createAlertRequest struct {
	Threshold string `json:"threshold" binding:"required"`
	Condition string `json:"condition" binding:"required"`
}

func (s *Server) handleAlertsCreate(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	threshold, err := decimal.NewFromString(req.Threshold)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a decimal number"})
		return
	}
	condition, err := alert.ParseCondition(req.Condition)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := s.session.CreateRule(c.Request.Context(), threshold, condition)
	switch {
	case errors.Is(err, alert.ErrCapacity):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, alert.ErrInvalidThreshold):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, rule)
	}
}

func (s *Server) handleAlertsDelete(c *gin.Context) {
	err := s.session.DeleteRule(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, alert.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.Status(http.StatusNoContent)
	}
}
