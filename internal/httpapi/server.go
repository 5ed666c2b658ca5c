// Package httpapi provides the HTTP API for devworth.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/devworth/devworth/internal/ai"
	"github.com/devworth/devworth/internal/github"
	"github.com/devworth/devworth/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 10
	defaultRecentLimit  = 100
)

// ProfileFetcher fetches a normalized GitHub profile by username.
type ProfileFetcher interface {
	Fetch(ctx context.Context, username string) (*github.Profile, error)
}

// AnalysisStore is the persistence surface the API depends on.
type AnalysisStore interface {
	Configured() bool
	Save(ctx context.Context, record *store.Record) store.SaveResult
	History(ctx context.Context, username string, limit int) ([]store.Record, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server wires the analysis pipeline behind HTTP endpoints.
type Server struct {
	echo      *echo.Echo
	fetcher   ProfileFetcher
	estimator ai.Estimator
	store     AnalysisStore
	saver     *saver
	logger    *zap.Logger
	config    *Config
}

// NewServer creates the HTTP server and starts its background saver.
func NewServer(fetcher ProfileFetcher, estimator ai.Estimator, st AnalysisStore, logger *zap.Logger, cfg *Config) (*Server, error) {
	if fetcher == nil {
		return nil, errors.New("profile fetcher is required")
	}
	if estimator == nil {
		return nil, errors.New("estimator is required")
	}
	if st == nil {
		return nil, errors.New("analysis store is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8080}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		fetcher:   fetcher,
		estimator: estimator,
		store:     st,
		saver:     newSaver(st, logger, 0),
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/analyses", s.handleSaveAnalysis)
	v1.GET("/analyses", s.handleRecent)
	v1.GET("/analyses/:username", s.handleHistory)
}

// AnalyzeRequest is the request body for POST /api/v1/analyze.
type AnalyzeRequest struct {
	URL               string `json:"url"`
	YearsOfExperience string `json:"yearsOfExperience"`
	TargetRole        string `json:"targetRole"`
}

// AnalyzeResponse is the response body for POST /api/v1/analyze.
type AnalyzeResponse struct {
	Success  bool         `json:"success"`
	Username string       `json:"username"`
	Estimate *ai.Estimate `json:"estimate"`
	Stats    github.Stats `json:"stats"`
}

// SaveAnalysisRequest is the request body for POST /api/v1/analyses. The
// stats object arrives free-form and is decoded into the typed snapshot.
type SaveAnalysisRequest struct {
	GithubUsername    string  `json:"githubUsername"`
	GithubURL         string  `json:"githubUrl"`
	YearsOfExperience string  `json:"yearsOfExperience"`
	TargetRole        string  `json:"targetRole"`
	CTC               string  `json:"ctc"`
	Message           string  `json:"message"`
	Confidence        float64 `json:"confidence"`
	GithubData        any     `json:"githubData"`
}

// StatusResponse is the generic success/error envelope.
type StatusResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HistoryResponse is the response body for the history and recent reads.
type HistoryResponse struct {
	Success bool           `json:"success"`
	Data    []store.Record `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleAnalyze runs the full pipeline: extract handle, fetch profile,
// generate estimate, respond, then hand the record to the background saver.
// The response never waits on persistence.
func (s *Server) handleAnalyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid analyze request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, StatusResponse{Error: "invalid request body"})
	}

	username, ok := github.ExtractUsername(req.URL)
	if !ok {
		return c.JSON(http.StatusBadRequest, StatusResponse{Error: "not a GitHub profile URL"})
	}

	ctx := c.Request().Context()

	profile, err := s.fetcher.Fetch(ctx, username)
	if err != nil {
		s.logger.Warn("profile fetch failed",
			zap.String("username", username),
			zap.Error(err),
		)
		return c.JSON(http.StatusUnprocessableEntity, StatusResponse{Error: "GitHub profile unavailable"})
	}

	estimate := s.estimator.Estimate(ctx, profile, req.YearsOfExperience, req.TargetRole)

	record := store.NewRecord(profile, estimate, req.URL, req.YearsOfExperience, req.TargetRole, c.RealIP(), time.Now())
	s.saver.submit(record)

	return c.JSON(http.StatusOK, AnalyzeResponse{
		Success:  true,
		Username: profile.User.Login,
		Estimate: estimate,
		Stats:    profile.Stats,
	})
}

// handleSaveAnalysis stores an already-computed analysis submitted by a
// client.
func (s *Server) handleSaveAnalysis(c echo.Context) error {
	var req SaveAnalysisRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid save request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, StatusResponse{Error: "invalid request body"})
	}

	stats, err := store.DecodeStats(req.GithubData)
	if err != nil {
		s.logger.Warn("invalid stats object", zap.Error(err))
		return c.JSON(http.StatusBadRequest, StatusResponse{Error: "invalid githubData object"})
	}

	record := &store.Record{
		GithubUsername:    req.GithubUsername,
		GithubURL:         req.GithubURL,
		YearsOfExperience: req.YearsOfExperience,
		TargetRole:        req.TargetRole,
		CTC:               req.CTC,
		Message:           req.Message,
		Confidence:        req.Confidence,
		GithubData:        stats,
		IPAddress:         c.RealIP(),
	}

	result := s.store.Save(c.Request().Context(), record)
	if result.Err != nil {
		s.logger.Error("saving analysis", zap.Error(result.Err))
		return c.JSON(http.StatusInternalServerError, StatusResponse{Error: "Failed to save analysis"})
	}

	return c.JSON(http.StatusOK, StatusResponse{
		Success: true,
		ID:      result.ID,
		Skipped: result.Skipped,
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	username := c.Param("username")
	limit := limitParam(c, defaultHistoryLimit)

	records, err := s.store.History(c.Request().Context(), username, limit)
	return s.respondRecords(c, records, err)
}

func (s *Server) handleRecent(c echo.Context) error {
	limit := limitParam(c, defaultRecentLimit)

	records, err := s.store.Recent(c.Request().Context(), limit)
	return s.respondRecords(c, records, err)
}

func (s *Server) respondRecords(c echo.Context, records []store.Record, err error) error {
	if errors.Is(err, store.ErrNotConfigured) {
		return c.JSON(http.StatusServiceUnavailable, HistoryResponse{Error: "document store is not configured"})
	}
	if err != nil {
		s.logger.Error("querying analyses", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, HistoryResponse{Error: "failed to query analyses"})
	}

	return c.JSON(http.StatusOK, HistoryResponse{Success: true, Data: records})
}

func limitParam(c echo.Context, fallback int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return fallback
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}

	return limit
}

// Start runs the server until it fails or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops the listener and drains the background saver.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.saver.close()
	return err
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
