package cmd

import (
	"context"
	"fmt"

	"github.com/devworth/devworth/internal/ai"
	"github.com/devworth/devworth/internal/ai/gemini"
	"github.com/devworth/devworth/internal/github"
	"github.com/devworth/devworth/internal/logger"
	"github.com/devworth/devworth/internal/secrets"
	"github.com/devworth/devworth/internal/store"
	"go.uber.org/zap"
)

// errGenerator stands in for the Gemini client when no usable credential is
// configured. Every call errors, so the estimator serves its upstream
// fallback instead of aborting the pipeline.
type errGenerator struct {
	err error
}

func (g errGenerator) GenerateContent(_ context.Context, _ string) (string, error) {
	return "", g.err
}

// buildEstimator wires the Gemini-backed estimator. A missing or unreadable
// API key degrades estimates to the fallback rather than failing startup:
// the estimate path is contractually total.
func buildEstimator(ctx context.Context, cfg *Config, log *zap.Logger) ai.Estimator {
	estLogger := logger.WithCommonFields(log, "gemini", cfg.Gemini.Model)

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		log.Warn("gemini api key unavailable, estimates will use the fallback",
			zap.Error(err),
			zap.String("hint", "set gemini.api-key-file in the config or the GEMINI_API_KEY_FILE environment variable"),
		)
		return gemini.NewEstimator(errGenerator{err: fmt.Errorf("gemini api key: %w", err)}, estLogger, cfg.Gemini.MaxLogLength)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		log.Warn("gemini client unavailable, estimates will use the fallback", zap.Error(err))
		return gemini.NewEstimator(errGenerator{err: err}, estLogger, cfg.Gemini.MaxLogLength)
	}

	return gemini.NewEstimator(generator, logger.WithCommonFields(log, "gemini", generator.Model()), cfg.Gemini.MaxLogLength)
}

// buildFetcher wires the GitHub client. The token is optional; without one
// requests run unauthenticated under stricter rate limits.
func buildFetcher(ctx context.Context, cfg *Config, log *zap.Logger) *github.Client {
	token := ""
	if cfg.GitHub.TokenFile != "" {
		loaded, err := secrets.Load(secrets.Source{
			Name: "github token",
			File: cfg.GitHub.TokenFile,
		})
		if err != nil {
			log.Warn("github token unavailable, continuing unauthenticated", zap.Error(err))
		} else {
			token = loaded
		}
	}

	return github.New(ctx, log, token)
}

// buildStore wires the document store. An empty URI is a supported
// deployment mode: every save skips and reads report the store as absent.
func buildStore(cfg *Config, log *zap.Logger) *store.Store {
	st := store.New(cfg.MongoDB.URI, log)
	if !st.Configured() {
		log.Info("document store not configured, persistence disabled",
			zap.String("hint", "set mongodb.uri in the config or the MONGODB_URI environment variable"),
		)
	}
	return st
}
