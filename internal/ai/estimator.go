package ai

import (
	"context"

	"github.com/devworth/devworth/internal/github"
)

// Estimate is the compensation verdict produced for one analysis request.
type Estimate struct {
	Range      string  `json:"ctc"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
}

// Estimator produces a compensation estimate for a fetched profile. It is a
// total operation: implementations substitute a fixed fallback on any
// provider or parse failure and never return an error.
type Estimator interface {
	Estimate(ctx context.Context, profile *github.Profile, experience, role string) *Estimate
}
