package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Max value for repositories per page accepted by the listing endpoint.
const perPage = 100

// Client fetches public profile and repository data from the GitHub API.
type Client struct {
	api    *gh.Client
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Client. The token is optional: without it requests run
// unauthenticated and are subject to stricter rate limits.
func New(ctx context.Context, logger *zap.Logger, token string) *Client {
	hc := &http.Client{Timeout: 10 * time.Second}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
		hc.Timeout = 10 * time.Second
	}

	return &Client{
		api:    gh.NewClient(hc),
		logger: logger,
		now:    time.Now,
	}
}

// SetBaseURL points the client at an alternative API endpoint.
func (c *Client) SetBaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}

	c.api.BaseURL = parsed
	return nil
}

// Fetch returns the profile snapshot, up to 100 most recently updated
// repositories owned by the user, and the aggregate stats derived from
// them. Any API error collapses into a single fetch error: the caller gets
// no partial results and no distinction between a missing user and a
// transient failure.
func (c *Client) Fetch(ctx context.Context, username string) (*Profile, error) {
	c.logger.Debug("fetching github user", zap.String("username", username))

	user, _, err := c.api.Users.Get(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %q: %w", username, err)
	}

	opts := &gh.RepositoryListOptions{
		Type:        "owner",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	repos, _, err := c.api.Repositories.List(ctx, username, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch repositories for %q: %w", username, err)
	}

	c.logger.Debug("got github listing",
		zap.String("username", username),
		zap.Int("repos", len(repos)),
	)

	profile := &Profile{
		User: Snapshot{
			Login:       user.GetLogin(),
			Name:        user.GetName(),
			Bio:         user.GetBio(),
			PublicRepos: user.GetPublicRepos(),
			Followers:   user.GetFollowers(),
			Following:   user.GetFollowing(),
			CreatedAt:   user.GetCreatedAt().Time,
			Location:    user.GetLocation(),
			Company:     user.GetCompany(),
		},
		Repos: make([]RepoSummary, 0, len(repos)),
	}

	for _, repo := range repos {
		profile.Repos = append(profile.Repos, RepoSummary{
			Name:        repo.GetName(),
			Description: repo.GetDescription(),
			Language:    repo.GetLanguage(),
			Stars:       repo.GetStargazersCount(),
			Forks:       repo.GetForksCount(),
			Size:        repo.GetSize(),
			CreatedAt:   repo.GetCreatedAt().Time,
			UpdatedAt:   repo.GetUpdatedAt().Time,
		})
	}

	profile.Stats = Aggregate(profile.Repos, c.now())

	return profile, nil
}
