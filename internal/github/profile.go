package github

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Snapshot holds the normalized fields of a GitHub user profile.
type Snapshot struct {
	Login       string    `json:"login"`
	Name        string    `json:"name"`
	Bio         string    `json:"bio"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
	Location    string    `json:"location"`
	Company     string    `json:"company"`
}

// RepoSummary is the per-repository slice of the listing the fetcher keeps.
type RepoSummary struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stats are the aggregate totals derived from a repository listing.
type Stats struct {
	TotalStars     int            `json:"total_stars"`
	TotalForks     int            `json:"total_forks"`
	Languages      map[string]int `json:"languages"`
	RecentActivity int            `json:"recent_activity"`
}

// Profile bundles everything one fetch produces.
type Profile struct {
	User  Snapshot      `json:"user"`
	Repos []RepoSummary `json:"repos"`
	Stats Stats         `json:"stats"`
}

// ExtractUsername pulls the username out of a github.com profile URL.
// It returns false when the URL does not parse, points at a foreign host
// or carries no path segment.
func ExtractUsername(rawurl string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(rawurl))
	if err != nil {
		return "", false
	}

	host := strings.ToLower(parsed.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return "", false
	}

	for _, segment := range strings.Split(parsed.Path, "/") {
		if segment != "" {
			return segment, true
		}
	}

	return "", false
}

// Aggregate computes totals in a single pass over the listing. Repositories
// without a language contribute to no language bucket. RecentActivity counts
// repositories updated within the trailing six calendar months of now.
func Aggregate(repos []RepoSummary, now time.Time) Stats {
	stats := Stats{Languages: make(map[string]int)}

	cutoff := now.AddDate(0, -6, 0)

	for _, repo := range repos {
		stats.TotalStars += repo.Stars
		stats.TotalForks += repo.Forks

		if repo.Language != "" {
			stats.Languages[repo.Language] += repo.Size
		}

		if repo.UpdatedAt.After(cutoff) {
			stats.RecentActivity++
		}
	}

	return stats
}

// TopLanguages returns up to n language names ordered by cumulative size,
// largest first. Ties break alphabetically to keep the output stable.
func (s Stats) TopLanguages(n int) []string {
	names := make([]string, 0, len(s.Languages))
	for name := range s.Languages {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		if s.Languages[names[i]] != s.Languages[names[j]] {
			return s.Languages[names[i]] > s.Languages[names[j]]
		}
		return names[i] < names[j]
	})

	if len(names) > n {
		names = names[:n]
	}

	return names
}

// AccountAge renders the age of an account as a rough human string.
func AccountAge(createdAt, now time.Time) string {
	if createdAt.IsZero() || createdAt.After(now) {
		return "unknown"
	}

	years := 0
	for createdAt.AddDate(years+1, 0, 0).Before(now) {
		years++
	}

	switch years {
	case 0:
		return "less than a year"
	case 1:
		return "1 year"
	default:
		return fmt.Sprintf("%d years", years)
	}
}
