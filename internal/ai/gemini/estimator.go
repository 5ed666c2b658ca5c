package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/devworth/devworth/internal/ai"
	"github.com/devworth/devworth/internal/github"
	"github.com/devworth/devworth/internal/logger"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Estimator turns a fetched profile into a compensation estimate via a
// generative model. It never fails: provider errors and malformed responses
// each collapse into their own fixed fallback estimate.
type Estimator struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	timeout   time.Duration
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	generateTimeout     = 30 * time.Second

	notProvided = "Not provided"
)

// Fallbacks are part of the user-facing contract; the exact strings are
// asserted by callers and must not drift.
var (
	upstreamFallback = ai.Estimate{
		Range:      "₹4,00,000 – ₹10,00,000",
		Message:    "Technical difficulties prevented proper analysis. This is a conservative estimate based on your experience bracket. Get your profile analyzed properly for accurate numbers.",
		Confidence: 30,
	}

	malformedFallback = ai.Estimate{
		Range:      "₹6,00,000 – ₹12,00,000",
		Message:    "Analysis system hiccup, but let's be real - this estimate is based on limited data. Your actual worth depends heavily on interview performance and company budget. Don't take this as gospel.",
		Confidence: 45,
	}
)

func NewEstimator(generator contentGenerator, log *zap.Logger, maxLogLength int) *Estimator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Estimator{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
		timeout:   generateTimeout,
	}
}

// Estimate runs one generation round for the profile. No retries: the first
// provider failure is terminal for the request and yields the upstream
// fallback, a response that cannot be parsed yields the malformed fallback.
func (e *Estimator) Estimate(ctx context.Context, profile *github.Profile, experience, role string) *ai.Estimate {
	prompt := buildPrompt(profile, experience, role)

	e.logger.Debug("gemini estimate request",
		zap.String("username", profile.User.Login),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		e.logger.Warn("estimate generation failed, using upstream fallback",
			zap.String("username", profile.User.Login),
			zap.Error(err),
		)
		fallback := upstreamFallback
		return &fallback
	}

	e.logger.Debug("gemini estimate response",
		zap.String("username", profile.User.Login),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	estimate, reason := ParseEstimate(raw)
	if reason != "" {
		e.logger.Warn("estimate response unusable, using parse fallback",
			zap.String("username", profile.User.Login),
			zap.String("reason", reason),
			zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
		)
		fallback := malformedFallback
		return &fallback
	}

	return &estimate
}

// ParseEstimate extracts a strict estimate object from free-form model
// output. It returns the estimate and an empty reason on success, or a
// zero estimate and the reason the text was rejected. The confidence of a
// successful parse is always clamped into [0,100].
func ParseEstimate(raw string) (ai.Estimate, string) {
	cleaned := extractJSON(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return ai.Estimate{}, "no JSON object found"
	}
	cleaned = cleaned[start : end+1]

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return ai.Estimate{}, fmt.Sprintf("invalid JSON: %v", err)
	}

	ctc, ok := data["ctc"].(string)
	if !ok || strings.TrimSpace(ctc) == "" {
		return ai.Estimate{}, "missing ctc field"
	}

	message, ok := data["message"].(string)
	if !ok || strings.TrimSpace(message) == "" {
		return ai.Estimate{}, "missing message field"
	}

	confidence, ok := data["confidence"].(float64)
	if !ok {
		return ai.Estimate{}, "missing numeric confidence field"
	}

	return ai.Estimate{
		Range:      strings.TrimSpace(ctc),
		Message:    strings.TrimSpace(message),
		Confidence: clamp(confidence, 0, 100),
	}, ""
}

// extractJSON drops every code-fence marker and keeps the surrounding text;
// the greedy brace match in ParseEstimate finds the object wherever it sits.
func extractJSON(raw string) string {
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")
	raw = strings.Trim(strings.TrimSpace(raw), "`")
	return strings.TrimSpace(raw)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func buildPrompt(profile *github.Profile, experience, role string) string {
	stats := profile.Stats
	user := profile.User

	avgStars := "0"
	if user.PublicRepos > 0 {
		avgStars = strconv.FormatFloat(float64(stats.TotalStars)/float64(user.PublicRepos), 'f', 1, 64)
	}

	languages := strings.Join(stats.TopLanguages(len(stats.Languages)), ", ")
	top := strings.Join(stats.TopLanguages(3), ", ")

	replacer := strings.NewReplacer(
		"{{USERNAME}}", user.Login,
		"{{NAME}}", orNotProvided(user.Name),
		"{{BIO}}", orNotProvided(user.Bio),
		"{{PUBLIC_REPOS}}", strconv.Itoa(user.PublicRepos),
		"{{FOLLOWERS}}", strconv.Itoa(user.Followers),
		"{{FOLLOWING}}", strconv.Itoa(user.Following),
		"{{ACCOUNT_AGE}}", github.AccountAge(user.CreatedAt, time.Now()),
		"{{LOCATION}}", orNotProvided(user.Location),
		"{{COMPANY}}", orNotProvided(user.Company),
		"{{TOTAL_STARS}}", strconv.Itoa(stats.TotalStars),
		"{{TOTAL_FORKS}}", strconv.Itoa(stats.TotalForks),
		"{{LANGUAGES}}", orNotProvided(languages),
		"{{LANGUAGE_COUNT}}", strconv.Itoa(len(stats.Languages)),
		"{{RECENT_ACTIVITY}}", strconv.Itoa(stats.RecentActivity),
		"{{AVG_STARS}}", avgStars,
		"{{TOP_LANGUAGES}}", orNotProvided(top),
		"{{REPOS}}", repoLines(profile.Repos),
		"{{ROLE}}", role,
		"{{EXPERIENCE}}", experience,
	)

	return replacer.Replace(promptTemplate)
}

// repoLines renders the first five repositories for the prompt.
func repoLines(repos []github.RepoSummary) string {
	if len(repos) > 5 {
		repos = repos[:5]
	}

	if len(repos) == 0 {
		return "- no public repositories"
	}

	lines := make([]string, 0, len(repos))
	for _, repo := range repos {
		language := repo.Language
		if language == "" {
			language = "Unknown"
		}
		description := repo.Description
		if description == "" {
			description = "No description"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s | stars %d | forks %d | %s",
			repo.Name, language, repo.Stars, repo.Forks, description))
	}

	return strings.Join(lines, "\n")
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return notProvided
	}
	return s
}
