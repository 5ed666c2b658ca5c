package store

import (
	"fmt"
	"time"

	"github.com/devworth/devworth/internal/ai"
	"github.com/devworth/devworth/internal/github"
	"github.com/mitchellh/mapstructure"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record is one persisted analysis. It is a denormalized copy of the
// request inputs, the estimate and a subset of the aggregate stats; written
// once, never updated.
type Record struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GithubUsername    string             `bson:"githubUsername" json:"githubUsername"`
	GithubURL         string             `bson:"githubUrl" json:"githubUrl"`
	YearsOfExperience string             `bson:"yearsOfExperience" json:"yearsOfExperience"`
	TargetRole        string             `bson:"targetRole" json:"targetRole"`
	CTC               string             `bson:"ctc" json:"ctc"`
	Message           string             `bson:"message" json:"message"`
	Confidence        float64            `bson:"confidence" json:"confidence"`
	GithubData        RecordStats        `bson:"githubData" json:"githubData"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	IPAddress         string             `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
}

// RecordStats is the stats snapshot stored alongside an estimate.
type RecordStats struct {
	PublicRepos    int            `bson:"publicRepos" json:"publicRepos" mapstructure:"publicRepos"`
	Followers      int            `bson:"followers" json:"followers" mapstructure:"followers"`
	Following      int            `bson:"following" json:"following" mapstructure:"following"`
	TotalStars     int            `bson:"totalStars" json:"totalStars" mapstructure:"totalStars"`
	TotalForks     int            `bson:"totalForks" json:"totalForks" mapstructure:"totalForks"`
	Languages      map[string]int `bson:"languages" json:"languages" mapstructure:"languages"`
	RecentActivity int            `bson:"recentActivity" json:"recentActivity" mapstructure:"recentActivity"`
	AccountAge     string         `bson:"accountAge" json:"accountAge" mapstructure:"accountAge"`
	Location       string         `bson:"location,omitempty" json:"location,omitempty" mapstructure:"location"`
	Company        string         `bson:"company,omitempty" json:"company,omitempty" mapstructure:"company"`
}

// DecodeStats converts the free-form stats object of an inbound save
// request into the typed snapshot. Numeric fields arriving as JSON floats
// are coerced.
func DecodeStats(input any) (RecordStats, error) {
	var stats RecordStats

	cfg := &mapstructure.DecoderConfig{
		Result:           &stats,
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return stats, fmt.Errorf("build stats decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return stats, fmt.Errorf("decode stats: %w", err)
	}

	return stats, nil
}

// NewRecord assembles a record from the pipeline outputs. CreatedAt is
// assigned at save time, not here.
func NewRecord(profile *github.Profile, estimate *ai.Estimate, sourceURL, experience, role, ip string, now time.Time) *Record {
	return &Record{
		GithubUsername:    profile.User.Login,
		GithubURL:         sourceURL,
		YearsOfExperience: experience,
		TargetRole:        role,
		CTC:               estimate.Range,
		Message:           estimate.Message,
		Confidence:        estimate.Confidence,
		IPAddress:         ip,
		GithubData: RecordStats{
			PublicRepos:    profile.User.PublicRepos,
			Followers:      profile.User.Followers,
			Following:      profile.User.Following,
			TotalStars:     profile.Stats.TotalStars,
			TotalForks:     profile.Stats.TotalForks,
			Languages:      profile.Stats.Languages,
			RecentActivity: profile.Stats.RecentActivity,
			AccountAge:     github.AccountAge(profile.User.CreatedAt, now),
			Location:       profile.User.Location,
			Company:        profile.User.Company,
		},
	}
}
