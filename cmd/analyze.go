package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/devworth/devworth/internal/github"
	"github.com/devworth/devworth/internal/logger"
	"github.com/devworth/devworth/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var savePrompt = promptui.Select{
	Label: "Save this analysis to history?",
	Items: []string{PromptYes, PromptNo},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <github-profile-url>",
	Short: "Estimate the worth of a single GitHub profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		analyze(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("experience", "e", "", "experience bracket, e.g. \"3-5 years\"")
	analyzeCmd.Flags().StringP("role", "r", "", "target role, e.g. \"Backend Engineer\"")
	analyzeCmd.Flags().BoolP("yes", "y", false, "save to history without asking")

	analyzeCmd.MarkFlagRequired("experience")
	analyzeCmd.MarkFlagRequired("role")
}

func analyze(cmd *cobra.Command, url string) {
	ctx := context.Background()

	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		lg.Fatal("getting a config", zap.Error(err))
	}

	username, ok := github.ExtractUsername(url)
	if !ok {
		lg.Fatal("not a valid GitHub profile URL",
			zap.String("url", url),
			zap.String("hint", "expected https://github.com/<username>"),
		)
	}

	experience, _ := cmd.Flags().GetString("experience")
	role, _ := cmd.Flags().GetString("role")

	fetcher := buildFetcher(ctx, config, lg)
	estimator := buildEstimator(ctx, config, lg)
	st := buildStore(config, lg)
	defer st.Close(ctx)

	profile, err := fetcher.Fetch(ctx, username)
	if err != nil {
		lg.Fatal("github profile unavailable", zap.Error(err))
	}

	lg.Info("profile fetched",
		zap.String("username", profile.User.Login),
		zap.Int("repos", len(profile.Repos)),
		zap.Int("total_stars", profile.Stats.TotalStars),
	)

	estimate := estimator.Estimate(ctx, profile, experience, role)

	fmt.Printf("\n%s (%s, %s)\n", profile.User.Login, experience, role)
	fmt.Printf("Estimated CTC: %s\n", estimate.Range)
	fmt.Printf("Confidence:    %.0f%%\n", estimate.Confidence)
	fmt.Printf("Verdict:       %s\n\n", estimate.Message)

	save := true
	if autoYes, _ := cmd.Flags().GetBool("yes"); !autoYes {
		_, action, err := savePrompt.Run()
		if err != nil {
			lg.Fatal("exiting", zap.Error(err))
		}
		save = action == PromptYes
	}

	if !save {
		return
	}

	record := store.NewRecord(profile, estimate, url, experience, role, "", time.Now())

	result := st.Save(ctx, record)
	switch {
	case result.Err != nil:
		lg.Warn("saving analysis failed", zap.Error(result.Err))
	case result.Skipped:
		lg.Info("save skipped, document store not configured")
	default:
		lg.Info("analysis saved", zap.String("id", result.ID))
	}
}
