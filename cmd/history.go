package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/devworth/devworth/internal/logger"
	"github.com/devworth/devworth/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var historyCmd = &cobra.Command{
	Use:   "history [username]",
	Short: "List stored analyses, newest first",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := ""
		if len(args) > 0 {
			username = args[0]
		}
		history(cmd, username)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 10, "maximum number of analyses to list")
}

func history(cmd *cobra.Command, username string) {
	ctx := context.Background()

	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		lg.Fatal("getting a config", zap.Error(err))
	}

	st := buildStore(config, lg)
	defer st.Close(ctx)

	limit, _ := cmd.Flags().GetInt("limit")

	var records []store.Record
	if username == "" {
		records, err = st.Recent(ctx, limit)
	} else {
		records, err = st.History(ctx, username, limit)
	}

	if errors.Is(err, store.ErrNotConfigured) {
		lg.Fatal("document store is not configured",
			zap.String("hint", "set mongodb.uri in the config or the MONGODB_URI environment variable"),
		)
	}
	if err != nil {
		lg.Fatal("querying analyses", zap.Error(err))
	}

	if len(records) == 0 {
		lg.Info("no stored analyses found", zap.String("username", username))
		return
	}

	pretty, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		lg.Fatal("rendering analyses", zap.Error(err))
	}

	fmt.Println(string(pretty))
}
