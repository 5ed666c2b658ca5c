package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devworth/devworth/internal/httpapi"
	"github.com/devworth/devworth/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the devworth HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "host to listen on (overrides config)")
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides config)")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serve() {
	ctx := context.Background()

	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		lg.Fatal("getting a config", zap.Error(err))
	}

	lg.Info("starting devworth", zap.String("version", version))

	fetcher := buildFetcher(ctx, config, lg)
	estimator := buildEstimator(ctx, config, lg)
	st := buildStore(config, lg)

	server, err := httpapi.NewServer(fetcher, estimator, st, lg, &httpapi.Config{
		Host: config.Server.Host,
		Port: config.Server.Port,
	})
	if err != nil {
		lg.Fatal("building http server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		lg.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		lg.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Warn("shutdown incomplete", zap.Error(err))
	}

	st.Close(shutdownCtx)
}
