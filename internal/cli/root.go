package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/feedsync/internal/control"
	"github.com/vietddude/feedsync/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "feedsync",
	Short: "Feedsync paging service",
	Long: `Feedsync pages posts, comments and replies from the content gateway and scans
like events from the chain, newest first, with a persisted checkpoint per wallet.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
	Run: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve collections over HTTP",
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

func logLevel(name string) slog.Level {
	if isDebug {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// loadConfig reads the config file and installs the logger it asks for. Failures exit.
func loadConfig() *config.AppConfig {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	stylelog.InitDefault(&tint.Options{
		Level:      logLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
	})
	return cfg
}

// newApp builds the application from the config file. Failures exit.
func newApp(ctx context.Context) *control.App {
	app, err := control.NewApp(ctx, *loadConfig())
	if err != nil {
		slog.Error("Failed to initialize feedsync", "error", err)
		os.Exit(1)
	}
	return app
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newApp(ctx)
	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start feedsync", "error", err)
		os.Exit(1)
	}
	slog.Info("Feedsync serving", "config", cfgPath)

	<-ctx.Done()
	stop()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
