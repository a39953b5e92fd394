package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"deskresearch/api"
	"deskresearch/config"
	"deskresearch/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	debug      bool

	runQuery string
	runEmail string
	runIndex string
)

var rootCmd = &cobra.Command{
	Use:           "deskresearch",
	Short:         "Research assistant over recent arXiv papers",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one research request and print the result as JSON",
	RunE:  runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "development logging")

	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "research question")
	runCmd.Flags().StringVar(&runEmail, "email", "", "deliver the report to this address")
	runCmd.Flags().StringVar(&runIndex, "index", "qdrant", "vector index: qdrant or memory")
	_ = runCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(serveCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runServe(cmd *cobra.Command, args []string) error {
	// =========
	// Config
	// =========
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(config.Needs{Qdrant: true, Mail: true}); err != nil {
		return err
	}

	// =========
	// Logging
	// =========
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =========
	// Run ledger
	// =========
	runs, err := storage.OpenRunStore(cfg.RunsDBPath)
	if err != nil {
		return err
	}
	defer runs.Close()

	a, err := buildApp(ctx, cfg, runs, "qdrant", logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// =========
	// HTTP
	// =========
	var submitter api.Submitter
	if a.dispatcher != nil {
		submitter = a.dispatcher
	}
	server := api.NewServer(strconv.Itoa(cfg.AppPort), submitter, runs, a.components, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if a.dispatcher != nil {
		if err := a.dispatcher.Wait(shutdownCtx); err != nil {
			logger.Warn("in-flight runs did not finish", zap.Error(err))
		}
	}
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	needs := config.Needs{Qdrant: runIndex != indexMemory, Mail: runEmail != ""}
	if err := cfg.Validate(needs); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, storage.NewMemoryRunStore(), runIndex, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.dispatcher == nil {
		return errors.New("research engine unavailable")
	}

	run, err := a.dispatcher.Execute(ctx, runQuery, runEmail)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
