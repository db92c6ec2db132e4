package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"RegimeChain/internal/di"
	"RegimeChain/internal/usecase"
	"RegimeChain/pkg/config"
	applogger "RegimeChain/pkg/logger"
)

var (
	configPath   string
	replayFile   string
	replaySymbol string
	replayOut    string
)

var rootCmd = &cobra.Command{
	Use:           "regimechain",
	Short:         "Per-symbol market regime detection and transition prediction",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Ingest live bars, publish predictions and serve the API",
	RunE:  runServe,
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a CSV of bars through a fresh engine and print predictions as JSON lines",
	Long: `Replay reads symbol,timestamp,open,high,low,close,volume rows, runs them
through the same validation and engine as the live service with no sinks
attached, and writes one prediction per accepted bar.

Example usage:
  regimechain replay --file bars.csv
  regimechain replay --file bars.csv --symbol AAPL --out preds.jsonl`,
	RunE: runReplay,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	replayCmd.Flags().StringVar(&replayFile, "file", "", "CSV file of bars")
	replayCmd.Flags().StringVar(&replaySymbol, "symbol", "", "only replay this symbol")
	replayCmd.Flags().StringVar(&replayOut, "out", "", "output file (default stdout)")
	_ = replayCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(serveCmd, replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run blocks until a signal arrives.
	return app.Run(ctx)
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	gate, err := di.InitializeOfflineGate(cfg)
	if err != nil {
		return fmt.Errorf("engine initialization failed: %w", err)
	}

	in, err := os.Open(replayFile)
	if err != nil {
		return err
	}
	defer in.Close()

	out := os.Stdout
	if replayOut != "" {
		f, err := os.Create(replayOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)

	log := applogger.NewWriter(os.Stderr, applogger.ParseLevel(cfg.Log.Level))
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stats, err := usecase.NewReplayer(gate, replaySymbol, log).Run(ctx, bufio.NewReader(in), w)
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	log.Info("replay finished",
		applogger.Int("rows", stats.Rows),
		applogger.Int("predictions", stats.Predictions),
		applogger.Int("rejected", stats.Rejected),
		applogger.Int("filtered", stats.Filtered),
	)
	return err
}
