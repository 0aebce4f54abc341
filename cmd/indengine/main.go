package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"screening-systemv1/config"
	"screening-systemv1/internal/indengine"
	"screening-systemv1/internal/indicator"
	"screening-systemv1/internal/logger"
	"screening-systemv1/internal/marketdata"
	sqlitestore "screening-systemv1/internal/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "indengine",
		Short: "Indicator engine: cached technical indicators over quote history",
		Long: `indengine builds the configured indicators for every symbol of the quote
source, persisting each (indicator, symbol) result so unchanged history is
never recomputed. With http_addr set it keeps serving /healthz, /metrics and
POST /rebuild.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			svc, err := indengine.New(cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return svc.Run(ctx)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file path")

	rootCmd.AddCommand(newBuildCmd(&configPath))
	rootCmd.AddCommand(newTypesCmd())
	rootCmd.AddCommand(newImportCmd(&configPath))
	return rootCmd
}

// newBuildCmd builds once and prints a summary per indicator.
func newBuildCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "build [TYPE[:key=value;...]]...",
		Short: "Build indicators once and exit",
		Long: `Build the given indicators, or the configured set when none is given.
Example: indengine build SMA:50 "MACD:fast=8;slow=21" TrailingStops`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			specs := cfg.Indicators
			if len(args) > 0 {
				if specs, err = config.ParseIndicatorSpecs(strings.Join(args, ",")); err != nil {
					return err
				}
			}

			svc, err := indengine.New(cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			built, err := svc.Build(ctx, specs)
			if err != nil {
				return err
			}
			for _, ind := range built {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ind.Name, strings.Join(ind.AttributeNames(), ","))
			}
			return nil
		},
	}
}

// newTypesCmd lists the registered indicator types with their defaults.
func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List indicator types, default names and output columns",
		Run: func(cmd *cobra.Command, args []string) {
			for _, typ := range indicator.Types() {
				d, _ := indicator.Lookup(typ)
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-28s %s\n", typ, d.New().UniqueName(), strings.Join(d.Columns, ","))
			}
		},
	}
}

// newImportCmd loads a quote CSV into the SQLite quote database.
func newImportCmd(configPath *string) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "import CSV",
		Short: "Import a Date,Symbol,Open,High,Low,Close,Volume CSV into SQLite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			if dbPath == "" {
				dbPath = cfg.QuotesDB
			}
			if dbPath == "" {
				return fmt.Errorf("no database: pass --db or set quotes_db")
			}

			src, err := marketdata.LoadCSVFile(args[0])
			if err != nil {
				return err
			}
			w, err := sqlitestore.NewWriter(dbPath, log)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx := cmd.Context()
			for _, s := range src.All() {
				if err := w.WriteQuotes(ctx, s); err != nil {
					return err
				}
				log.Info("quotes imported", zap.String("symbol", s.Symbol), zap.Int("rows", s.Len()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite quote database (default: quotes_db)")
	return cmd
}

func setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.Init("indengine", cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
