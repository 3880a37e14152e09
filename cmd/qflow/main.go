package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/config"
)

var version = "dev"

// env is the state shared by every command of one invocation.
type env struct {
	v       *viper.Viper
	cfg     *config.Config
	cfgFile string
	actor   string
}

func newRootCmd() *cobra.Command {
	e := &env{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "qflow",
		Short: "📦 Fulfillment queue with an append-only ledger",
		Long: `the-queue-must-flow: a fulfillment queue for catalog items.

Accounts file requests, operators move them through
pending → preparing → ready → completed, and every completion
writes one immutable ledger record.`,
		SilenceUsage:      true,
		PersistentPreRunE: e.initConfig,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&e.cfgFile, "config", "", "config file (default: $HOME/.config/qflow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&e.actor, "as", "", "account to act as (default: $QFLOW_ACTOR)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path")

	// Bind flags to viper
	_ = e.v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = e.v.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = e.v.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(initCmd(e))
	rootCmd.AddCommand(migrateCmd(e))
	rootCmd.AddCommand(snapshotCmd(e))
	rootCmd.AddCommand(catalogCmd(e))
	rootCmd.AddCommand(accountsCmd(e))
	rootCmd.AddCommand(queueCmd(e))
	rootCmd.AddCommand(historyCmd(e))
	rootCmd.AddCommand(summaryCmd(e))
	rootCmd.AddCommand(serveCmd(e))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (e *env) initConfig(_ *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if e.cfgFile != "" {
		e.v.SetConfigFile(e.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		e.v.AddConfigPath(fmt.Sprintf("%s/.config/qflow", home))
		e.v.AddConfigPath(".")
		e.v.SetConfigName("config")
		e.v.SetConfigType("yaml")
	}

	e.v.SetEnvPrefix("QFLOW")
	e.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	e.v.AutomaticEnv()
	config.SetDefaults(e.v)

	if err := e.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := config.Load(e.v)
	if err != nil {
		return err
	}
	e.cfg = cfg

	if e.actor == "" {
		e.actor = e.v.GetString("actor")
	}

	if err := common.SetupLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.Debug("configuration loaded", "config_file", e.v.ConfigFileUsed(), "driver", cfg.Database.Driver)

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "qflow %s\n", version)
		},
	}
}
