package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/reviewbot/core/buildinfo"
	corecmd "github.com/m3rciful/reviewbot/core/cmd"
	coredatabase "github.com/m3rciful/reviewbot/core/database"
	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/internal/bot"
	"github.com/m3rciful/reviewbot/internal/config"
)

const defaultConfigPath = "config.yaml"

type options struct {
	ConfigPath string
}

func main() {
	opt := &options{}

	root := &cobra.Command{
		Use:           "reviewbot",
		Short:         "Telegram bot collecting moderated employer reviews",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opt.serve()
		},
	}
	root.PersistentFlags().StringVarP(&opt.ConfigPath, "config", "c", opt.ConfigPath,
		"Path to the YAML config (defaults to $"+corecmd.DefaultConfigEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opt.serve()
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opt.migrate()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "reviewbot %s (%s) %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
			},
		},
	)

	if err := root.Execute(); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func (o *options) serve() error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        o.ConfigPath,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: bot.Bootstrap,
	})
}

func (o *options) migrate() error {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv(corecmd.DefaultConfigEnvVar)
	}
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Shutdown() }()
	return coredatabase.RunMigrations(cfg.Database)
}
