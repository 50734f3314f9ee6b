package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.Formatter = &logrus.JSONFormatter{}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// setup loads the configuration and opens the store with its schema in place.
func setup(ctx context.Context, configPath string) (*Config, *logrus.Logger, *Store, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg.LogLevel)

	if err := cfg.EnsureDirs(); err != nil {
		return nil, nil, nil, err
	}
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return cfg, logger, store, nil
}

func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, logger, store, err := setup(ctx, configPath)
		if err != nil {
			return err
		}
		defer store.Close()

		s, err := NewServer(cfg, logger, store)
		if err != nil {
			return err
		}
		if err := s.Start(ctx); err != nil {
			logger.WithError(err).Error("server has been stopped")
			return err
		}
		return nil
	}

	root := &cobra.Command{
		Use:           "socialinsecurity",
		Short:         "Small social network: posts, comments, friends and profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE:  serve,
	})
	root.AddCommand(&cobra.Command{
		Use:   "initdb",
		Short: "Create the instance folders and database schema, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, store, err := setup(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer store.Close()
			logger.Info("database is ready")
			return nil
		},
	})
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logrus.WithError(err).Error("socialinsecurity failed")
		os.Exit(1)
	}
}
