// ABOUTME: Cobra command tree and shared helpers for loading config and opening the session store
// ABOUTME: Every subcommand resolves the config path the same way

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/coven-link/internal/config"
	"github.com/2389/coven-link/internal/store"
)

// globalOptions holds flags shared by every command.
type globalOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "coven-link",
		Short:         "Run turns against a coven agent backend and serve local tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: $COVEN_LINK_CONFIG or ~/.config/coven/link.yaml)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newSessionCmd(opts))
	cmd.AddCommand(newResourcesCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (o *globalOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.Path()
}

func (o *globalOptions) load() (*config.Config, error) {
	path := o.path()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	s, err := store.Open(store.Options{
		Kind:         cfg.Session.Store,
		DatabasePath: cfg.Session.DatabasePath,
		Redis: store.RedisConfig{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
			Prefix:   cfg.Session.Redis.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s session store: %w", cfg.Session.Store, err)
	}
	return s, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show coven-link version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
