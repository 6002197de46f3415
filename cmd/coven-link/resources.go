// ABOUTME: resources and config commands: what the client serves and how it is configured
// ABOUTME: Both are read-only views for debugging a deployment

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-link/internal/exec"
	"github.com/2389/coven-link/internal/tools"
)

func newResourcesCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List exec resources and whether this client serves them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			workspace, err := tools.NewWorkspace(cfg.Tools.WorkingDir, cfg.Tools.ShellTimeout)
			if err != nil {
				return err
			}
			served := make(map[string]bool)
			for _, r := range tools.NewRegistry(workspace).Resources() {
				served[r.ArgsCase] = true
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Workspace: %s\n\n", workspace.Root)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ARGS\tRESULT\tSTREAMING\tSTATUS")
			for _, r := range exec.Catalog() {
				status := color.HiBlackString("unhandled")
				if served[r.ArgsCase] {
					status = color.GreenString("served")
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", r.ArgsCase, r.ResultCase, r.Streaming, status)
			}
			return w.Flush()
		},
	}
}

func newConfigCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			if cfg.Backend.Token != "" {
				cfg.Backend.Token = "[redacted]"
			}
			if cfg.Session.Redis.Password != "" {
				cfg.Session.Redis.Password = "[redacted]"
			}
			for k := range cfg.Tracing.OTLPHeaders {
				cfg.Tracing.OTLPHeaders[k] = "[redacted]"
			}

			view := map[string]any{
				"path":    global.path(),
				"backend": cfg.Backend,
				"connection": map[string]any{
					"heartbeat_interval":      cfg.Connection.HeartbeatInterval.String(),
					"exec_heartbeat_interval": cfg.Connection.ExecHeartbeatInterval.String(),
					"backoff_base":            cfg.Connection.BackoffBase.String(),
					"backoff_max":             cfg.Connection.BackoffMax.String(),
					"max_retries":             cfg.Connection.MaxRetries,
				},
				"session": cfg.Session,
				"tools": map[string]any{
					"working_dir":   cfg.Tools.WorkingDir,
					"shell_timeout": cfg.Tools.ShellTimeout.String(),
				},
				"logging": cfg.Logging,
				"metrics": cfg.Metrics,
				"tracing": cfg.Tracing,
			}
			out, err := yaml.Marshal(view)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
