// ABOUTME: session commands: show stored metadata and move sessions between stores as snapshots
// ABOUTME: Snapshots are the portable JSON pointer produced by the session manager

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-link/internal/session"
)

func newSessionCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect, export and import stored sessions",
	}
	cmd.AddCommand(newSessionShowCmd(global))
	cmd.AddCommand(newSessionExportCmd(global))
	cmd.AddCommand(newSessionImportCmd(global))
	return cmd
}

func withSessions(global *globalOptions, fn func(*session.Manager) error) error {
	cfg, err := global.load()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(session.NewManager(s, logger))
}

func newSessionShowCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's metadata and latest checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(global, func(sessions *session.Manager) error {
				agent, err := sessions.Ensure(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				md := agent.Metadata()
				state := agent.LatestCheckpoint()

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Session:\t%s\n", agent.SessionID())
				fmt.Fprintf(w, "Agent:\t%s\n", md.AgentID)
				fmt.Fprintf(w, "Name:\t%s\n", md.Name)
				fmt.Fprintf(w, "Mode:\t%s\n", md.Mode)
				fmt.Fprintf(w, "Model:\t%s\n", valueOr(md.LastUsedModel, "-"))
				fmt.Fprintf(w, "Created:\t%s\n", md.CreatedAt.Local().Format(time.RFC3339))
				fmt.Fprintf(w, "Root blob:\t%s\n", valueOr(fmt.Sprintf("%x", md.LatestRootBlobID), "-"))
				if state != nil {
					fmt.Fprintf(w, "Turns:\t%d\n", len(state.Turns))
					if state.TokenDetails != nil {
						fmt.Fprintf(w, "Tokens:\t%d / %d\n", state.TokenDetails.UsedTokens, state.TokenDetails.MaxTokens)
					}
				}
				return w.Flush()
			})
		},
	}
}

func newSessionExportCmd(global *globalOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a session snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(global, func(sessions *session.Manager) error {
				if _, err := sessions.Ensure(cmd.Context(), args[0]); err != nil {
					return err
				}
				snap, err := sessions.Persist(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				data = append(data, '\n')
				if out == "" || out == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(out, data, 0o600)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newSessionImportCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <session-id> <snapshot-file>",
		Short: "Point a session at a snapshot (use - for stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			snap, err := session.ParseSnapshot(data)
			if err != nil {
				return err
			}
			return withSessions(global, func(sessions *session.Manager) error {
				ctx := cmd.Context()
				if err := sessions.ApplySnapshot(ctx, args[0], snap); err != nil {
					return err
				}
				agent, err := sessions.Ensure(ctx, args[0])
				if err != nil {
					return err
				}
				// Inline state only lives in memory until it is checkpointed into the store.
				if state := agent.LatestCheckpoint(); state != nil && snap.LatestRootBlobID == "" {
					if err := agent.HandleCheckpoint(ctx, state); err != nil {
						return err
					}
				}
				if _, err := sessions.Persist(ctx, args[0]); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ session %s now points at agent %s\n", args[0], snap.AgentID)
				return nil
			})
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
