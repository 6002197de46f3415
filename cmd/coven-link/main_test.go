// ABOUTME: Tests for the coven-link command tree, transcript rendering and headers
// ABOUTME: Session commands run against a temporary sqlite store

package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2389/coven-link/internal/config"
	"github.com/2389/coven-link/internal/connect"
	"github.com/2389/coven-link/internal/interaction"
	"github.com/2389/coven-link/internal/session"
	"github.com/2389/coven-link/internal/wire"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "link.yaml")
	content := `
backend:
  addr: localhost:50051
  insecure: true
  token: secret-token
session:
  store: sqlite
  database_path: ` + filepath.Join(dir, "link.db") + `
tools:
  working_dir: ` + dir + `
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSessionImportExport(t *testing.T) {
	cfgPath := writeConfig(t)

	state, err := wire.EncodeState(&wire.ConversationState{Turns: [][]byte{[]byte("turn-1")}, Mode: "plan"})
	if err != nil {
		t.Fatalf("EncodeState failed: %v", err)
	}
	snap, err := json.Marshal(session.Snapshot{
		Version:           session.SnapshotVersion,
		AgentID:           "agent-42",
		ConversationState: base64.StdEncoding.EncodeToString(state),
	})
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	out, err := execute(t, string(snap), "--config", cfgPath, "session", "import", "s1", "-")
	if err != nil {
		t.Fatalf("import failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "agent-42") {
		t.Errorf("import output = %q, want agent id", out)
	}

	out, err = execute(t, "", "--config", cfgPath, "session", "export", "s1")
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, out)
	}
	exported, err := session.ParseSnapshot([]byte(out))
	if err != nil {
		t.Fatalf("export produced invalid snapshot: %v\n%s", err, out)
	}
	if exported.AgentID != "agent-42" {
		t.Errorf("AgentID = %q, want agent-42", exported.AgentID)
	}
	if exported.LatestRootBlobID == "" {
		t.Error("expected imported state to be stored under a root blob")
	}

	out, err = execute(t, "", "--config", cfgPath, "session", "show", "s1")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "Turns:") || !strings.Contains(out, "agent-42") {
		t.Errorf("show output missing fields:\n%s", out)
	}
}

func TestSessionImportRejectsBadSnapshot(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := execute(t, `{"version":9,"agentId":"a"}`, "--config", cfgPath, "session", "import", "s1", "-")
	if err == nil {
		t.Fatal("expected unsupported snapshot to fail")
	}
}

func TestResourcesCommand(t *testing.T) {
	out, err := execute(t, "", "--config", writeConfig(t), "resources")
	if err != nil {
		t.Fatalf("resources failed: %v", err)
	}
	for _, want := range []string{"readArgs", "shellStreamArgs", "served", "mcpArgs", "unhandled"} {
		if !strings.Contains(out, want) {
			t.Errorf("resources output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommandRedactsSecrets(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Basic otlp-secret")
	out, err := execute(t, "", "--config", writeConfig(t), "config")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if strings.Contains(out, "secret-token") || strings.Contains(out, "otlp-secret") {
		t.Errorf("config output leaks a secret:\n%s", out)
	}
	if !strings.Contains(out, "[redacted]") || !strings.Contains(out, "localhost:50051") {
		t.Errorf("unexpected config output:\n%s", out)
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	_, err := execute(t, "", "--config", writeConfig(t), "run", "--mode", "turbo", "hello")
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("err = %v, want unknown mode", err)
	}
}

func TestRunHeaders(t *testing.T) {
	headers := runHeaders(config.BackendConfig{
		ClientType: "cli",
		Headers:    map[string]string{"X-Team": "core"},
	})

	if headers["x-client-type"] != "cli" {
		t.Errorf("x-client-type = %q", headers["x-client-type"])
	}
	if headers["x-client-version"] != version {
		t.Errorf("x-client-version = %q, want %q", headers["x-client-version"], version)
	}
	if headers["x-team"] != "core" {
		t.Errorf("configured header not lowercased: %v", headers)
	}
}

func TestTerminalListener(t *testing.T) {
	var out bytes.Buffer
	l := newTerminalListener(&out, false)
	ctx := context.Background()

	for _, u := range []wire.UpdateEvent{
		&wire.TextDelta{Text: "Hello"},
		&wire.TextDelta{Text: " world"},
		&wire.TokenDelta{Tokens: 7},
		&wire.TurnEnded{},
	} {
		if err := l.SendUpdate(ctx, u); err != nil {
			t.Fatalf("SendUpdate failed: %v", err)
		}
	}
	if !strings.Contains(out.String(), "Hello world") {
		t.Errorf("transcript = %q", out.String())
	}
	if !strings.Contains(out.String(), "7 tokens") {
		t.Errorf("turn summary missing token count: %q", out.String())
	}

	resp, err := l.Query(ctx, interaction.Query{ID: 1, Kind: interaction.KindWebSearch})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.Approved {
		t.Error("web search should be rejected without --approve")
	}

	approving := newTerminalListener(&out, true)
	resp, _ = approving.Query(ctx, interaction.Query{ID: 2, Kind: interaction.KindWebSearch})
	if !resp.Approved {
		t.Error("web search should be approved with --approve")
	}
	resp, _ = approving.Query(ctx, interaction.Query{ID: 3, Kind: interaction.KindAskQuestion})
	if resp.Approved || resp.Reason == "" {
		t.Errorf("ask-question should always be declined, got %+v", resp)
	}

	out.Reset()
	approving.connectionState(connect.StateConnected)
	approving.connectionState(connect.StateReconnecting)
	if !strings.Contains(out.String(), "reconnecting") {
		t.Errorf("reconnect not rendered: %q", out.String())
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("json logger output = %q", buf.String())
	}

	buf.Reset()
	logger = setupLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	logger.With("component", "test").WithGroup("g").Debug("hello", slog.Int("n", 1))
	if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "g.n=1") {
		t.Errorf("text logger output = %q", buf.String())
	}
}
