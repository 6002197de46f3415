// ABOUTME: Scripted agent backend for E2E testing of coven-link over gRPC
// ABOUTME: Usage: fake-backend [-addr localhost:50051] [-jwt-secret s] [-drop-after-checkpoint]

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-link/internal/auth"
	"github.com/2389/coven-link/internal/transport"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC listen address")
	secret := flag.String("jwt-secret", "", "Require JWT bearer tokens signed with this secret")
	dropOnce := flag.Bool("drop-after-checkpoint", false, "Fail the first stream after its checkpoint to exercise resume")
	flag.Parse()

	if err := run(*addr, *secret, *dropOnce); err != nil {
		log.Fatal(err)
	}
}

func run(addr, secret string, dropOnce bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var tokens auth.TokenVerifier
	if secret != "" {
		token, err := auth.SignClientToken([]byte(secret), "fake-client", 24*time.Hour)
		if err != nil {
			return fmt.Errorf("generating client token: %w", err)
		}
		color.New(color.FgCyan).Fprintf(os.Stderr, "client token: %s\n", token)
		tokens = auth.NewJWTVerifier([]byte(secret))
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	backend := newScriptedBackend(logger)
	backend.dropOnce.Store(dropOnce)
	server := transport.NewServer(backend, tokens, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		server.GracefulStop()
	}()

	color.New(color.FgGreen).Fprintf(os.Stderr, "fake-backend listening on %s\n", lis.Addr())
	return server.Serve(lis)
}
