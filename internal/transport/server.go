// ABOUTME: gRPC server construction for backends serving AgentService
// ABOUTME: Keepalive policy and optional bearer authentication

package transport

import (
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/2389/coven-link/internal/auth"
)

// NewServer creates a gRPC server serving srv. When tokens is nil every
// stream is accepted.
func NewServer(srv AgentServer, tokens auth.TokenVerifier, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	serverOpts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if tokens != nil {
		serverOpts = append(serverOpts, grpc.ChainStreamInterceptor(auth.StreamInterceptor(tokens, logger)))
	} else if logger != nil {
		logger.Warn("auth disabled - no jwt_secret configured")
	}
	serverOpts = append(serverOpts, opts...)

	server := grpc.NewServer(serverOpts...)
	RegisterAgentServer(server, srv)
	return server
}
