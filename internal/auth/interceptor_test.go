// ABOUTME: Tests for the bearer token stream interceptor
// ABOUTME: Uses a stub ServerStream carrying incoming metadata

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type stubStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubStream) Context() context.Context { return s.ctx }

func runInterceptor(t *testing.T, v TokenVerifier, md metadata.MD) (*AuthContext, error) {
	t.Helper()
	ctx := context.Background()
	if md != nil {
		ctx = metadata.NewIncomingContext(ctx, md)
	}
	var got *AuthContext
	err := StreamInterceptor(v, nil)(nil, &stubStream{ctx: ctx}, &grpc.StreamServerInfo{}, func(_ any, ss grpc.ServerStream) error {
		got = FromContext(ss.Context())
		return nil
	})
	return got, err
}

func TestStreamInterceptor(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))
	valid, err := SignClientToken([]byte("secret"), "agent-7", time.Hour)
	require.NoError(t, err)
	expired, err := SignClientToken([]byte("secret"), "agent-7", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		md      metadata.MD
		wantErr bool
	}{
		{"valid", metadata.Pairs("authorization", "Bearer "+valid), false},
		{"no metadata", nil, true},
		{"no header", metadata.Pairs("x-client-type", "cli"), true},
		{"wrong scheme", metadata.Pairs("authorization", "Basic "+valid), true},
		{"expired", metadata.Pairs("authorization", "Bearer "+expired), true},
		{"garbage", metadata.Pairs("authorization", "Bearer nope"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runInterceptor(t, v, tt.md)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, codes.Unauthenticated, status.Code(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "agent-7", got.PrincipalID)
		})
	}
}
