// ABOUTME: Tests for bearer per-RPC credentials
// ABOUTME: Verifies header shape and the expiry guard

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestBearer_Metadata(t *testing.T) {
	token, err := SignClientToken([]byte("k"), "p", time.Hour)
	require.NoError(t, err)

	b := NewBearer(token, true)
	md, err := b.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+token, md["authorization"])
	assert.False(t, b.RequireTransportSecurity())
	assert.True(t, NewBearer(token, false).RequireTransportSecurity())
}

func TestBearer_WithinMargin(t *testing.T) {
	// Valid for two more minutes, which is inside the five minute margin.
	token, err := SignClientToken([]byte("k"), "p", 2*time.Minute)
	require.NoError(t, err)

	b := NewBearer(token, true)
	assert.True(t, b.Expired())

	_, err = b.GetRequestMetadata(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestBearer_OpaqueToken(t *testing.T) {
	b := NewBearer("opaque-api-key", true)
	assert.False(t, b.Expired())

	md, err := b.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer opaque-api-key", md["authorization"])
}
