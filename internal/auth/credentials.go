// ABOUTME: Per-RPC bearer credentials attached to every Run stream
// ABOUTME: Fails with Unauthenticated when the token is inside its expiry margin

package auth

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Bearer sends a static access token as "authorization: Bearer <token>".
type Bearer struct {
	token         string
	expiry        time.Time
	allowInsecure bool
	now           func() time.Time
}

// NewBearer creates credentials for token. The token's expiry is read once here;
// an unparseable token is still sent and left for the server to judge.
// allowInsecure permits sending the token over plaintext connections.
func NewBearer(token string, allowInsecure bool) *Bearer {
	expiry, _ := TokenExpiry(token)
	return &Bearer{token: token, expiry: expiry, allowInsecure: allowInsecure, now: time.Now}
}

// Expired reports whether the token is past its expiry margin.
func (b *Bearer) Expired() bool {
	return !b.expiry.IsZero() && !b.now().Before(b.expiry)
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (b *Bearer) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	if b.Expired() {
		return nil, status.Errorf(codes.Unauthenticated, "%v: refresh the access token", ErrExpiredToken)
	}
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (b *Bearer) RequireTransportSecurity() bool {
	return !b.allowInsecure
}
