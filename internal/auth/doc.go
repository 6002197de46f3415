// Package auth handles bearer tokens on both ends of the Run stream.
//
// # Client Side
//
// Bearer implements grpc credentials.PerRPCCredentials. It attaches
// "authorization: Bearer <token>" to every call and refuses to send a token
// that is about to expire, failing the call with codes.Unauthenticated so the
// orchestrator treats it as fatal instead of retrying.
//
// TokenExpiry reads the "exp" claim without verifying the signature and
// returns it minus a five minute safety margin.
//
// # Server Side
//
// JWTVerifier checks HS256 tokens, and StreamInterceptor uses it to reject
// unauthenticated streams and attach an AuthContext to the ones it accepts.
// The fake backend uses both to exercise the same path a real backend takes.
package auth
