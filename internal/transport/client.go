// ABOUTME: Duplex transport client: pumps an outbound source into the Run stream
// ABOUTME: and exposes the inbound side as a stream.Source of server messages

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"github.com/2389/coven-link/internal/auth"
	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

// HeaderRequestID identifies one Run call; generated when the caller does not set it.
const HeaderRequestID = "x-request-id"

// DialOptions configures Dial.
type DialOptions struct {
	Addr        string
	Insecure    bool
	Token       string
	Compression string // "" or "gzip"
	Logger      *slog.Logger
}

// Client runs duplex streams against one backend connection.
type Client struct {
	agent       AgentClient
	conn        *grpc.ClientConn
	compression string
	logger      *slog.Logger
}

// Dial connects to the backend described by opts.
func Dial(opts DialOptions, extra ...grpc.DialOption) (*Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("transport: addr is required")
	}

	var creds credentials.TransportCredentials
	if opts.Insecure {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewClientTLSFromCert(nil, "")
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if opts.Token != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(auth.NewBearer(opts.Token, opts.Insecure)))
	}
	dialOpts = append(dialOpts, extra...)

	conn, err := grpc.NewClient(opts.Addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Addr, err)
	}

	c := NewClient(conn, opts.Compression, opts.Logger)
	c.conn = conn
	return c, nil
}

// NewClient wraps an existing connection. The caller keeps ownership of cc.
func NewClient(cc grpc.ClientConnInterface, compression string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		agent:       NewAgentClient(cc),
		compression: compression,
		logger:      logger.With("component", "transport"),
	}
}

// Close releases the connection if Dial created it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Run opens a Run stream. Messages from outbound are sent in order until it
// returns io.EOF, at which point the send side is half-closed. The returned
// source yields server messages and ends with io.EOF on a clean close or with
// the transport error, unmodified, otherwise. Cancelling ctx tears the stream down.
func (c *Client) Run(ctx context.Context, outbound stream.Source[*wire.ClientMessage], headers map[string]string) (stream.Source[*wire.ServerMessage], error) {
	md := metadata.New(headers)
	if len(md.Get(HeaderRequestID)) == 0 {
		md.Set(HeaderRequestID, uuid.NewString())
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	var callOpts []grpc.CallOption
	if c.compression == gzip.Name {
		callOpts = append(callOpts, grpc.UseCompressor(gzip.Name))
	}

	rpc, err := c.agent.Run(ctx, callOpts...)
	if err != nil {
		return nil, err
	}

	logger := c.logger.With("request_id", md.Get(HeaderRequestID)[0])
	inbound := stream.NewQueue[*wire.ServerMessage]()
	sendCtx, stopSend := context.WithCancel(ctx)

	go c.send(sendCtx, rpc, outbound, logger)
	go func() {
		defer stopSend()
		for {
			msg, err := rpc.Recv()
			if errors.Is(err, io.EOF) {
				inbound.Close()
				return
			}
			if err != nil {
				logger.Debug("run stream ended", "error", err)
				inbound.CloseWithError(err)
				return
			}
			if err := inbound.Push(msg); err != nil {
				return
			}
		}
	}()

	return inbound, nil
}

func (c *Client) send(ctx context.Context, rpc AgentRunClient, outbound stream.Source[*wire.ClientMessage], logger *slog.Logger) {
	for {
		msg, err := outbound.Recv(ctx)
		if errors.Is(err, io.EOF) {
			if err := rpc.CloseSend(); err != nil {
				logger.Debug("close send failed", "error", err)
			}
			return
		}
		if err != nil {
			return
		}
		// A failed send surfaces on the receive side with the real status.
		if err := rpc.Send(msg); err != nil {
			logger.Debug("send failed", "error", err)
			return
		}
	}
}
