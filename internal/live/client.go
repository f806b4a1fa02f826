package live

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"marketpulse/internal/market"
)

// Client connects to a Ticker gRPC server and mirrors its ticks into a local
// store. Subscribers of the local store see the server's ticks.
type Client struct {
	addr  string
	store *market.Store
	log   *slog.Logger
	opts  []grpc.DialOption
}

// NewClient creates a client targeting the given gRPC address. Extra dial
// options are appended after insecure transport credentials.
func NewClient(addr string, store *market.Store, log *slog.Logger, opts ...grpc.DialOption) *Client {
	return &Client{addr: addr, store: store, log: log, opts: opts}
}

// Sync connects to the gRPC server and applies every message to the local
// store. It blocks until ctx is cancelled or the stream ends.
func (c *Client) Sync(ctx context.Context) error {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, c.opts...)
	conn, err := grpc.NewClient(c.addr, opts...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	defer conn.Close()

	cs, err := conn.NewStream(ctx, &tickerServiceDesc.Streams[0], streamTicksMethod)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	stream := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: cs}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("closing send: %w", err)
	}

	c.log.Info("connected to tick stream", "addr", c.addr)

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving tick: %w", err)
		}
		kind, evt, err := decodeTick(msg)
		if err != nil {
			c.log.Warn("dropping malformed tick", "error", err)
			continue
		}
		if !c.store.Apply(evt) {
			c.log.Debug("ignoring stale tick", "kind", kind, "seq", evt.Seq)
		}
	}
}
