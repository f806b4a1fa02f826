package live

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"marketpulse/internal/market"
)

// Server implements the StreamTicks gRPC endpoint.
type Server struct {
	store *market.Store
	log   *slog.Logger
}

// NewServer creates a gRPC server backed by the given store.
func NewServer(store *market.Store, log *slog.Logger) *Server {
	return &Server{store: store, log: log}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&tickerServiceDesc, s)
}

// StreamTicks sends a snapshot of the store, then every tick as it happens.
// The stream ends when the client disconnects.
func (s *Server) StreamTicks(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	// Subscribe before the snapshot so no tick falls in between; the client
	// drops anything not newer than what it has.
	subID, ch := s.store.Subscribe(256)
	defer s.store.Unsubscribe(subID)

	snap := market.TickEvent{Seq: s.store.Seq(), Instruments: s.store.Snapshot()}
	msg, err := encodeTick(kindSnapshot, snap)
	if err != nil {
		return err
	}
	if err := stream.Send(msg); err != nil {
		return err
	}

	s.log.Info("grpc client subscribed", "subID", subID, "seq", snap.Seq)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("grpc client disconnected", "subID", subID)
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := encodeTick(kindTick, evt)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}
