// Package live streams instrument store ticks over gRPC so remote clients
// (the TUI) can mirror the server's store. Messages are well-known protobuf
// types: the request is Empty and each tick is a Struct.
package live

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName       = "marketpulse.Ticker"
	streamTicksMethod = "/marketpulse.Ticker/StreamTicks"
)

// TickerServer is the server API for the Ticker service.
type TickerServer interface {
	StreamTicks(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

var tickerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TickerServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamTicks",
			Handler:       streamTicksHandler,
			ServerStreams: true,
		},
	},
	Metadata: "marketpulse/ticker.proto",
}

func streamTicksHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TickerServer).StreamTicks(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}
