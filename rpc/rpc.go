// Package rpc describes the miniospfd control service to gRPC. There is no
// .proto file: every message is a protobuf well-known type, and status
// snapshots travel as a google.protobuf.Struct holding the JSON form of
// ospf.Status.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/davidbalbert/miniospf/ospf"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "miniospf.Control"

const (
	getVersionMethod  = "/" + ServiceName + "/GetVersion"
	getStatusMethod   = "/" + ServiceName + "/GetStatus"
	watchStatusMethod = "/" + ServiceName + "/WatchStatus"
	shutdownMethod    = "/" + ServiceName + "/Shutdown"
)

// APIService is what the daemon implements. The adapter below turns it
// into gRPC.
type APIService interface {
	GetVersion(ctx context.Context) (string, error)
	GetStatus(ctx context.Context) (*ospf.Status, error)
	// WatchStatus calls send with the current status and again after every
	// change until ctx is done or send fails.
	WatchStatus(ctx context.Context, send func(*ospf.Status) error) error
	Shutdown(ctx context.Context) error
}

type Server struct {
	apiService APIService
}

func NewAPIServer(apiService APIService) *Server {
	return &Server{
		apiService: apiService,
	}
}

func RegisterAPIServer(s grpc.ServiceRegistrar, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}

func (s *Server) GetVersion(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error) {
	version, err := s.apiService.GetVersion(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.String(version), nil
}

func (s *Server) GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.apiService.GetStatus(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return EncodeStatus(st)
}

func (s *Server) WatchStatus(req *emptypb.Empty, stream grpc.ServerStream) error {
	err := s.apiService.WatchStatus(stream.Context(), func(st *ospf.Status) error {
		msg, err := EncodeStatus(st)
		if err != nil {
			return err
		}
		return stream.SendMsg(msg)
	})

	return toStatus(err)
}

func (s *Server) Shutdown(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.apiService.Shutdown(ctx); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ospf.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return err
	}
}

// EncodeStatus converts a status snapshot to a Struct by way of JSON.
func EncodeStatus(st *ospf.Status) (*structpb.Struct, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}

	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(b, msg); err != nil {
		return nil, fmt.Errorf("rpc: encoding status: %w", err)
	}

	return msg, nil
}

func DecodeStatus(msg *structpb.Struct) (*ospf.Status, error) {
	b, err := protojson.Marshal(msg)
	if err != nil {
		return nil, err
	}

	var st ospf.Status
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("rpc: decoding status: %w", err)
	}

	return &st, nil
}

func getVersionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetVersion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getVersionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).GetVersion(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getStatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func shutdownHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: shutdownMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Shutdown(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchStatusHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(*Server).WatchStatus(in, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetVersion", Handler: getVersionHandler},
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "Shutdown", Handler: shutdownHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchStatus", Handler: watchStatusHandler, ServerStreams: true},
	},
}

// Client is the calling side of the service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewAPIClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetVersion(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, getVersionMethod, &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *Client) GetStatus(ctx context.Context) (*ospf.Status, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getStatusMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return DecodeStatus(out)
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.cc.Invoke(ctx, shutdownMethod, &emptypb.Empty{}, new(emptypb.Empty))
}

// StatusStream yields a status snapshot each time the daemon's state
// changes.
type StatusStream struct {
	stream grpc.ClientStream
}

func (c *Client) WatchStatus(ctx context.Context) (*StatusStream, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], watchStatusMethod)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &StatusStream{stream: stream}, nil
}

// Recv returns io.EOF once the daemon ends the stream.
func (s *StatusStream) Recv() (*ospf.Status, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return DecodeStatus(msg)
}
