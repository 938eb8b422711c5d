// Package grpcapi exposes the acquisition service over gRPC. Messages use the
// protobuf well-known types, so no generated stubs are needed.
package grpcapi

import (
	"context"
	"errors"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"adc-acquisition/internal/domain"
)

const (
	ServiceName = "adc.Acquisition"

	methodSample       = "/" + ServiceName + "/Sample"
	methodChannelCount = "/" + ServiceName + "/ChannelCount"
	methodLatest       = "/" + ServiceName + "/Latest"
)

// AcquisitionServer is the server API of adc.Acquisition.
type AcquisitionServer interface {
	// Sample takes {"channel": n, "timeout": "50ms"} and returns the result fields.
	Sample(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ChannelCount(ctx context.Context, req *emptypb.Empty) (*wrapperspb.Int32Value, error)
	Latest(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error)
}

// Server adapts the application service to the gRPC transport.
type Server struct {
	service domain.AcquisitionService
}

// NewServer constructs a new gRPC server facade backed by the application service.
func NewServer(service domain.AcquisitionService) *Server {
	return &Server{service: service}
}

// Register attaches the server to a grpc.Server.
func Register(registrar grpc.ServiceRegistrar, srv AcquisitionServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func (s *Server) Sample(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	channelValue, ok := fields["channel"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "channel is required")
	}
	number := channelValue.GetNumberValue()
	if number != math.Trunc(number) || number < math.MinInt32 || number > math.MaxInt32 {
		return nil, status.Error(codes.InvalidArgument, "channel must be an integer")
	}

	var deadline time.Time
	if raw := fields["timeout"].GetStringValue(); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return nil, status.Error(codes.InvalidArgument, "invalid timeout")
		}
		deadline = time.Now().Add(timeout)
	} else if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	result, err := s.service.Sample(ctx, int(number), deadline)
	if err != nil {
		return nil, toStatus(err)
	}
	return resultStruct(result)
}

func (s *Server) ChannelCount(context.Context, *emptypb.Empty) (*wrapperspb.Int32Value, error) {
	return wrapperspb.Int32(int32(s.service.ChannelCount())), nil
}

func (s *Server) Latest(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	result, err := s.service.Latest(ctx, int(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return resultStruct(result)
}

func resultStruct(result domain.SampleResult) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{
		"request_id": result.RequestID,
		"channel":    result.Channel,
		"index":      result.Index,
		"converter":  result.Converter,
		"raw":        result.Raw,
		"value":      result.Value,
		"attempts":   result.Attempts,
		"timestamp":  result.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidChannel), errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrCancelled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, domain.ErrAcquisitionFailed), errors.Is(err, domain.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var _ AcquisitionServer = (*Server)(nil)
