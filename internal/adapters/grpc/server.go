package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/domain"
)

const serviceName = "micronote.v1.BatchInternalService"

type BatchInternalService interface {
	GetActiveBatches(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetBatchSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type BatchInternalServer struct {
	service *application.Service
}

func NewBatchInternalServer(service *application.Service) *BatchInternalServer {
	return &BatchInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc BatchInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*BatchInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetActiveBatches",
				Handler:    getActiveBatchesHandler(svc),
			},
			{
				MethodName: "GetBatchSummary",
				Handler:    getBatchSummaryHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "micronote/v1/batch_internal.proto",
	}, svc)
}

func (s *BatchInternalServer) GetActiveBatches(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	active, err := s.service.ActiveBatches(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, toStatus(err)
	}
	return toStruct(active)
}

func (s *BatchInternalServer) GetBatchSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	slug := req.GetFields()["batch_slug"].GetStringValue()
	if slug == "" {
		return nil, status.Error(codes.InvalidArgument, "missing batch_slug")
	}
	output, err := s.service.BatchSummary(ctx, slug)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(output)
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrFundsNeeded), errors.Is(err, domain.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func getActiveBatchesHandler(svc BatchInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &emptypb.Empty{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetActiveBatches(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/GetActiveBatches",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetActiveBatches(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getBatchSummaryHandler(svc BatchInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetBatchSummary(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/GetBatchSummary",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetBatchSummary(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
