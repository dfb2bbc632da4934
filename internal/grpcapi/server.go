// Package grpcapi exposes availability queries and booking over gRPC. Messages are
// google.protobuf.Struct values so the service needs no generated stubs; the field names match the
// JSON API.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/service"
)

const ServiceName = "frizerino.availability.v1.Availability"

// Availability is the read side used by the server.
type Availability interface {
	IsAvailable(ctx context.Context, staffID int64, date, at string, duration int) (bool, error)
	Slots(ctx context.Context, staffID int64, date string, duration int) ([]string, error)
	SlotsForServices(ctx context.Context, staffID int64, date string, serviceIDs []int64) ([]string, error)
}

// Bookings creates bookings.
type Bookings interface {
	Create(ctx context.Context, req service.CreateBookingRequest) (*model.Booking, error)
}

// AvailabilityServer is the server API of the Availability service.
type AvailabilityServer interface {
	ListSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IsAvailable(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Availability service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSlots", Handler: unaryHandler("ListSlots", AvailabilityServer.ListSlots)},
		{MethodName: "IsAvailable", Handler: unaryHandler("IsAvailable", AvailabilityServer.IsAvailable)},
		{MethodName: "CreateBooking", Handler: unaryHandler("CreateBooking", AvailabilityServer.CreateBooking)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "frizerino/availability/v1/availability.proto",
}

type methodFunc func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call methodFunc) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Server implements AvailabilityServer on top of the service layer.
type Server struct {
	availability Availability
	bookings     Bookings
	log          zerolog.Logger
}

func NewServer(availability Availability, bookings Bookings, logger *zerolog.Logger) *Server {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "grpc").Logger()
	}
	return &Server{availability: availability, bookings: bookings, log: l}
}

// Register attaches s to grpcServer.
func Register(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&ServiceDesc, s)
}

// NewGRPCServer builds a grpc.Server with request logging and panic recovery installed.
func NewGRPCServer(logger *zerolog.Logger) *grpc.Server {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "grpc").Logger()
	}
	return grpc.NewServer(grpc.ChainUnaryInterceptor(recoverInterceptor(l), logInterceptor(l)))
}

// ListSlots expects staff_id, date and either service_ids or duration.
func (s *Server) ListSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	staffID, err := intField(in, "staff_id", true)
	if err != nil {
		return nil, err
	}
	date, err := stringField(in, "date")
	if err != nil {
		return nil, err
	}

	var slots []string
	if ids, ok, err := idsField(in, "service_ids"); err != nil {
		return nil, err
	} else if ok {
		slots, err = s.availability.SlotsForServices(ctx, staffID, date, ids)
		if err != nil {
			return nil, toStatus(err)
		}
	} else {
		duration, err := intField(in, "duration", true)
		if err != nil {
			return nil, err
		}
		slots, err = s.availability.Slots(ctx, staffID, date, int(duration))
		if err != nil {
			return nil, toStatus(err)
		}
	}

	list := make([]any, len(slots))
	for i, v := range slots {
		list[i] = v
	}
	return structpb.NewStruct(map[string]any{
		"staff_id": float64(staffID),
		"date":     date,
		"slots":    list,
	})
}

// IsAvailable expects staff_id, date, time and duration.
func (s *Server) IsAvailable(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	staffID, err := intField(in, "staff_id", true)
	if err != nil {
		return nil, err
	}
	date, err := stringField(in, "date")
	if err != nil {
		return nil, err
	}
	at, err := stringField(in, "time")
	if err != nil {
		return nil, err
	}
	duration, err := intField(in, "duration", true)
	if err != nil {
		return nil, err
	}

	ok, err := s.availability.IsAvailable(ctx, staffID, date, at, int(duration))
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"available": ok})
}

// CreateBooking expects staff_id, date, time, service_ids and client_name; client_phone is optional.
func (s *Server) CreateBooking(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req service.CreateBookingRequest
	var err error
	if req.StaffID, err = intField(in, "staff_id", true); err != nil {
		return nil, err
	}
	if req.Date, err = stringField(in, "date"); err != nil {
		return nil, err
	}
	if req.Time, err = stringField(in, "time"); err != nil {
		return nil, err
	}
	ids, ok, err := idsField(in, "service_ids")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "service_ids is required")
	}
	req.ServiceIDs = ids
	req.ClientName = in.GetFields()["client_name"].GetStringValue()
	req.ClientPhone = in.GetFields()["client_phone"].GetStringValue()

	b, err := s.bookings.Create(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"id":        float64(b.ID),
		"reference": b.Reference,
		"staff_id":  float64(b.StaffID),
		"date":      b.Date.String(),
		"start":     b.Start.String(),
		"end":       b.End.String(),
		"status":    string(b.Status),
	})
}

func stringField(in *structpb.Struct, name string) (string, error) {
	v, ok := in.GetFields()[name]
	if !ok || v.GetStringValue() == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return v.GetStringValue(), nil
}

func intField(in *structpb.Struct, name string, required bool) (int64, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		if required {
			return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
		}
		return 0, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	i, ok := exactInt(n.NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return i, nil
}

// maxExactInt is the largest magnitude a float64 holds without losing integer precision.
const maxExactInt = 1 << 53

func exactInt(v float64) (int64, bool) {
	if v != math.Trunc(v) || math.Abs(v) > maxExactInt {
		return 0, false
	}
	return int64(v), true
}

func idsField(in *structpb.Struct, name string) ([]int64, bool, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return nil, false, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, false, status.Errorf(codes.InvalidArgument, "%s must be a list", name)
	}
	ids := make([]int64, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		n, isNum := item.GetKind().(*structpb.Value_NumberValue)
		if !isNum {
			return nil, false, status.Errorf(codes.InvalidArgument, "%s must hold positive integers", name)
		}
		id, ok := exactInt(n.NumberValue)
		if !ok || id <= 0 {
			return nil, false, status.Errorf(codes.InvalidArgument, "%s must hold positive integers", name)
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrInvalidReference), errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, model.ErrSlotUnavailable):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, model.ErrLockTimeout):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func logInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		ev := log.Debug()
		if code == codes.Internal || code == codes.Unknown {
			ev = log.Error().Err(err)
		}
		ev.Str("method", info.FullMethod).Str("code", code.String()).Dur("took", time.Since(started)).Msg("rpc served")
		return resp, err
	}
}

func recoverInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("method", info.FullMethod).Str("panic", fmt.Sprint(r)).Msg("rpc panicked")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
