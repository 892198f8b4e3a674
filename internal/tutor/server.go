package tutor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ashureev/belai/internal/ai"
	"github.com/ashureev/belai/internal/shared"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxSessions bounds the sessions a server keeps; the oldest is dropped first.
const maxSessions = 256

// Server serves the tutor RPCs on top of local AI collaborators.
type Server struct {
	conv   ai.ConversationClient
	coach  ai.Coach
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]ai.Session
	order    []string
}

// NewServer creates a tutor server.
func NewServer(conv ai.ConversationClient, coach ai.Coach, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		conv:     conv,
		coach:    coach,
		logger:   logger,
		sessions: make(map[string]ai.Session),
	}
}

// Register adds the tutor and health services to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
}

// tutorService is the handler type of serviceDesc.
type tutorService interface {
	openSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	exchange(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	feedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	hints(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*tutorService)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodOpenSession, tutorService.openSession),
		unary(methodExchange, tutorService.exchange),
		unary(methodFeedback, tutorService.feedback),
		unary(methodHints, tutorService.hints),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "belai/tutor/v1",
}

func unary(name string, call func(tutorService, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(tutorService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(tutorService), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// toStatus maps the error taxonomy onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case shared.IsConfigurationError(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case shared.IsUsageError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

func (s *Server) openSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	instruction := str(in, "system_instruction")
	if instruction == "" {
		return nil, status.Error(codes.InvalidArgument, "system_instruction is required")
	}
	session, err := s.conv.OpenSession(ctx, instruction)
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.order = append(s.order, session.ID())
	if len(s.order) > maxSessions {
		delete(s.sessions, s.order[0])
		s.order = s.order[1:]
	}
	s.mu.Unlock()

	s.logger.Info("tutor session opened", "session_id", session.ID())
	return structpb.NewStruct(map[string]any{"session_id": session.ID()})
}

func (s *Server) exchange(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := str(in, "session_id")
	s.mu.Lock()
	session, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "session %q not found", id)
	}

	reply, err := s.conv.Exchange(ctx, session, str(in, "text"))
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"text":      reply.Text,
		"citations": citationsToValue(reply.Citations),
	})
}

func (s *Server) feedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	items, err := s.coach.Feedback(ctx, str(in, "text"), str(in, "scenario"))
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"items": feedbackToValue(items)})
}

func (s *Server) hints(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	hints, err := s.coach.Hints(ctx, str(in, "scenario"), optionalStr(in, "last_user"), optionalStr(in, "last_ai"))
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"hints": stringsToValue(hints)})
}
