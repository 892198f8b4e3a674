package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/belai/internal/ai"
	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GrpcClient implements ai.ConversationClient and ai.Coach against a remote
// tutor service.
type GrpcClient struct {
	conn   *grpc.ClientConn
	addr   string
	cfg    GrpcClientConfig
	logger *slog.Logger
}

// GrpcClientConfig holds configuration for the gRPC client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// DialOptions are appended to the defaults.
	DialOptions []grpc.DialOption
}

// DefaultGrpcClientConfig returns default configuration.
func DefaultGrpcClientConfig() GrpcClientConfig {
	return GrpcClientConfig{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   30 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewGrpcClient connects to the tutor service at addr.
func NewGrpcClient(addr string, logger *slog.Logger) (*GrpcClient, error) {
	cfg := DefaultGrpcClientConfig()
	if addr != "" {
		cfg.Address = addr
	}
	return NewGrpcClientWithConfig(cfg, logger)
}

// NewGrpcClientWithConfig connects and fails fast when the service is not
// ready or reports itself unhealthy.
func NewGrpcClientWithConfig(cfg GrpcClientConfig, logger *slog.Logger) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, cfg.DialOptions...)

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tutor at %s: %w", cfg.Address, err)
	}

	c := &GrpcClient{conn: conn, addr: cfg.Address, cfg: cfg, logger: logger}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		c.Close()
		return nil, fmt.Errorf("tutor at %s not ready: %w", cfg.Address, err)
	}
	if err := c.Health(connectCtx); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("Connected to tutor service", "address", cfg.Address)
	return c, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// Health checks that the tutor service reports SERVING.
func (c *GrpcClient) Health(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("tutor service is %s", resp.GetStatus())
	}
	return nil
}

func (c *GrpcClient) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, fromStatus(method, err)
	}
	return out, nil
}

// fromStatus maps gRPC failures onto the error taxonomy.
func fromStatus(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &shared.ServiceError{Op: op, Err: err}
	}
	msg := errors.New(st.Message())
	switch st.Code() {
	case codes.FailedPrecondition, codes.Unauthenticated:
		return &shared.ConfigurationError{Op: op, Err: msg}
	default:
		return &shared.ServiceError{Op: op, Err: fmt.Errorf("%s: %w", st.Code(), msg)}
	}
}

type remoteSession struct{ id string }

func (s remoteSession) ID() string { return s.id }

// OpenSession opens a conversation on the tutor service.
func (c *GrpcClient) OpenSession(ctx context.Context, systemInstruction string) (ai.Session, error) {
	out, err := c.call(ctx, methodOpenSession, map[string]any{"system_instruction": systemInstruction})
	if err != nil {
		return nil, err
	}
	id := str(out, "session_id")
	if id == "" {
		return nil, &shared.ServiceError{Op: methodOpenSession, Err: errors.New("tutor returned no session id")}
	}
	return remoteSession{id: id}, nil
}

// Exchange sends one user turn.
func (c *GrpcClient) Exchange(ctx context.Context, s ai.Session, userText string) (ai.Reply, error) {
	out, err := c.call(ctx, methodExchange, map[string]any{"session_id": s.ID(), "text": userText})
	if err != nil {
		return ai.Reply{}, err
	}
	return ai.Reply{Text: str(out, "text"), Citations: citationsFromValues(list(out, "citations"))}, nil
}

// Feedback requests feedback on userText.
func (c *GrpcClient) Feedback(ctx context.Context, userText, scenarioDescription string) ([]domain.FeedbackItem, error) {
	out, err := c.call(ctx, methodFeedback, map[string]any{"text": userText, "scenario": scenarioDescription})
	if err != nil {
		return nil, err
	}
	return feedbackFromValues(list(out, "items")), nil
}

// Hints requests suggested next phrases.
func (c *GrpcClient) Hints(ctx context.Context, scenarioDescription string, lastUserText, lastAIText *string) ([]string, error) {
	req := map[string]any{"scenario": scenarioDescription}
	if lastUserText != nil {
		req["last_user"] = *lastUserText
	}
	if lastAIText != nil {
		req["last_ai"] = *lastAIText
	}
	out, err := c.call(ctx, methodHints, req)
	if err != nil {
		return nil, err
	}
	return stringsFromValues(list(out, "hints")), nil
}
