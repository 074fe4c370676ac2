package grpc_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ulixee/payments-sub000/internal/adapters/chain"
	grpcadapter "github.com/ulixee/payments-sub000/internal/adapters/grpc"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres/storetest"
	"github.com/ulixee/payments-sub000/internal/adapters/security"
	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/domain"
)

func dial(t *testing.T) (*grpc.ClientConn, *application.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool, err := postgres.NewBatchStorePool(logger, storetest.NewDialer(t), 4, 0, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	service := application.NewService(application.Dependencies{
		Logger:     logger,
		Shared:     postgres.NewSharedStore(storetest.SharedDB(t)),
		Batches:    pool,
		Chain:      chain.NewStaticBridge(1, "tip"),
		Keys:       security.Ed25519KeyGenerator{},
		Signer:     security.Ed25519Signer{},
		Encryption: security.NewAESGCMEncryption("seed"),
	})

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	grpcadapter.Register(server, grpcadapter.NewBatchInternalServer(service))
	healthpb.RegisterHealthServer(server, health.NewServer())
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, service
}

func TestGetActiveBatches(t *testing.T) {
	ctx := context.Background()
	conn, service := dial(t)
	batch, err := service.CreateBatch(ctx, domain.BatchTypeMicronote)
	require.NoError(t, err)

	resp := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, "/micronote.v1.BatchInternalService/GetActiveBatches", &emptypb.Empty{}, resp))
	micronote := resp.GetFields()["micronote"].GetStructValue()
	require.NotNil(t, micronote)
	require.Equal(t, batch.Slug, micronote.GetFields()["batch_slug"].GetStringValue())
}

func TestGetBatchSummaryErrors(t *testing.T) {
	ctx := context.Background()
	conn, _ := dial(t)

	err := conn.Invoke(ctx, "/micronote.v1.BatchInternalService/GetBatchSummary", &structpb.Struct{}, &structpb.Struct{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	req, err := structpb.NewStruct(map[string]any{"batch_slug": "aaaa000001"})
	require.NoError(t, err)
	err = conn.Invoke(ctx, "/micronote.v1.BatchInternalService/GetBatchSummary", req, &structpb.Struct{})
	require.Equal(t, codes.NotFound, status.Code(err))

	check, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check.GetStatus())
}
