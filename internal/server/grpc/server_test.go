package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/invoicer/pkg/errorbank"
)

func TestToStatusMapsAppErrors(t *testing.T) {
	err := toStatus(errorbank.Unprocessable("Missing Fields. Failed to Update Invoice."))
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "Missing Fields. Failed to Update Invoice.", st.Message())
}

func TestToStatusHidesCauses(t *testing.T) {
	err := toStatus(errorbank.Internal("Database Error: Failed to Delete Invoice.", errorbank.WithCause(errors.New("pq: secret"))))
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "Database Error: Failed to Delete Invoice.", st.Message())

	st, _ = status.FromError(toStatus(errors.New("pq: secret")))
	assert.Equal(t, "internal error", st.Message())
}

func TestToStatusPassesThroughStatusErrors(t *testing.T) {
	in := status.Error(codes.Unavailable, "try later")
	assert.Equal(t, in, toStatus(in))
	assert.NoError(t, toStatus(nil))
}

func TestUnaryErrorsInterceptor(t *testing.T) {
	interceptor := unaryErrors()
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/invoices/Delete"},
		func(context.Context, interface{}) (interface{}, error) {
			return nil, errorbank.NotFound("invoice not found")
		})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthNotServingUntilStarted(t *testing.T) {
	hs := NewHealth()
	_ = NewServer(zaptest.NewLogger(t), hs)

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
