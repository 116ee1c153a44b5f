package gatewaysender

import (
	"context"
	"testing"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/worker"
	clientgrpc "github.com/flare-im/message-core/pkg/client/grpc"
	"github.com/stretchr/testify/require"
)

func TestSend_RequiresGatewayID(t *testing.T) {
	s := New(clientgrpc.Config{Timeout: 0}, nil)
	err := s.Send(context.Background(), model.DeliveryTarget{UserID: "u1"}, []byte("x"))

	var sendErr *worker.SendError
	require.ErrorAs(t, err, &sendErr)
	require.Equal(t, worker.ClassInvalidParameter, sendErr.Class)
}

func TestClose_NoConnectionsIsNoop(t *testing.T) {
	s := New(clientgrpc.Config{}, nil)
	require.NoError(t, s.Close())
}

func TestResolveReplica_SingleInstanceReturnsGatewayID(t *testing.T) {
	s := New(clientgrpc.Config{}, nil)
	addr, err := s.resolveReplica(context.Background(), "gw-1")
	require.NoError(t, err)
	require.Equal(t, "gw-1", addr)
}

func TestResolveReplica_RoundRobinsAcrossConfiguredReplicas(t *testing.T) {
	s := New(clientgrpc.Config{}, map[string][]string{"gw-1": {"gw-1a:9090", "gw-1b:9090"}})

	first, err := s.resolveReplica(context.Background(), "gw-1")
	require.NoError(t, err)
	second, err := s.resolveReplica(context.Background(), "gw-1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}
