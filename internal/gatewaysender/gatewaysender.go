// Package gatewaysender implements the Delivery Worker's Sender contract
// (spec §4.J) over a gRPC call to the connection gateway identified by a
// DeliveryTarget's GatewayID, using the hand-written JSON codec in
// internal/transport/grpcjson instead of protobuf stubs.
package gatewaysender

import (
	"context"
	"sync"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/transport/grpcjson"
	"github.com/flare-im/message-core/internal/worker"
	"github.com/flare-im/message-core/pkg/algorithms/loadbalancing"
	clientgrpc "github.com/flare-im/message-core/pkg/client/grpc"
	"github.com/flare-im/message-core/pkg/errors"
	"google.golang.org/grpc"
)

const deliverMethod = "/flare.im.Gateway/Deliver"

// deliverRequest is the wire shape the gateway's Deliver RPC accepts.
type deliverRequest struct {
	UserID       string `json:"user_id"`
	DeviceID     string `json:"device_id"`
	ConnectionID string `json:"connection_id"`
	Payload      []byte `json:"payload"`
}

type deliverResponse struct {
	Delivered bool `json:"delivered"`
}

// Sender dials one gRPC connection per gateway replica and reuses it across
// calls; gateways are long-lived services so connections are cached for
// the lifetime of the process rather than the request.
type Sender struct {
	cfg clientgrpc.Config
	// replicas maps a logical gateway ID to the dial targets of its
	// replica instances, for deployments where one gateway ID is served by
	// more than one process behind it. A gateway ID absent here is dialed
	// directly as its own target (the single-instance case).
	replicas map[string][]string

	mu        sync.Mutex
	conns     map[string]*grpc.ClientConn
	balancers map[string]loadbalancing.Balancer
}

// New builds a Sender. cfg.Target is overridden per call with the resolved
// replica address; only the resilience settings in cfg apply. replicas may
// be nil when every gateway ID is a single directly-dialable instance.
func New(cfg clientgrpc.Config, replicas map[string][]string) *Sender {
	return &Sender{
		cfg:       cfg,
		replicas:  replicas,
		conns:     make(map[string]*grpc.ClientConn),
		balancers: make(map[string]loadbalancing.Balancer),
	}
}

// Send delivers payload to target's device via its owning gateway.
func (s *Sender) Send(ctx context.Context, target model.DeliveryTarget, payload []byte) error {
	if target.GatewayID == "" {
		return &worker.SendError{Class: worker.ClassInvalidParameter, Message: "target has no gateway_id"}
	}

	addr, err := s.resolveReplica(ctx, target.GatewayID)
	if err != nil {
		return &worker.SendError{Class: worker.ClassNetwork, Message: err.Error()}
	}

	conn, err := s.connFor(ctx, addr)
	if err != nil {
		return &worker.SendError{Class: worker.ClassNetwork, Message: err.Error()}
	}

	req := &deliverRequest{
		UserID:       target.UserID,
		DeviceID:     target.DeviceID,
		ConnectionID: target.GatewayID,
		Payload:      payload,
	}
	resp := new(deliverResponse)
	if err := conn.Invoke(ctx, deliverMethod, req, resp, grpc.CallContentSubtype((grpcjson.Codec{}).Name())); err != nil {
		return errors.Wrap(err, "gateway deliver rpc failed")
	}
	if !resp.Delivered {
		return &worker.SendError{Class: worker.ClassUserOffline, Message: "gateway reports no active connection"}
	}
	return nil
}

// resolveReplica picks a dial address for gatewayID, round-robining across
// its configured replicas when more than one serves it.
func (s *Sender) resolveReplica(ctx context.Context, gatewayID string) (string, error) {
	addrs := s.replicas[gatewayID]
	if len(addrs) == 0 {
		return gatewayID, nil
	}
	if len(addrs) == 1 {
		return addrs[0], nil
	}

	s.mu.Lock()
	b, ok := s.balancers[gatewayID]
	if !ok {
		b = loadbalancing.NewRoundRobin(addrs...)
		s.balancers[gatewayID] = b
	}
	s.mu.Unlock()

	return b.Next(ctx)
}

func (s *Sender) connFor(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[addr]; ok {
		return conn, nil
	}

	cfg := s.cfg
	cfg.Target = addr
	conn, err := clientgrpc.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.conns[addr] = conn
	return conn, nil
}

// Close tears down every cached gateway connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for id, conn := range s.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.conns, id)
	}
	return firstErr
}
