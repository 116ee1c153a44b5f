// Package presenceclient implements presence.Source over a gRPC call to
// the connection registry owned by the gateway tier, using the same
// hand-written JSON codec as the ingest RPC instead of protobuf stubs.
package presenceclient

import (
	"context"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/transport/grpcjson"
	clientgrpc "github.com/flare-im/message-core/pkg/client/grpc"
	"github.com/flare-im/message-core/pkg/errors"
	"google.golang.org/grpc"
)

const getOnlineStatusMethod = "/flare.im.Gateway/GetOnlineStatus"

type getOnlineStatusRequest struct {
	UserIDs []string `json:"user_ids"`
}

type getOnlineStatusResponse struct {
	Targets map[string][]model.DeliveryTarget `json:"targets"`
}

// Client is a presence.Source backed by one long-lived gRPC connection to
// the gateway's registry endpoint.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the gateway registry described by cfg.
func New(ctx context.Context, cfg clientgrpc.Config) (*Client, error) {
	conn, err := clientgrpc.New(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial presence registry")
	}
	return &Client{conn: conn}, nil
}

// GetOnlineStatus implements presence.Source.
func (c *Client) GetOnlineStatus(ctx context.Context, userIDs []string) (map[string][]model.DeliveryTarget, error) {
	req := &getOnlineStatusRequest{UserIDs: userIDs}
	resp := new(getOnlineStatusResponse)
	if err := c.conn.Invoke(ctx, getOnlineStatusMethod, req, resp, grpc.CallContentSubtype((grpcjson.Codec{}).Name())); err != nil {
		return nil, errors.Wrap(err, "get online status rpc failed")
	}
	return resp.Targets, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
