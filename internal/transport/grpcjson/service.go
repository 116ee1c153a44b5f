package grpcjson

import (
	"context"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/orchestrator"
	"google.golang.org/grpc"
)

// StoreMessageRequest is the wire shape for the ingest RPC, per spec §6.
type StoreMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   struct {
		ID               string               `json:"id"`
		ConversationID   string               `json:"conversation_id"`
		SenderID         string               `json:"sender_id"`
		SenderSource     model.SenderSource   `json:"sender_source"`
		ConversationType model.ConversationType `json:"conversation_type"`
		ContentType      string               `json:"content_type"`
		Content          []byte               `json:"content"`
		MessageTypeLabel string               `json:"message_type_label"`
		NotificationOnly bool                 `json:"notification_only"`
		RecipientIDs     []string             `json:"recipient_ids"`
		BurnAfterRead    bool                 `json:"burn_after_read"`
	} `json:"message"`
	Sync    bool `json:"sync"`
	Context struct {
		RequestID string `json:"request_id"`
		Trace     string `json:"trace"`
	} `json:"context"`
	Tenant struct {
		TenantID     string `json:"tenant_id"`
		BusinessType string `json:"business_type"`
	} `json:"tenant"`
	Tags []string `json:"tags"`
}

// StoreMessageResponse is the ingest RPC's response shape, per spec §6.
type StoreMessageResponse struct {
	MessageID     string              `json:"message_id"`
	Seq           int64               `json:"seq"`
	Status        model.Status        `json:"status"`
	Deduplicated  bool                `json:"deduplicated"`
}

// MessageCoreServer is the interface ServiceDesc's HandlerType points at,
// mirroring what protoc-gen-go-grpc would emit for this RPC.
type MessageCoreServer interface {
	StoreMessage(ctx context.Context, req *StoreMessageRequest) (*StoreMessageResponse, error)
}

// Service wraps an orchestrator.Service as a gRPC handler.
type Service struct {
	orchestrator *orchestrator.Service
}

// NewService builds a Service.
func NewService(o *orchestrator.Service) *Service {
	return &Service{orchestrator: o}
}

// StoreMessage implements MessageCoreServer.
func (s *Service) StoreMessage(ctx context.Context, req *StoreMessageRequest) (*StoreMessageResponse, error) {
	out, err := s.orchestrator.StoreMessage(ctx, orchestrator.StoreMessageRequest{
		ID:               req.Message.ID,
		ConversationID:   req.Message.ConversationID,
		SenderID:         req.Message.SenderID,
		SenderSource:     req.Message.SenderSource,
		ConversationType: req.Message.ConversationType,
		BusinessType:     req.Tenant.BusinessType,
		ContentType:      req.Message.ContentType,
		Content:          req.Message.Content,
		MessageTypeLabel: req.Message.MessageTypeLabel,
		NotificationOnly: req.Message.NotificationOnly,
		TenantID:         req.Tenant.TenantID,
		RecipientIDs:     req.Message.RecipientIDs,
		BurnAfterRead:    req.Message.BurnAfterRead,
	})
	if err != nil {
		return nil, err
	}

	status := model.StatusCreated
	if out.Accepted {
		status = model.StatusPersisted
	}

	return &StoreMessageResponse{
		MessageID:    out.MessageID,
		Seq:          out.Seq,
		Status:       status,
		Deduplicated: !out.Accepted,
	}, nil
}

func storeMessageHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(StoreMessageRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	svc := srv.(MessageCoreServer)
	if interceptor == nil {
		return svc.StoreMessage(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flare.im.MessageCore/StoreMessage"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return svc.StoreMessage(ctx, req.(*StoreMessageRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// ServiceDesc describes the ingest service for grpc.Server.RegisterService,
// in place of a protoc-generated descriptor.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "flare.im.MessageCore",
	HandlerType: (*MessageCoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StoreMessage", Handler: storeMessageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "message_core.proto",
}
