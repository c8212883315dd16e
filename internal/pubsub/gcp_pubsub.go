// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

type GCPPubSubService struct {
	tracer trace.Tracer
	client *pubsub.Client
	sub    *pubsub.Subscription
}

// Ensure GCPPubSubService implements Backend interface
var _ Backend = (*GCPPubSubService)(nil)

// NewGCPPubSubService connects to the configured Pub/Sub subscription. The
// publish time of each delivery is used as the record's event time, matching
// the windowing contract.
func NewGCPPubSubService(ctx context.Context, opts Options) (*GCPPubSubService, error) {
	projectID := opts.ProjectID
	if projectID == "" {
		projectID = os.Getenv("GCP_PROJECT_ID")
	}
	if projectID == "" {
		return nil, fmt.Errorf("GCP project ID is required (config or GCP_PROJECT_ID)")
	}

	if opts.Topic == "" {
		return nil, fmt.Errorf("subscription ID is required")
	}

	// Only set credentials if explicitly provided (ADC will handle GCE/Cloud Run)
	var clientOpts []option.ClientOption
	if keyFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); keyFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(keyFile))
	}
	client, err := pubsub.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	service := &GCPPubSubService{
		tracer: otel.Tracer("github.com/cardinalhq/pubsink/internal/pubsub"),
		client: client,
		sub:    client.Subscription(opts.Topic),
	}

	slog.Info("GCP Pub/Sub service initialized",
		slog.String("project", projectID),
		slog.String("subscription", opts.Topic))
	return service, nil
}

func (ps *GCPPubSubService) GetName() string {
	return "gcp"
}

func (ps *GCPPubSubService) Run(doneCtx context.Context, handler Handler) error {
	slog.Info("Starting GCP Pub/Sub receive loop")

	defer func() {
		if err := ps.client.Close(); err != nil {
			slog.Error("Failed to close GCP Pub/Sub client", slog.Any("error", err))
		}
	}()

	err := ps.sub.Receive(doneCtx, func(ctx context.Context, msg *pubsub.Message) {
		ps.handleMessage(ctx, msg, handler)
	})
	if err != nil && err != context.Canceled {
		return fmt.Errorf("GCP Pub/Sub receive error: %w", err)
	}

	return nil
}

// handleMessage processes one delivery with tracing, acking on success and
// nacking to trigger redelivery on failure.
func (ps *GCPPubSubService) handleMessage(ctx context.Context, msg *pubsub.Message, handler Handler) {
	ctx, span := ps.tracer.Start(ctx, "gcp_pubsub.message_handler",
		trace.WithAttributes(
			attribute.String("message_id", msg.ID),
			attribute.String("publish_time", msg.PublishTime.String()),
		))
	defer span.End()

	err := handler(ctx, Message{Data: msg.Data, EventTime: msg.PublishTime})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))

		slog.Error("Failed to handle message",
			slog.Any("error", err),
			slog.String("message_id", msg.ID))

		msg.Nack()
		return
	}

	msg.Ack()

	span.SetAttributes(attribute.String("status", "success"))
}
