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
)

// Options configures the source backend.
type Options struct {
	Backend BackendType

	// Topic names the subscription to consume: the Pub/Sub subscription ID
	// or the Kafka topic.
	Topic string

	// GCP settings. ProjectID falls back to the GCP_PROJECT_ID environment
	// variable.
	ProjectID string

	// Kafka settings.
	Brokers []string
	GroupID string
}

// NewBackend creates a Backend implementation based on the specified type.
func NewBackend(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case BackendTypeGCPPubSub, "":
		return NewGCPPubSubService(ctx, opts)
	case BackendTypeKafka:
		return NewKafkaService(opts)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", opts.Backend)
	}
}
