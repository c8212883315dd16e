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

// Package pubsub provides the message source capability: a stream of opaque
// payloads with associated event times, delivered at-least-once from a
// subscription.
package pubsub

import (
	"context"
	"time"
)

// Message is one delivery from the source: an opaque payload and the event
// time the windowing stage buckets it by.
type Message struct {
	Data      []byte
	EventTime time.Time
}

// Handler processes one message. A non-nil error rejects the delivery so the
// backend can redeliver it.
type Handler func(ctx context.Context, msg Message) error

// Backend is a message source. Run blocks delivering messages to the handler
// until ctx is cancelled.
type Backend interface {
	GetName() string
	Run(ctx context.Context, handler Handler) error
}

// BackendType identifies a source backend implementation.
type BackendType string

const (
	BackendTypeGCPPubSub BackendType = "gcp"
	BackendTypeKafka     BackendType = "kafka"
)
