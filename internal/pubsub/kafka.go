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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaService consumes a topic through a consumer group. Offsets are
// committed only after the handler accepts a message, so unprocessed
// messages are redelivered after a restart (at-least-once).
type KafkaService struct {
	reader *kafka.Reader
}

var _ Backend = (*KafkaService)(nil)

func NewKafkaService(opts Options) (*KafkaService, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	groupID := opts.GroupID
	if groupID == "" {
		groupID = "pubsink"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  opts.Brokers,
		GroupID:  groupID,
		Topic:    opts.Topic,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
		MaxWait:  500 * time.Millisecond,
	})

	slog.Info("Kafka service initialized",
		slog.String("topic", opts.Topic),
		slog.String("group", groupID))
	return &KafkaService{reader: reader}, nil
}

func (ks *KafkaService) GetName() string {
	return "kafka"
}

func (ks *KafkaService) Run(doneCtx context.Context, handler Handler) error {
	defer func() {
		if err := ks.reader.Close(); err != nil {
			slog.Error("Failed to close Kafka reader", slog.Any("error", err))
		}
	}()

	for {
		msg, err := ks.reader.FetchMessage(doneCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("Kafka fetch error: %w", err)
		}

		// The broker timestamp is the event time, the Kafka analogue of
		// Pub/Sub publish time.
		if err := handler(doneCtx, Message{Data: msg.Value, EventTime: msg.Time}); err != nil {
			// Leave the offset uncommitted; the message is redelivered
			// after restart.
			return fmt.Errorf("handle message at offset %d: %w", msg.Offset, err)
		}

		if err := ks.reader.CommitMessages(doneCtx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}
