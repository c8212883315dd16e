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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend_UnsupportedType(t *testing.T) {
	_, err := NewBackend(context.Background(), Options{Backend: "sqs"})
	assert.Error(t, err)
}

func TestNewKafkaService_Validation(t *testing.T) {
	_, err := NewKafkaService(Options{Topic: "logs"})
	assert.Error(t, err, "brokers are required")

	_, err = NewKafkaService(Options{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err, "topic is required")
}

func TestNewKafkaService_Defaults(t *testing.T) {
	ks, err := NewKafkaService(Options{
		Brokers: []string{"localhost:9092"},
		Topic:   "logs",
	})
	require.NoError(t, err)
	assert.Equal(t, "kafka", ks.GetName())
}
