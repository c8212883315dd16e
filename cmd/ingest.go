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

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/pubsink/config"
	"github.com/cardinalhq/pubsink/internal/batchcodec"
	"github.com/cardinalhq/pubsink/internal/cloudstorage"
	"github.com/cardinalhq/pubsink/internal/ingest"
	"github.com/cardinalhq/pubsink/internal/objectwriter"
	"github.com/cardinalhq/pubsink/internal/pubsub"
	"github.com/cardinalhq/pubsink/internal/sharding"
	"github.com/cardinalhq/pubsink/internal/windowing"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Consume messages and write windowed, sharded batches to object storage",
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "pubsink-ingest"
			doneCtx, doneFx, err := setupTelemetry(servicename)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			pipeline, err := buildPipeline(doneCtx, cfg)
			if err != nil {
				return err
			}

			if err := pipeline.Run(doneCtx); err != nil {
				return fmt.Errorf("pipeline failed: %w", err)
			}
			slog.Info("Ingest command done")
			return nil
		},
	}

	rootCmd.AddCommand(cmd)
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*ingest.Pipeline, error) {
	method, err := batchcodec.ParseMethod(cfg.Pipeline.CompressionType)
	if err != nil {
		return nil, err
	}
	codec, err := batchcodec.ForMethod(method)
	if err != nil {
		return nil, err
	}

	client, err := cloudstorage.NewClient(ctx, cloudstorage.Options{
		Backend:   cfg.Sink.Backend,
		Region:    cfg.Sink.S3.Region,
		Endpoint:  cfg.Sink.S3.Endpoint,
		PathStyle: cfg.Sink.S3.PathStyle,
		BaseDir:   cfg.Sink.File.BaseDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	writer, err := objectwriter.New(client, cfg.Sink.OutputDirectory, codec)
	if err != nil {
		return nil, fmt.Errorf("failed to create object writer: %w", err)
	}

	source, err := pubsub.NewBackend(ctx, pubsub.Options{
		Backend:   pubsub.BackendType(cfg.Source.Backend),
		Topic:     cfg.Source.Topic,
		ProjectID: cfg.Source.ProjectID,
		Brokers:   cfg.Source.Kafka.Brokers,
		GroupID:   cfg.Source.Kafka.GroupID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create source backend: %w", err)
	}

	assigner, err := windowing.NewAssigner(cfg.Pipeline.WindowInterval())
	if err != nil {
		return nil, err
	}
	shardKeys, err := sharding.New(cfg.Pipeline.NumShards)
	if err != nil {
		return nil, err
	}

	return ingest.New(ingest.Config{
		Source:          source,
		Assigner:        assigner,
		Trigger:         windowing.NewTrigger(cfg.Pipeline.AllowedLateness()),
		ShardKeys:       shardKeys,
		Writer:          writer,
		FlushInterval:   cfg.Pipeline.FlushInterval,
		ShutdownTimeout: cfg.Pipeline.ShutdownTimeout,
	})
}
