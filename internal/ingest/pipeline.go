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

// Package ingest runs the windowed batching pipeline: decode, window
// assignment, shard keying, aggregation, and the watermark-driven flush of
// closed windows to the object writer. It is the hand-built equivalent of a
// streaming runner for this one topology.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/pubsink/internal/aggregator"
	"github.com/cardinalhq/pubsink/internal/objectwriter"
	"github.com/cardinalhq/pubsink/internal/pubsub"
	"github.com/cardinalhq/pubsink/internal/sharding"
	"github.com/cardinalhq/pubsink/internal/windowing"
)

var (
	messagesReceived metric.Int64Counter
	decodeErrors     metric.Int64Counter
	batchesFlushed   metric.Int64Counter
	flushErrors      metric.Int64Counter
	bytesWritten     metric.Int64Counter
	flushDuration    metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/pubsink/internal/ingest")

	var err error
	messagesReceived, err = meter.Int64Counter(
		"pubsink.ingest.messages.received",
		metric.WithDescription("Number of messages received from the source"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create messages.received counter: %w", err))
	}

	decodeErrors, err = meter.Int64Counter(
		"pubsink.ingest.decode.errors",
		metric.WithDescription("Number of payloads that failed to decode"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create decode.errors counter: %w", err))
	}

	batchesFlushed, err = meter.Int64Counter(
		"pubsink.ingest.batches.flushed",
		metric.WithDescription("Number of window/shard batches written"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create batches.flushed counter: %w", err))
	}

	flushErrors, err = meter.Int64Counter(
		"pubsink.ingest.flush.errors",
		metric.WithDescription("Number of batch writes that failed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create flush.errors counter: %w", err))
	}

	bytesWritten, err = meter.Int64Counter(
		"pubsink.ingest.bytes.written",
		metric.WithDescription("Encoded bytes written to storage"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create bytes.written counter: %w", err))
	}

	flushDuration, err = meter.Float64Histogram(
		"pubsink.ingest.flush.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds of one flush pass"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create flush.duration histogram: %w", err))
	}
}

// writeConcurrency bounds parallel batch writes in one flush pass. Batches
// are independent units of work, so they can be written in any order.
const writeConcurrency = 4

// Config assembles a pipeline from its stages.
type Config struct {
	Source    pubsub.Backend
	Assigner  *windowing.Assigner
	Trigger   *windowing.Trigger
	ShardKeys *sharding.KeyGen
	Writer    *objectwriter.Writer

	// FlushInterval is the cadence of watermark advancement. Defaults to
	// one second, or a quarter of the window size for sub-4s windows.
	FlushInterval time.Duration

	// ShutdownTimeout bounds the final drain of open batches. Defaults to
	// 30 seconds.
	ShutdownTimeout time.Duration
}

// Pipeline wires the stages together and owns their lifecycle. Batches are
// isolated units of work: the only cross-batch state is the aggregator map,
// and the only shared resource is the storage namespace, where keys never
// collide by construction.
type Pipeline struct {
	source    pubsub.Backend
	assigner  *windowing.Assigner
	trigger   *windowing.Trigger
	shardKeys *sharding.KeyGen
	writer    *objectwriter.Writer
	agg       *aggregator.Aggregator

	flushInterval   time.Duration
	shutdownTimeout time.Duration
}

// New creates a pipeline. All stages are required.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil || cfg.Assigner == nil || cfg.Trigger == nil || cfg.ShardKeys == nil || cfg.Writer == nil {
		return nil, errors.New("pipeline requires source, assigner, trigger, shard key generator, and writer")
	}

	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Second
		if quarter := cfg.Assigner.Size() / 4; quarter < flushInterval {
			flushInterval = quarter
		}
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	return &Pipeline{
		source:          cfg.Source,
		assigner:        cfg.Assigner,
		trigger:         cfg.Trigger,
		shardKeys:       cfg.ShardKeys,
		writer:          cfg.Writer,
		agg:             aggregator.New(cfg.Trigger),
		flushInterval:   flushInterval,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// Run consumes the source until ctx is cancelled, then drains open batches.
// A storage write failure stops the pipeline: writes are not retried here,
// the hosting runtime restarts the process and the deterministic keys turn
// the replay into an overwrite.
func (p *Pipeline) Run(ctx context.Context) error {
	slog.Info("Starting ingest pipeline",
		slog.String("source", p.source.GetName()),
		slog.Duration("window", p.assigner.Size()),
		slog.Int("shards", p.shardKeys.NumShards()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.source.Run(gctx, p.handleMessage)
	})
	g.Go(func() error {
		return p.flushLoop(gctx)
	})

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("Pipeline stopped with error", slog.Any("error", runErr))
	} else {
		runErr = nil
	}

	// Drain whatever is still open so a graceful shutdown does not drop
	// whole windows. Uses a fresh context; the run context is already
	// cancelled.
	drainCtx, cancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	defer cancel()
	drainErr := p.drain(drainCtx)

	return errors.Join(runErr, drainErr)
}

// handleMessage is the per-delivery path: decode, assign, shard, aggregate.
// Returning an error rejects the delivery for redelivery by the source.
func (p *Pipeline) handleMessage(ctx context.Context, msg pubsub.Message) error {
	messagesReceived.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", p.source.GetName()),
	))

	body, err := Decode(msg.Data)
	if err != nil {
		decodeErrors.Add(ctx, 1)
		return err
	}

	window := p.assigner.Assign(msg.EventTime)
	shard := p.shardKeys.Next()
	p.agg.Add(window, shard, body)
	return nil
}

// flushLoop advances the watermark on a processing-time cadence and writes
// out whichever batches became closed.
func (p *Pipeline) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			p.trigger.Advance(now)
			if err := p.writeBatches(ctx, p.agg.FlushClosed()); err != nil {
				return err
			}
		}
	}
}

// drain flushes every open batch, closed or not.
func (p *Pipeline) drain(ctx context.Context) error {
	batches := p.agg.FlushAll()
	if len(batches) == 0 {
		return nil
	}
	slog.Info("Draining open batches", slog.Int("count", len(batches)))
	return p.writeBatches(ctx, batches)
}

// writeBatches writes a set of batches with bounded parallelism. Empty
// batches never occur: a batch exists only once its first record arrives.
func (p *Pipeline) writeBatches(ctx context.Context, batches []*aggregator.Batch) error {
	if len(batches) == 0 {
		return nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(writeConcurrency)

	for _, b := range batches {
		g.Go(func() error {
			key, size, err := p.writer.WriteBatch(gctx, b)
			if err != nil {
				flushErrors.Add(gctx, 1)
				return err
			}
			batchesFlushed.Add(gctx, 1)
			bytesWritten.Add(gctx, int64(size))
			slog.Debug("Flushed batch",
				slog.String("key", key),
				slog.Int("shard", b.Shard),
				slog.Int("records", len(b.Records)))
			return nil
		})
	}

	err := g.Wait()
	flushDuration.Record(ctx, time.Since(start).Seconds())
	return err
}

// Stats exposes aggregation statistics for monitoring endpoints.
func (p *Pipeline) Stats() aggregator.Stats {
	return p.agg.Stats()
}
