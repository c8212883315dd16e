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

package cloudstorage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	uploadCount  metric.Int64Counter
	uploadBytes  metric.Int64Counter
	uploadErrors metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/pubsink/internal/cloudstorage")

	var err error
	uploadCount, err = meter.Int64Counter(
		"pubsink.s3.upload.count",
		metric.WithDescription("Number of S3 uploads"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.count counter: %w", err))
	}

	uploadBytes, err = meter.Int64Counter(
		"pubsink.s3.upload.bytes",
		metric.WithDescription("Bytes uploaded to S3"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.bytes counter: %w", err))
	}

	uploadErrors, err = meter.Int64Counter(
		"pubsink.s3.upload.errors",
		metric.WithDescription("Number of S3 upload errors"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.errors counter: %w", err))
	}
}

type s3Client struct {
	uploader *manager.Uploader
	tracer   trace.Tracer
}

// newS3Client builds a client from the ambient AWS configuration plus the
// given overrides. A custom endpoint with path-style addressing covers
// S3-compatible stores such as MinIO and GCS in interop mode.
func newS3Client(ctx context.Context, opts Options) (Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.PathStyle {
			o.UsePathStyle = true
		}
	})

	return &s3Client{
		uploader: manager.NewUploader(client),
		tracer:   otel.Tracer("github.com/cardinalhq/pubsink/internal/cloudstorage"),
	}, nil
}

func (c *s3Client) CreateObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	ctx, span := c.tracer.Start(ctx, "cloudstorage.CreateObject",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"writer": "pubsink-go",
		},
	})
	if err != nil {
		uploadErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("bucket", bucket),
		))
		return fmt.Errorf("failed to upload S3 object %s/%s: %w", bucket, key, err)
	}

	uploadCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bucket", bucket),
	))
	uploadBytes.Add(ctx, int64(len(body)), metric.WithAttributes(
		attribute.String("bucket", bucket),
	))

	return nil
}
