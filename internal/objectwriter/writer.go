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

// Package objectwriter turns a flushed batch into one storage object under a
// deterministic, date-partitioned key. Keys encode the window boundaries and
// shard id, so concurrent writers never collide and a retried write lands on
// the same key it wrote before.
package objectwriter

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cardinalhq/pubsink/internal/aggregator"
	"github.com/cardinalhq/pubsink/internal/batchcodec"
	"github.com/cardinalhq/pubsink/internal/cloudstorage"
	"github.com/cardinalhq/pubsink/internal/windowing"
)

// Writer encodes batches and writes them to the storage sink. It does not
// retry; the hosting runtime re-runs failed work and the deterministic key
// makes that an overwrite rather than a duplicate.
type Writer struct {
	client cloudstorage.Client
	bucket string
	prefix string
	codec  batchcodec.Codec
}

// New creates a writer targeting outputDirectory, which names the bucket and
// an optional key prefix ("bucket/team/logs"). An "s3://" or "gs://" scheme
// is accepted and stripped. The directory must not end with a separator.
func New(client cloudstorage.Client, outputDirectory string, codec batchcodec.Codec) (*Writer, error) {
	bucket, prefix, err := splitDirectory(outputDirectory)
	if err != nil {
		return nil, err
	}
	return &Writer{
		client: client,
		bucket: bucket,
		prefix: prefix,
		codec:  codec,
	}, nil
}

func splitDirectory(dir string) (bucket, prefix string, err error) {
	for _, scheme := range []string{"s3://", "gs://"} {
		if rest, ok := strings.CutPrefix(dir, scheme); ok {
			dir = rest
			break
		}
	}
	if dir == "" || strings.HasSuffix(dir, "/") {
		return "", "", fmt.Errorf("output directory must be %q with no trailing separator, got %q", "bucket[/prefix]", dir)
	}
	bucket, prefix, _ = strings.Cut(dir, "/")
	return bucket, prefix, nil
}

// ObjectKey builds the key for one (window, shard) batch:
//
//	{prefix}/{YYYY}/{MM}/{DD}/logs-{HH:MM}-{HH:MM}-{shard}{suffix}
//
// Date components come from the window start in UTC.
func ObjectKey(prefix string, w windowing.Window, shard int, suffix string) string {
	start := w.Start().UTC()
	name := fmt.Sprintf("logs-%s-%s-%d%s",
		start.Format("15:04"),
		w.End().UTC().Format("15:04"),
		shard,
		suffix,
	)
	return path.Join(prefix, start.Format("2006/01/02"), name)
}

// WriteBatch encodes the batch and creates its object in a single call,
// returning the object key and encoded size. Write failures are returned
// as-is for the caller to surface; re-invoking with the same batch
// overwrites the same key.
func (w *Writer) WriteBatch(ctx context.Context, b *aggregator.Batch) (string, int, error) {
	encoded, err := w.codec.Encode(b.Records)
	if err != nil {
		return "", 0, fmt.Errorf("encode batch %s shard %d: %w", b.Window, b.Shard, err)
	}

	key := ObjectKey(w.prefix, b.Window, b.Shard, w.codec.Suffix())
	if err := w.client.CreateObject(ctx, w.bucket, key, encoded, w.codec.ContentType()); err != nil {
		return "", 0, fmt.Errorf("write batch %s shard %d: %w", b.Window, b.Shard, err)
	}
	return key, len(encoded), nil
}

// Bucket returns the target bucket.
func (w *Writer) Bucket() string {
	return w.bucket
}
