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

package objectwriter

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/pubsink/internal/aggregator"
	"github.com/cardinalhq/pubsink/internal/batchcodec"
	"github.com/cardinalhq/pubsink/internal/cloudstorage"
	"github.com/cardinalhq/pubsink/internal/windowing"
)

func minuteWindow(t *testing.T, ts time.Time) windowing.Window {
	t.Helper()
	a, err := windowing.NewAssigner(time.Minute)
	require.NoError(t, err)
	return a.Assign(ts)
}

func TestObjectKey_Format(t *testing.T) {
	w := minuteWindow(t, time.Date(2025, 3, 14, 9, 26, 30, 0, time.UTC))

	key := ObjectKey("archive/logs", w, 3, ".json.gz")
	assert.Equal(t, "archive/logs/2025/03/14/logs-09:26-09:27-3.json.gz", key)
}

func TestObjectKey_EmptyPrefix(t *testing.T) {
	w := minuteWindow(t, time.Date(2025, 3, 14, 9, 26, 30, 0, time.UTC))

	key := ObjectKey("", w, 0, ".json")
	assert.Equal(t, "2025/03/14/logs-09:26-09:27-0.json", key)
}

func TestObjectKey_DateFromWindowStart(t *testing.T) {
	// Window straddles midnight; the date directory comes from the start.
	a, err := windowing.NewAssigner(10 * time.Minute)
	require.NoError(t, err)
	w := a.Assign(time.Date(2025, 3, 14, 23, 57, 0, 0, time.UTC))

	key := ObjectKey("p", w, 0, ".json")
	assert.Equal(t, "p/2025/03/14/logs-23:50-00:00-0.json", key)
}

func TestObjectKey_DistinctAcrossWindowsAndShards(t *testing.T) {
	a, err := windowing.NewAssigner(time.Minute)
	require.NoError(t, err)

	seen := map[string]bool{}
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	for windowIdx := 0; windowIdx < 10; windowIdx++ {
		w := a.Assign(base.Add(time.Duration(windowIdx) * time.Minute))
		for shard := 0; shard < 5; shard++ {
			key := ObjectKey("p", w, shard, ".json.gz")
			require.False(t, seen[key], "duplicate key %s", key)
			seen[key] = true
		}
	}
}

func TestNew_RejectsBadOutputDirectory(t *testing.T) {
	codec, err := batchcodec.ForMethod(batchcodec.Uncompressed)
	require.NoError(t, err)
	client := cloudstorage.NewFileClient(t.TempDir())

	_, err = New(client, "bucket/prefix/", codec)
	assert.Error(t, err)

	_, err = New(client, "", codec)
	assert.Error(t, err)
}

func TestNew_StripsScheme(t *testing.T) {
	codec, err := batchcodec.ForMethod(batchcodec.Uncompressed)
	require.NoError(t, err)
	client := cloudstorage.NewFileClient(t.TempDir())

	w, err := New(client, "gs://bucket/some/prefix", codec)
	require.NoError(t, err)
	assert.Equal(t, "bucket", w.Bucket())
}

func TestWriteBatch_UncompressedScenario(t *testing.T) {
	// window_interval_sec=60, num_shards=1, uncompressed: one object
	// .../logs-HH:MM-HH:MM-0.json containing exactly "a\nb\nc\n".
	base := t.TempDir()
	codec, err := batchcodec.ForMethod(batchcodec.Uncompressed)
	require.NoError(t, err)
	writer, err := New(cloudstorage.NewFileClient(base), "bucket/logs", codec)
	require.NoError(t, err)

	w := minuteWindow(t, time.Date(2025, 3, 14, 9, 26, 5, 0, time.UTC))
	batch := &aggregator.Batch{Window: w, Shard: 0, Records: []string{"a", "b", "c"}}

	key, size, err := writer.WriteBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, "logs/2025/03/14/logs-09:26-09:27-0.json", key)
	assert.Equal(t, len("a\nb\nc\n"), size)

	data, err := os.ReadFile(filepath.Join(base, "bucket", filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(data))
}

func TestWriteBatch_GzipScenario(t *testing.T) {
	// Same inputs with gzip: one object ...-0.json.gz whose decompression
	// yields "a\nb\nc\n".
	base := t.TempDir()
	codec, err := batchcodec.ForMethod(batchcodec.Gzip)
	require.NoError(t, err)
	writer, err := New(cloudstorage.NewFileClient(base), "bucket/logs", codec)
	require.NoError(t, err)

	w := minuteWindow(t, time.Date(2025, 3, 14, 9, 26, 5, 0, time.UTC))
	batch := &aggregator.Batch{Window: w, Shard: 0, Records: []string{"a", "b", "c"}}

	key, size, err := writer.WriteBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, "logs/2025/03/14/logs-09:26-09:27-0.json.gz", key)
	assert.Positive(t, size)

	f, err := os.Open(filepath.Join(base, "bucket", filepath.FromSlash(key)))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	decompressed, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(decompressed))
}

func TestWriteBatch_RewriteIsIdempotent(t *testing.T) {
	base := t.TempDir()
	codec, err := batchcodec.ForMethod(batchcodec.Gzip)
	require.NoError(t, err)
	writer, err := New(cloudstorage.NewFileClient(base), "bucket", codec)
	require.NoError(t, err)

	w := minuteWindow(t, time.Date(2025, 3, 14, 9, 26, 5, 0, time.UTC))
	batch := &aggregator.Batch{Window: w, Shard: 2, Records: []string{"x", "y"}}

	key1, _, err := writer.WriteBatch(context.Background(), batch)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(base, "bucket", filepath.FromSlash(key1)))
	require.NoError(t, err)

	// Simulated retry lands on the same key with identical content.
	key2, _, err := writer.WriteBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	second, err := os.ReadFile(filepath.Join(base, "bucket", filepath.FromSlash(key2)))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
