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

package batchcodec

import (
	"bytes"
	"fmt"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// gzipCodec streams records through one gzip member for the whole batch.
type gzipCodec struct{}

func (gzipCodec) Encode(records []string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, r := range records {
		if _, err := gz.Write([]byte(r)); err != nil {
			return nil, fmt.Errorf("gzip write: %w", err)
		}
		if _, err := gz.Write([]byte{'\n'}); err != nil {
			return nil, fmt.Errorf("gzip write: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Suffix() string      { return ".json.gz" }
func (gzipCodec) ContentType() string { return "application/gzip" }

// deflateCodec compresses the concatenated batch in one shot with zlib.
type deflateCodec struct{}

func (deflateCodec) Encode(records []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(concat(records)); err != nil {
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

func (deflateCodec) Suffix() string      { return ".json.zlib" }
func (deflateCodec) ContentType() string { return "application/zlib" }

// bz2Codec compresses the concatenated batch in one shot with bzip2.
// The standard library only decompresses bzip2, so encoding uses
// github.com/dsnet/compress.
type bz2Codec struct{}

func (bz2Codec) Encode(records []string) ([]byte, error) {
	var buf bytes.Buffer
	bw, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	if err != nil {
		return nil, fmt.Errorf("bzip2 writer: %w", err)
	}
	if _, err := bw.Write(concat(records)); err != nil {
		return nil, fmt.Errorf("bzip2 write: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("bzip2 close: %w", err)
	}
	return buf.Bytes(), nil
}

func (bz2Codec) Suffix() string      { return ".json.bz2" }
func (bz2Codec) ContentType() string { return "application/x-bzip2" }

// rawCodec writes records verbatim with no compression.
type rawCodec struct{}

func (rawCodec) Encode(records []string) ([]byte, error) {
	return concat(records), nil
}

func (rawCodec) Suffix() string      { return ".json" }
func (rawCodec) ContentType() string { return "application/json" }
