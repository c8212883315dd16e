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

// Package batchcodec serializes a batch of records as newline-delimited text
// and applies one of the supported compression transforms. Each method also
// determines the object key suffix and content type of the written object.
package batchcodec

import (
	"fmt"
)

// Method is a compression method for encoded batches. The set is closed;
// anything else is a configuration error caught before the pipeline starts.
type Method string

const (
	Gzip         Method = "gzip"
	Deflate      Method = "deflate"
	Bz2          Method = "bz2"
	Uncompressed Method = "uncompressed"
)

// DefaultMethod is used when no compression type is configured.
const DefaultMethod = Gzip

// ParseMethod validates s as a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case Gzip, Deflate, Bz2, Uncompressed:
		return Method(s), nil
	default:
		return "", fmt.Errorf("unknown compression method %q (supported: gzip, deflate, bz2, uncompressed)", s)
	}
}

// Codec encodes a batch of record bodies into the bytes of one storage
// object. Implementations are stateless and safe for concurrent use.
type Codec interface {
	// Encode writes each record as body+"\n" in order and applies the
	// method's compression transform.
	Encode(records []string) ([]byte, error)

	// Suffix returns the object key suffix, including the ".json" base.
	Suffix() string

	// ContentType returns the MIME type for the written object.
	ContentType() string
}

// ForMethod returns the codec for m. The dispatch is total over the Method
// enum.
func ForMethod(m Method) (Codec, error) {
	switch m {
	case Gzip:
		return gzipCodec{}, nil
	case Deflate:
		return deflateCodec{}, nil
	case Bz2:
		return bz2Codec{}, nil
	case Uncompressed:
		return rawCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression method %q", m)
	}
}

// concat joins records as body+"\n" into one buffer, the input shape for the
// single-shot compressors.
func concat(records []string) []byte {
	n := 0
	for _, r := range records {
		n += len(r) + 1
	}
	buf := make([]byte, 0, n)
	for _, r := range records {
		buf = append(buf, r...)
		buf = append(buf, '\n')
	}
	return buf
}
