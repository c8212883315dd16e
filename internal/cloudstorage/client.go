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

// Package cloudstorage provides the storage sink capability: a single-call
// object creation API over interchangeable backends. All backends support
// overwrite, which the writer relies on for idempotent retries.
package cloudstorage

import (
	"context"
	"fmt"
)

// Client creates storage objects. One call writes the whole object; there
// are no partial or append writes.
type Client interface {
	// CreateObject writes body as the object at bucket/key with the given
	// content type, overwriting any existing object at that key.
	CreateObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// Options selects and configures a storage backend.
type Options struct {
	Backend string // "s3" or "file"

	// S3 settings. Region and credentials fall back to the ambient AWS
	// configuration. Endpoint and PathStyle support S3-compatible stores
	// (MinIO, GCS interop).
	Region    string
	Endpoint  string
	PathStyle bool

	// File backend root directory.
	BaseDir string
}

// NewClient creates a storage client for the configured backend.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	switch opts.Backend {
	case "s3", "":
		return newS3Client(ctx, opts)
	case "file":
		return NewFileClient(opts.BaseDir), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", opts.Backend)
	}
}
