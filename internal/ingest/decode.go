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

package ingest

import (
	"fmt"
	"unicode/utf8"
)

// Decode converts a raw payload into a text record. Malformed payloads are
// rejected so the delivery fails and is redelivered; there is no skip or
// dead-letter path.
func Decode(payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", fmt.Errorf("payload is not valid UTF-8 (%d bytes)", len(payload))
	}
	return string(payload), nil
}
