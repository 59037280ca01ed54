// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package textgen

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint is the deterministic cache key for one semantic generation
// request. Two requests about the same subject, against the same model, over
// the same data snapshot produce the same fingerprint; any change to one of
// those produces a different one.
type Fingerprint string

// NewFingerprint derives a fingerprint from the backend model name, the
// logical subject (typically a ticker plus prompt template name), and a
// snapshot version (typically the trading day of the underlying data).
//
// The prompt body is deliberately excluded: numeric noise in the rendered
// prompt (timestamps, float formatting) must not defeat caching for the same
// subject and snapshot.
func NewFingerprint(model, subject, snapshot string) Fingerprint {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToUpper(strings.TrimSpace(subject))))
	h.Write([]byte{0})
	h.Write([]byte(snapshot))
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// String returns the hex form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
