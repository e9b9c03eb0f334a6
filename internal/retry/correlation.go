// Package retry implements the hybrid sync-then-async retry engine of
// spec.md §4.2: correlation IDs, advisory locks, and a background retry
// queue built from the adapted core/broker + core/scheduler toolkit.
package retry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// NewRequestID returns an 8-hex request id, one per document processing
// run, per spec.md §4.2.
func NewRequestID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// CorrelationID formats "{request_id}.stage_{stage}.retry_{attempt}", per
// spec.md §4.2 and the GLOSSARY.
func CorrelationID(requestID, stage string, attempt int) string {
	return fmt.Sprintf("%s.stage_%s.retry_%d", requestID, stage, attempt)
}

// AdvisoryLockKey hashes (document_id, stage_name) into the int64 key
// Postgres advisory locks take, per spec.md §4.2.
func AdvisoryLockKey(documentID, stageName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(documentID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(stageName))
	return int64(h.Sum64())
}
