// Package idempotency implements the two disciplines of spec.md §4.3:
// stage-level idempotency via StageCompletionMarker lookup, and
// content-level idempotency via sha256 fingerprinting.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

// hashInput is the canonical, ordered encoding of the context fields that
// materially influence a stage's output. It excludes RetryAttempt,
// RequestID and CorrelationID deliberately: those vary per attempt and must
// not perturb the content hash, or idempotency would never trigger.
type hashInput struct {
	DocumentID       string
	FileHash         string
	ChunkFingerprints []string
	ChunkSize        int
	ChunkOverlap     int
	Hierarchical     bool
	DetectErrorCodes bool
	LinkChunks       bool
}

// ComputeDataHash is compute_data_hash(context) of spec.md §4.3: a
// deterministic sha256 over the subset of ProcessingContext that would
// change a stage's output, computed without touching the database.
func ComputeDataHash(pc *engine.ProcessingContext) string {
	fps := make([]string, 0, len(pc.Chunks))
	for _, c := range pc.Chunks {
		fps = append(fps, c.Fingerprint)
	}
	sort.Strings(fps)

	in := hashInput{
		DocumentID:        pc.DocumentID.String(),
		FileHash:          pc.FileHash,
		ChunkFingerprints: fps,
		ChunkSize:         pc.Config.ChunkSize,
		ChunkOverlap:      pc.Config.ChunkOverlap,
		Hierarchical:      pc.Config.Hierarchical,
		DetectErrorCodes:  pc.Config.DetectErrorCodeSections,
		LinkChunks:        pc.Config.LinkChunks,
	}
	// encoding/json on a struct with fixed field order already produces a
	// canonical encoding; no map keys are involved so no extra sorting step
	// is needed beyond the fingerprint slice above.
	raw, _ := json.Marshal(in)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// FileFingerprint is the content hash of raw bytes, used as the object
// store key and for Document.file_hash / Image.file_hash, per spec.md §4.3
// and the content-addressable-dedup testable property (spec.md §8, P2).
func FileFingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeAndFingerprint computes a Chunk.fingerprint: sha256 of the
// normalized chunk text, per spec.md §4.6/§8 P4. Normalization collapses
// runs of whitespace so two chunks differing only in incidental spacing
// still dedup.
func NormalizeAndFingerprint(text string) string {
	sum := sha256.Sum256([]byte(normalize(text)))
	return hex.EncodeToString(sum[:])
}

func normalize(text string) string {
	out := make([]byte, 0, len(text))
	lastSpace := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		isSpace := c == ' ' || c == '\t' || c == '\n' || c == '\r'
		if isSpace {
			if !lastSpace {
				out = append(out, ' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		out = append(out, c)
	}
	return string(out)
}
