package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

type fakeBucket struct {
	err error
}

func (b *fakeBucket) PutContent(_ context.Context, content []byte, ext, _ string) (storageURL, storagePath, fileHash string, deduped bool, err error) {
	if b.err != nil {
		return "", "", "", false, b.err
	}
	sum := sha256.Sum256(content)
	fileHash = hex.EncodeToString(sum[:])
	storagePath = "thumbnails/" + fileHash + ext
	return "https://objects.local/" + storagePath, storagePath, fileHash, false, nil
}
