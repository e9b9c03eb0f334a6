package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestIDIsHexAndUnique(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}

func TestCorrelationIDFormat(t *testing.T) {
	got := CorrelationID("abcd1234", "embedding", 2)
	assert.Equal(t, "abcd1234.stage_embedding.retry_2", got)
}

func TestAdvisoryLockKeyDeterministicAndDistinguishesStage(t *testing.T) {
	docID := "11111111-1111-1111-1111-111111111111"
	k1 := AdvisoryLockKey(docID, "text_extraction")
	k2 := AdvisoryLockKey(docID, "text_extraction")
	k3 := AdvisoryLockKey(docID, "embedding")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestBackoffDelayGrowsExponentially(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: 10 * time.Millisecond, JitterFrac: 0}

	assert.Equal(t, 10*time.Millisecond, p.BackoffDelay(0))
	assert.Equal(t, 20*time.Millisecond, p.BackoffDelay(1))
	assert.Equal(t, 40*time.Millisecond, p.BackoffDelay(2))
}

func TestBackoffDelayWithJitterStaysWithinBounds(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, JitterFrac: 0.5}
	base := 100 * time.Millisecond

	for i := 0; i < 20; i++ {
		d := p.BackoffDelay(0)
		assert.GreaterOrEqual(t, d, base/2)
		assert.LessOrEqual(t, d, base*3/2)
	}
}
