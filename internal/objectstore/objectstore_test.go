package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/visual"
)

var _ visual.ObjectStore = (*Bucket)(nil)

func TestPublicURLJoinsBaseAndPath(t *testing.T) {
	c := &Client{publicURLBase: "https://cdn.example.com/"}
	assert.Equal(t, "https://cdn.example.com/images/abc.svg", c.publicURL("images/abc.svg"))
}

func TestPublicURLFallsBackToPathWhenBaseUnset(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "images/abc.svg", c.publicURL("images/abc.svg"))
}

func TestBucketScopesToName(t *testing.T) {
	c := &Client{}
	b := c.Bucket("kr-images")
	assert.Equal(t, "kr-images", b.name)
	assert.Same(t, c, b.client)
}
