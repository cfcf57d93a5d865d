package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"docpipeline/internal/config"
)

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	c, err := New(config.CacheConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestNilCacheMethodsAreNoOps(t *testing.T) {
	var c *ExtractedValueCache
	assert.NotPanics(t, func() {
		v, ok := c.Get(context.Background(), "doc-1", "cfg-1", 1)
		assert.Equal(t, "", v)
		assert.False(t, ok)
		c.Set(context.Background(), "doc-1", "cfg-1", 1, "value")
		c.Close()
	})
}

func TestKeyIncludesPromptVersion(t *testing.T) {
	k1 := key("doc-1", "cfg-1", 1)
	k2 := key("doc-1", "cfg-1", 2)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, "extracted:doc-1:cfg-1:1", k1)
}
