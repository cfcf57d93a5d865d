package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicEmbedderDimension(t *testing.T) {
	e := NewDeterministic(16, true, 42)
	vecs, err := e.EmbedBatch(context.Background(), []string{"hello world", "second chunk"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, v := range vecs {
		assert.Len(t, v, 16)
	}
}

func TestDeterministicEmbedderStable(t *testing.T) {
	e := NewDeterministic(32, false, 7)
	a, err := e.EmbedBatch(context.Background(), []string{"same text"})
	require.NoError(t, err)
	b, err := e.EmbedBatch(context.Background(), []string{"same text"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeterministicEmbedderDiffers(t *testing.T) {
	e := NewDeterministic(32, false, 7)
	a, err := e.EmbedBatch(context.Background(), []string{"text one"})
	require.NoError(t, err)
	b, err := e.EmbedBatch(context.Background(), []string{"text two, quite different"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDeterministicNormalize(t *testing.T) {
	e := NewDeterministic(16, true, 1)
	vecs, err := e.EmbedBatch(context.Background(), []string{"normalize me please"})
	require.NoError(t, err)
	var sum float64
	for _, x := range vecs[0] {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 0.01)
}

func TestDeterministicPing(t *testing.T) {
	e := NewDeterministic(8, false, 0)
	assert.NoError(t, e.Ping(context.Background()))
}
