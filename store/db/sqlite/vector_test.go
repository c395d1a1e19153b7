package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorBlobRoundTrip(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		v := []float32{0.25, -1.5, 3.75, 0}
		assert.Equal(t, v, blobToFloat32Slice(float32SliceToBlob(v)))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Nil(t, float32SliceToBlob(nil))
		assert.Nil(t, blobToFloat32Slice(nil))
	})

	t.Run("TruncatedBlob", func(t *testing.T) {
		assert.Nil(t, blobToFloat32Slice([]byte{1, 2, 3}))
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("Identical", func(t *testing.T) {
		v := []float32{1, 2, 3}
		assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-6)
	})

	t.Run("Orthogonal", func(t *testing.T) {
		assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	})

	t.Run("Opposite", func(t *testing.T) {
		assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		assert.Equal(t, float32(0), cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	})

	t.Run("ZeroVector", func(t *testing.T) {
		assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
	})
}
