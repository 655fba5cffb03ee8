package bioscan

import "context"

const compositionDim = 26

// CompositionEmbedder maps a sequence to its 26-letter residue frequency vector.
// It needs no model, is always ready and is fully deterministic, which makes it a
// stand-in for the ONNX provider in tests and offline runs.
type CompositionEmbedder struct{}

// Embed implements Embedder.
func (CompositionEmbedder) Embed(ctx context.Context, seq string) ([]float32, error) {
	if seq == "" {
		return nil, validationErrorf("empty sequence")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, compositionDim)
	n := 0
	for i := 0; i < len(seq); i++ {
		c := seq[i]
		if c < 'A' || c > 'Z' {
			continue
		}
		vec[c-'A']++
		n++
	}
	if n == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] /= float32(n)
	}
	return vec, nil
}

// ModelID implements Embedder.
func (CompositionEmbedder) ModelID() string { return "composition" }

// Close implements Embedder.
func (CompositionEmbedder) Close() error { return nil }
