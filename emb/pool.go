package emb

import "fmt"

// MeanPool averages a row-major [tokens x hidden] matrix over the token axis.
func MeanPool(data []float32, tokens, hidden int) ([]float32, error) {
	if tokens <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("invalid pooling shape %dx%d", tokens, hidden)
	}
	if len(data) != tokens*hidden {
		return nil, fmt.Errorf("pooling expects %d values, got %d", tokens*hidden, len(data))
	}
	sums := make([]float64, hidden)
	for t := 0; t < tokens; t++ {
		row := data[t*hidden : (t+1)*hidden]
		for h, v := range row {
			sums[h] += float64(v)
		}
	}
	out := make([]float32, hidden)
	for h, s := range sums {
		out[h] = float32(s / float64(tokens))
	}
	return out, nil
}
