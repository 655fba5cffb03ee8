package bioscan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Ranker scores receptors against a query signature.
type Ranker struct {
	embedder Embedder
}

// NewRanker constructs a ranker that embeds targets with e.
func NewRanker(e Embedder) *Ranker {
	return &Ranker{embedder: e}
}

// Rank embeds every target, scores it as cosine similarity x 100 and returns the
// scores in descending order. Ties keep target order. Any failure aborts the whole
// ranking; no partial list is returned.
func (r *Ranker) Rank(ctx context.Context, query []float32, targets []ReceptorEntry) ([]Score, error) {
	scores := make([]Score, 0, len(targets))
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := r.embedder.Embed(ctx, target.Sequence)
		if err != nil {
			return nil, &InferenceError{Target: target.Name, Err: err}
		}
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			return nil, &InferenceError{Target: target.Name, Err: err}
		}
		scores = append(scores, Score{Name: target.Name, Score: sim * 100})
	}
	SortScores(scores)
	return scores, nil
}

// SortScores orders scores descending, keeping the input order of equal scores.
func SortScores(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
}

// CosineSimilarity returns dot(a, b) / (|a| |b|) in [-1, 1]. A zero-magnitude
// vector scores 0. Vectors of different dimension are an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errors.New("empty signature")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("signature dimensions differ: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		fa := float64(a[i])
		fb := float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
