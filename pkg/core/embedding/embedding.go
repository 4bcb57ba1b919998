// Package embedding turns text into fixed-dimension vectors for the vector
// index's semantic-tier merge search. Two tiers: a provider-backed call,
// and a deterministic hash-n-gram fallback used whenever no provider is
// configured or the provider call fails.
package embedding

import (
	"context"
	"crypto/md5"
	"math"
	"strings"
)

// Dimension is the fixed vector width used throughout the pipeline,
// regardless of which tier produced the vector.
const Dimension = 384

// Provider generates an embedding for text using an external model.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder produces an embedding for text, preferring a configured Provider
// and falling back to the deterministic hash-n-gram tier whenever the
// provider is nil or its call fails.
type Embedder struct {
	provider Provider
}

// New builds an Embedder. provider may be nil, in which case every call
// uses the fallback tier.
func New(provider Provider) *Embedder {
	return &Embedder{provider: provider}
}

// Embed returns a unit-length vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	if e.provider != nil {
		if v, err := e.provider.Embed(ctx, text); err == nil && len(v) > 0 {
			return v
		}
	}
	return HashNGram(text)
}

// HashNGram is the deterministic fallback tier: character 3-grams of the
// first ~100 words are hashed via MD5 into Dimension buckets, then the
// resulting vector is L2-normalized. Weaker than a trained embedding but
// non-random and adequate for title-level similarity (spec §4.7).
func HashNGram(text string) []float32 {
	words := strings.Fields(text)
	if len(words) > 100 {
		words = words[:100]
	}
	sample := strings.ToLower(strings.Join(words, " "))

	vec := make([]float32, Dimension)
	runes := []rune(sample)
	const n = 3
	for i := 0; i+n <= len(runes); i++ {
		gram := string(runes[i : i+n])
		sum := md5.Sum([]byte(gram))
		bucket := int(sum[0])<<8|int(sum[1])
		bucket %= Dimension
		sign := float32(1)
		if sum[2]%2 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}
	return l2Normalize(vec)
}

func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

// Cosine computes cosine similarity between two equal-length vectors,
// returning 0 if either is the zero vector or lengths mismatch.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
