package embedding

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/time/rate"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

type dimensionCheck struct {
	next       embeddings.Embedder
	dimensions int
}

// WithDimensionCheck fails any call that returns a vector whose length is not dimensions.
func WithDimensionCheck(next embeddings.Embedder, dimensions int) embeddings.Embedder {
	if dimensions <= 0 {
		return next
	}
	return &dimensionCheck{next: next, dimensions: dimensions}
}

func (d *dimensionCheck) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := d.next.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if err := d.check(v); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}
	return vectors, nil
}

func (d *dimensionCheck) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := d.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := d.check(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (d *dimensionCheck) check(v []float32) error {
	if len(v) != d.dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), d.dimensions)
	}
	return nil
}

type cached struct {
	next  embeddings.Embedder
	model string
	lru   *expirable.LRU[string, []float32]
}

// WithCache memoizes vectors by model and text. A size <= 0 disables it.
func WithCache(next embeddings.Embedder, model string, size int, ttl time.Duration) (embeddings.Embedder, error) {
	if size <= 0 {
		return next, nil
	}
	if ttl < 0 {
		return nil, fmt.Errorf("cache ttl must not be negative, got %s", ttl)
	}
	return &cached{
		next:  next,
		model: model,
		lru:   expirable.NewLRU[string, []float32](size, nil, ttl),
	}, nil
}

func (c *cached) key(text string) string {
	sum := md5.Sum([]byte(text))
	return c.model + ":" + hex.EncodeToString(sum[:])
}

func (c *cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	k := c.key(text)
	if v, ok := c.lru.Get(k); ok {
		return v, nil
	}
	v, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.lru.Add(k, v)
	return v, nil
}

func (c *cached) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if v, ok := c.lru.Get(c.key(text)); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.next.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(vectors))
	}
	for j, v := range vectors {
		out[slots[j]] = v
		c.lru.Add(c.key(missing[j]), v)
	}
	return out, nil
}

type rateLimited struct {
	next    embeddings.Embedder
	limiter *rate.Limiter
}

// WithRateLimit allows at most rps calls per second. rps <= 0 disables it.
func WithRateLimit(next embeddings.Embedder, rps float64) embeddings.Embedder {
	if rps <= 0 {
		return next
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.EmbedDocuments(ctx, texts)
}

func (r *rateLimited) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.EmbedQuery(ctx, text)
}
