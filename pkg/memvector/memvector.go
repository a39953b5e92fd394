// Package memvector is an in-process vector index with brute-force cosine
// search. It backs one-off CLI runs and tests where no Qdrant is available.
package memvector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"deskresearch/pkg/embedding"
	"deskresearch/repository"
)

type collection struct {
	dim    int
	order  []string
	points map[string]repository.IndexedPoint
}

type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
	upserts     int
}

var _ repository.VectorIndex = (*Index)(nil)

func New() *Index {
	return &Index{collections: map[string]*collection{}}
}

func (ix *Index) EnsureCollection(_ context.Context, name string, dim int, metric repository.Metric) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	if metric != repository.MetricCosine && metric != "" {
		return fmt.Errorf("memvector only supports cosine distance, got %q", metric)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.collections[name]; ok {
		return nil
	}
	ix.collections[name] = &collection{dim: dim, points: map[string]repository.IndexedPoint{}}
	return nil
}

func (ix *Index) Upsert(_ context.Context, name string, points []repository.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.upserts++
	c, ok := ix.collections[name]
	if !ok {
		return fmt.Errorf("%w: collection %s does not exist", repository.ErrIndex, name)
	}
	for _, p := range points {
		if len(p.Vector) != c.dim {
			return fmt.Errorf("%w: vector dimension %d, collection expects %d", repository.ErrIndex, len(p.Vector), c.dim)
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = p
	}
	return nil
}

func (ix *Index) Search(_ context.Context, name string, vector []float32, limit int) ([]repository.ScoredDocument, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	c, ok := ix.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s does not exist", repository.ErrIndex, name)
	}

	hits := make([]repository.ScoredDocument, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		hits = append(hits, repository.ScoredDocument{
			Document:       p.Document,
			RelevanceScore: embedding.CosineSimilarity(p.Vector, vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].RelevanceScore > hits[j].RelevanceScore
	})

	if limit < 0 {
		limit = 0
	}
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len reports the number of points stored in a collection.
func (ix *Index) Len(name string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if c, ok := ix.collections[name]; ok {
		return len(c.points)
	}
	return 0
}

// UpsertCalls counts non-empty upsert batches that reached the index.
func (ix *Index) UpsertCalls() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.upserts
}

func (ix *Index) Close() error {
	return nil
}
