package relevance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"deskresearch/pkg/memvector"
	"deskresearch/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const collection = "research_docs"

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

type failingIndex struct {
	repository.VectorIndex
	limit int
}

func (f *failingIndex) Search(_ context.Context, _ string, _ []float32, limit int) ([]repository.ScoredDocument, error) {
	f.limit = limit
	return nil, fmt.Errorf("%w: unavailable", repository.ErrIndex)
}

// withScore returns a unit vector whose cosine with (1, 0) equals score.
func withScore(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

func seed(t *testing.T, docs map[string]struct {
	date  string
	score float64
}) *memvector.Index {
	t.Helper()
	ix := memvector.New()
	ctx := context.Background()
	require.NoError(t, ix.EnsureCollection(ctx, collection, 2, repository.MetricCosine))

	var points []repository.IndexedPoint
	for title, d := range docs {
		doc := repository.Document{Title: title, Content: "abstract", URL: "http://arxiv.org/abs/" + title, Source: "arXiv", PublishedDate: d.date}
		points = append(points, repository.NewIndexedPoint(doc, withScore(d.score)))
	}
	require.NoError(t, ix.Upsert(ctx, collection, points))
	return ix
}

func newRanker(ix repository.VectorIndex, embed *fakeEmbedder) *Ranker {
	return NewRanker(embed, ix, Config{Threshold: DefaultThreshold, OverFetch: DefaultOverFetch}, zap.NewNop())
}

func TestRank_MostRecentAboveGate(t *testing.T) {
	ix := seed(t, map[string]struct {
		date  string
		score float64
	}{
		"jan": {"2024-01-01", 0.95},
		"feb": {"2024-02-01", 0.90},
		"mar": {"2024-03-01", 0.85},
		"apr": {"2024-04-01", 0.80},
		"may": {"2024-05-01", 0.75},
	})

	// over-fetch of 2 x 3 = 6 covers all five documents
	got, err := newRanker(ix, &fakeEmbedder{vector: []float32{1, 0}}).Rank(context.Background(), collection, "q", 3)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "2024-05-01", got[0].PublishedDate)
	assert.Equal(t, "2024-04-01", got[1].PublishedDate)
	assert.Equal(t, "2024-03-01", got[2].PublishedDate)
}

func TestRank_FewSurvivorsNotPadded(t *testing.T) {
	ix := seed(t, map[string]struct {
		date  string
		score float64
	}{
		"a": {"2024-01-01", 0.80},
		"b": {"2024-02-01", 0.20},
		"c": {"2024-03-01", 0.10},
		"d": {"2024-04-01", 0.55},
		"e": {"2024-05-01", 0.25},
	})

	got, err := newRanker(ix, &fakeEmbedder{vector: []float32{1, 0}}).Rank(context.Background(), collection, "q", 10)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].Title)
	assert.Equal(t, "a", got[1].Title)
	for _, d := range got {
		assert.Greater(t, d.RelevanceScore, float32(DefaultThreshold))
	}
}

func TestRank_OverFetchLimit(t *testing.T) {
	idx := &failingIndex{}
	_, err := NewRanker(&fakeEmbedder{vector: []float32{1, 0}}, idx, Config{OverFetch: 3}, zap.NewNop()).
		Rank(context.Background(), collection, "q", 4)

	assert.ErrorIs(t, err, repository.ErrIndex)
	assert.Equal(t, 12, idx.limit)
}

func TestRank_EncoderFailure(t *testing.T) {
	embed := &fakeEmbedder{err: errors.New("tei down")}
	_, err := newRanker(memvector.New(), embed).Rank(context.Background(), collection, "q", 3)

	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrIndex)
}

func TestRank_NonPositiveTopK(t *testing.T) {
	embed := &fakeEmbedder{vector: []float32{1, 0}}
	got, err := newRanker(memvector.New(), embed).Rank(context.Background(), collection, "q", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, embed.calls)
}

func TestSelect_Properties(t *testing.T) {
	hits := []repository.ScoredDocument{
		{Document: repository.Document{Title: "gate-edge", PublishedDate: "2024-09-01"}, RelevanceScore: 0.3},
		{Document: repository.Document{Title: "old", PublishedDate: "2019-01-01"}, RelevanceScore: 0.99},
		{Document: repository.Document{Title: "undated", PublishedDate: repository.UnknownDate}, RelevanceScore: 0.9},
		{Document: repository.Document{Title: "new", PublishedDate: "2024-08-01"}, RelevanceScore: 0.31},
		{Document: repository.Document{Title: "mid-a", PublishedDate: "2022-01-01"}, RelevanceScore: 0.7},
		{Document: repository.Document{Title: "mid-b", PublishedDate: "2022-01-01"}, RelevanceScore: 0.6},
	}

	for topK := 0; topK <= len(hits)+1; topK++ {
		got := Select(hits, 0.3, topK)
		assert.LessOrEqual(t, len(got), topK)
		for i, d := range got {
			assert.Greater(t, d.RelevanceScore, float32(0.3))
			if i > 0 && got[i-1].HasDate() && d.HasDate() {
				assert.GreaterOrEqual(t, got[i-1].PublishedDate, d.PublishedDate)
			}
		}
	}

	got := Select(hits, 0.3, 10)
	titles := make([]string, len(got))
	for i, d := range got {
		titles[i] = d.Title
	}
	assert.Equal(t, []string{"new", "mid-a", "mid-b", "old", "undated"}, titles)
}
