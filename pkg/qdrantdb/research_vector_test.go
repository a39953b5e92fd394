package qdrantdb

import (
	"context"
	"errors"
	"testing"

	"deskresearch/repository"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQdrant struct {
	collections map[string]*qdrant.CreateCollection
	upserts     []*qdrant.UpsertPoints
	queries     []*qdrant.QueryPoints
	hits        []*qdrant.ScoredPoint
	err         error
	closed      bool
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: map[string]*qdrant.CreateCollection{}}
}

func (f *fakeQdrant) ListCollections(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	return names, f.err
}

func (f *fakeQdrant) CollectionExists(_ context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.collections[req.CollectionName]; ok {
		return errors.New("collection already exists")
	}
	f.collections[req.CollectionName] = req
	return nil
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upserts = append(f.upserts, req)
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, req)
	return f.hits, nil
}

func (f *fakeQdrant) Close() error {
	f.closed = true
	return nil
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	fake := newFakeQdrant()
	client := &ResearchClient{Client: fake}
	ctx := context.Background()

	require.NoError(t, client.EnsureCollection(ctx, "research_docs", 384, repository.MetricCosine))
	require.NoError(t, client.EnsureCollection(ctx, "research_docs", 384, repository.MetricCosine))

	require.Len(t, fake.collections, 1)
	params := fake.collections["research_docs"].GetVectorsConfig().GetParams()
	assert.Equal(t, uint64(384), params.GetSize())
	assert.Equal(t, qdrant.Distance_Cosine, params.GetDistance())
}

func TestEnsureCollection_Errors(t *testing.T) {
	client := &ResearchClient{Client: newFakeQdrant()}
	err := client.EnsureCollection(context.Background(), "c", 4, repository.Metric("hamming"))
	assert.Error(t, err)

	fake := newFakeQdrant()
	fake.err = errors.New("unavailable")
	client = &ResearchClient{Client: fake}
	err = client.EnsureCollection(context.Background(), "c", 4, repository.MetricDot)
	assert.ErrorIs(t, err, repository.ErrIndex)
}

func TestUpsert_EmptyBatchMakesNoCall(t *testing.T) {
	fake := newFakeQdrant()
	fake.err = errors.New("must not be called")
	client := &ResearchClient{Client: fake}

	require.NoError(t, client.Upsert(context.Background(), "c", nil))
	require.NoError(t, client.Upsert(context.Background(), "c", []repository.IndexedPoint{}))
	assert.Empty(t, fake.upserts)
}

func TestUpsert_WritesPointsWithPayload(t *testing.T) {
	fake := newFakeQdrant()
	client := &ResearchClient{Client: fake}
	doc := repository.Document{Title: "t", Content: "c", URL: "u", Source: "arXiv", PublishedDate: "2024-01-01"}
	point := repository.NewIndexedPoint(doc, []float32{0.1, 0.2})

	require.NoError(t, client.Upsert(context.Background(), "c", []repository.IndexedPoint{point}))

	require.Len(t, fake.upserts, 1)
	req := fake.upserts[0]
	assert.Equal(t, "c", req.CollectionName)
	assert.True(t, req.GetWait())
	require.Len(t, req.Points, 1)
	assert.Equal(t, point.ID, req.Points[0].GetId().GetUuid())
	assert.Equal(t, "2024-01-01", req.Points[0].GetPayload()["published_date"].GetStringValue())
}

func TestUpsert_ErrorWrapsIndexFailure(t *testing.T) {
	fake := newFakeQdrant()
	fake.err = errors.New("deadline exceeded")
	client := &ResearchClient{Client: fake}

	err := client.Upsert(context.Background(), "c", []repository.IndexedPoint{{ID: repository.PointID(repository.Document{URL: "u"})}})
	assert.ErrorIs(t, err, repository.ErrIndex)
}

func TestSearch_MapsHits(t *testing.T) {
	fake := newFakeQdrant()
	fake.hits = []*qdrant.ScoredPoint{
		{
			Score: 0.91,
			Payload: qdrant.NewValueMap(map[string]any{
				"title": "A", "content": "a", "url": "ua", "source": "arXiv", "published_date": "2024-03-01",
			}),
		},
		{
			Score:   0.42,
			Payload: qdrant.NewValueMap(map[string]any{"title": "B", "content": "b", "url": "ub"}),
		},
	}
	client := &ResearchClient{Client: fake}

	docs, err := client.Search(context.Background(), "c", []float32{1, 0}, 6)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "A", docs[0].Title)
	assert.InDelta(t, 0.91, docs[0].RelevanceScore, 1e-6)
	assert.Equal(t, "2024-03-01", docs[0].PublishedDate)
	assert.Equal(t, repository.UnknownDate, docs[1].PublishedDate)
	assert.Equal(t, "unknown", docs[1].Source)

	require.Len(t, fake.queries, 1)
	assert.Equal(t, uint64(6), fake.queries[0].GetLimit())
}

func TestSearch_Errors(t *testing.T) {
	fake := newFakeQdrant()
	fake.err = errors.New("connection reset")
	client := &ResearchClient{Client: fake}

	docs, err := client.Search(context.Background(), "c", []float32{1}, 3)
	assert.Nil(t, docs)
	assert.ErrorIs(t, err, repository.ErrIndex)
}

func TestClose(t *testing.T) {
	fake := newFakeQdrant()
	require.NoError(t, (&ResearchClient{Client: fake}).Close())
	assert.True(t, fake.closed)
}
