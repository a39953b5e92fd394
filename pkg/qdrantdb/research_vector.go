package qdrantdb

import (
	"context"
	"fmt"

	"deskresearch/repository"

	"github.com/qdrant/go-client/qdrant"
)

var _ repository.VectorIndex = (*ResearchClient)(nil)

func (c *ResearchClient) EnsureCollection(ctx context.Context, name string, dim int, metric repository.Metric) error {
	distance, err := toDistance(metric)
	if err != nil {
		return err
	}

	exists, err := c.Client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %w", repository.ErrIndex, name, err)
	}
	if exists {
		return nil
	}

	err = c.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %w", repository.ErrIndex, name, err)
	}
	return nil
}

func (c *ResearchClient) Upsert(ctx context.Context, collection string, points []repository.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}

	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectorsDense(p.Vector),
			Payload: qdrant.NewValueMap(p.Payload()),
		})
	}

	_, err := c.Client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points into %s: %w", repository.ErrIndex, len(points), collection, err)
	}
	return nil
}

func (c *ResearchClient) Search(ctx context.Context, collection string, vector []float32, limit int) ([]repository.ScoredDocument, error) {
	if limit <= 0 {
		return []repository.ScoredDocument{}, nil
	}

	hits, err := c.Client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", repository.ErrIndex, collection, err)
	}

	docs := make([]repository.ScoredDocument, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, repository.ScoredDocument{
			Document:       documentFromPayload(hit.GetPayload()),
			RelevanceScore: hit.GetScore(),
		})
	}
	return docs, nil
}

func documentFromPayload(payload map[string]*qdrant.Value) repository.Document {
	doc := repository.Document{
		Title:         payload["title"].GetStringValue(),
		Content:       payload["content"].GetStringValue(),
		URL:           payload["url"].GetStringValue(),
		Source:        payload["source"].GetStringValue(),
		PublishedDate: payload["published_date"].GetStringValue(),
	}
	if doc.Source == "" {
		doc.Source = "unknown"
	}
	// points written before dates were stored carry no published_date
	if doc.PublishedDate == "" {
		doc.PublishedDate = repository.UnknownDate
	}
	return doc
}

func toDistance(metric repository.Metric) (qdrant.Distance, error) {
	switch metric {
	case repository.MetricCosine, "":
		return qdrant.Distance_Cosine, nil
	case repository.MetricDot:
		return qdrant.Distance_Dot, nil
	case repository.MetricEuclid:
		return qdrant.Distance_Euclid, nil
	case repository.MetricManhattan:
		return qdrant.Distance_Manhattan, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("unsupported distance metric %q", metric)
	}
}
