package repository

import (
	"context"
	"errors"
)

const UnknownDate = "unknown"

var ErrIndex = errors.New("vector index failure")

type Document struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	URL           string `json:"url"`
	Source        string `json:"source"`
	PublishedDate string `json:"published_date"`
}

type IndexedPoint struct {
	ID     string
	Vector []float32
	Document
}

type ScoredDocument struct {
	Document
	RelevanceScore float32 `json:"relevance_score"`
}

// Metric is the distance function a collection is created with.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclid    Metric = "euclid"
	MetricManhattan Metric = "manhattan"
)

type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string, dim int, metric Metric) error
	// Upsert writes or overwrites points by id. An empty batch is a no-op.
	Upsert(ctx context.Context, collection string, points []IndexedPoint) error
	// Search returns up to limit hits ordered by score descending.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredDocument, error)
	Close() error
}

// HasDate reports whether the document carries a normalised publication date.
func (d Document) HasDate() bool {
	return d.PublishedDate != "" && d.PublishedDate != UnknownDate
}

// Payload is the flat representation stored next to a vector.
func (d Document) Payload() map[string]any {
	return map[string]any{
		"title":          d.Title,
		"content":        d.Content,
		"url":            d.URL,
		"source":         d.Source,
		"published_date": d.PublishedDate,
	}
}
