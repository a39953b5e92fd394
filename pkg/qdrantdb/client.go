package qdrantdb

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

type Config struct {
	Host           string
	Port           int // gRPC port
	APIKey         string
	UseTLS         bool
	ConnectTimeout time.Duration
}

// pointsAPI is the subset of *qdrant.Client the index relies on.
type pointsAPI interface {
	ListCollections(ctx context.Context) ([]string, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

type ResearchClient struct {
	Client pointsAPI
}

// NewClient connects to Qdrant and verifies the connection by listing
// collections. Any failure here is meant to stop the process.
func NewClient(cfg Config) (*ResearchClient, error) {
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 60 * time.Second
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("err create qdrant client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if _, err := client.ListCollections(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("err connect qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &ResearchClient{Client: client}, nil
}

func (c *ResearchClient) Close() error {
	return c.Client.Close()
}
