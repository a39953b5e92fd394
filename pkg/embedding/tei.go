package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const AllMinilmL6V2Dimension = 384

// TEIClient talks to a HuggingFace text-embeddings-inference server.
type TEIClient struct {
	BaseURL    string
	HTTPClient *http.Client
	dimension  int
}

func NewTEIClient(baseURL string, dimension int, timeout time.Duration) *TEIClient {
	if dimension <= 0 {
		dimension = AllMinilmL6V2Dimension
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TEIClient{
		BaseURL:   baseURL,
		dimension: dimension,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *TEIClient) Dimension() int {
	return c.dimension
}

func (c *TEIClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody := EmbeddingRequest{
		Inputs:    texts,
		Normalize: true,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TEI service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embeddings EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	for i, v := range embeddings {
		if len(v) != c.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), c.dimension)
		}
	}

	return embeddings, nil
}
