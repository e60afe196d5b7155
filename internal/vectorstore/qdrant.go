package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QdrantStore talks to the Qdrant REST API.
type QdrantStore struct {
	baseURL    string
	httpClient *http.Client
	dimension  int
}

// NewQdrantStore creates a client for a Qdrant instance. dimension is the
// embedding width used when collections are created.
func NewQdrantStore(baseURL string, dimension int) *QdrantStore {
	return &QdrantStore{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dimension: dimension,
	}
}

// HealthCheck verifies Qdrant connectivity
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant health check: status %d", resp.StatusCode)
	}
	return nil
}

// EnsureCollection creates a collection if it doesn't exist
func (s *QdrantStore) EnsureCollection(name string) error {
	resp, err := s.httpClient.Get(s.baseURL + "/collections/" + name)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil // Already exists
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	return s.put(context.Background(), "/collections/"+name, body)
}

// Upsert inserts or updates points in a collection
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if len(p.Vector) == 0 {
			return fmt.Errorf("point %s: %w", p.ID, ErrEmptyVector)
		}
	}

	qpoints := make([]map[string]any, len(points))
	for i, p := range points {
		qpoints[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	return s.put(ctx, "/collections/"+collection+"/points", map[string]any{
		"points": qpoints,
	})
}

// Query finds the nearest points in a collection
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, topK int, minScore float64) ([]ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}

	body := map[string]any{
		"vector":          vector,
		"limit":           topK,
		"with_payload":    true,
		"score_threshold": minScore,
	}

	respBody, err := s.post(ctx, "/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]ScoredPoint, len(resp.Result))
	for i, r := range resp.Result {
		results[i] = ScoredPoint{
			ID:      r.ID,
			Score:   r.Score,
			Payload: r.Payload,
		}
	}
	return results, nil
}

// Delete removes points by their IDs from a collection
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.post(ctx, "/collections/"+collection+"/points/delete", map[string]any{
		"points": ids,
	})
	return err
}

// Close is a no-op; the underlying HTTP client needs no teardown
func (s *QdrantStore) Close() error {
	return nil
}

func (s *QdrantStore) put(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant PUT %s: %w", path, ErrUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant PUT %s: status %d: %s", path, resp.StatusCode, msg)
	}
	return nil
}

func (s *QdrantStore) post(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant POST %s: %w", path, ErrUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("qdrant POST %s: status %d: %s", path, resp.StatusCode, respBody)
	}
	return respBody, nil
}
