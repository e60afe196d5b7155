package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_Deterministic(t *testing.T) {
	emb := NewLocalProvider(nil)
	ctx := context.Background()

	a, err := emb.Embed(ctx, "func Login() {}")
	require.NoError(t, err)
	b, err := emb.Embed(ctx, "func Login() {}")
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Len(t, a.Vector, LocalDimension)
	assert.Equal(t, ProviderLocal, a.Provider)

	c, err := emb.Embed(ctx, "func Logout() {}")
	require.NoError(t, err)
	assert.NotEqual(t, a.Vector, c.Vector)
}

func TestLocalProvider_EmptyTextRejected(t *testing.T) {
	emb := NewLocalProvider(nil)

	_, err := emb.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = emb.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = emb.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCache_ReturnsCopies(t *testing.T) {
	cache := NewCache(10)
	cache.Set("h", &Embedding{Vector: []float32{1, 2, 3}, Hash: "h"})

	got, ok := cache.Get("h")
	require.True(t, ok)
	got.Vector[0] = 99

	again, ok := cache.Get("h")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestLocalProvider_UsesCache(t *testing.T) {
	cache := NewCache(10)
	emb := NewLocalProvider(cache)

	_, err := emb.Embed(context.Background(), "cached text")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())
}

func TestHTTPProvider_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{
				"embedding": []float32{float32(i), 1},
				"index":     i,
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":  data,
			"model": req.Model,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(server.URL, "test-model", nil)
	require.NoError(t, err)

	embeddings, err := provider.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0, 1}, embeddings[0].Vector)
	assert.Equal(t, "test-model", embeddings[0].Model)
}

func TestHTTPProvider_RetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(server.URL, "", nil)
	require.NoError(t, err)

	_, err = provider.EmbedBatch(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(MaxRetries), calls.Load())
}

func TestHTTPProvider_BatchLimit(t *testing.T) {
	provider, err := NewOllamaProvider("http://unused", "", nil)
	require.NoError(t, err)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err = provider.EmbedBatch(context.Background(), texts)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestNew_ProviderSelection(t *testing.T) {
	emb, err := New(Config{Provider: "local"})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	emb, err = New(Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, emb.Provider())

	_, err = New(Config{Provider: "openai"})
	assert.Error(t, err) // No API key

	emb, err = New(Config{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Provider())

	_, err = New(Config{Provider: "quantum"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
