// Package embedder generates embedding vectors for code memory text.
//
// The Embedder interface abstracts the embedding model behind Embed and
// EmbedBatch. Three providers are available:
//
//   - openai: the OpenAI embeddings API
//   - ollama: a local Ollama instance speaking the same request shape
//   - local: deterministic hash-derived vectors, no network; used by tests
//     and offline runs
//
// HTTP providers retry with exponential backoff and share an LRU cache
// keyed by content hash, so unchanged memories never hit the API twice.
package embedder
