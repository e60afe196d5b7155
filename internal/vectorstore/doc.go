// Package vectorstore provides the embedding store contract and its
// implementations.
//
// The Store interface covers the three operations the engine needs: Upsert,
// Query (top-K similarity with a minimum score threshold), and Delete.
// Collections are partitioned per workspace context and per memory kind, so
// cross-context reads are impossible by construction.
//
// Two implementations are provided:
//
//   - QdrantStore: a client for the Qdrant REST API, used in deployments
//     with a running Qdrant instance.
//   - MemStore: an in-process brute-force cosine store used by tests and
//     small single-node setups.
//
// CollectionManager lazily creates collections on first use and caches the
// result, so hot-path upserts pay no existence check.
package vectorstore
