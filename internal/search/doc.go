// Package search implements the query orchestrator: strategy selection,
// concurrent fan-out to the vector and graph stores, score fusion keyed by
// element identity, importance reranking, and depth-bounded relationship
// expansion. If one store is down, results degrade to the other source and
// the response is flagged partial.
package search
