// Package pipeline implements the indexing pipeline: parse -> embed -> store.
//
// Files are processed in enumeration order, one at a time; embedding calls
// for a single file fan out over a bounded worker pool. Record IDs are
// derived from content identity, so re-indexing an unchanged file is a
// store-level no-op beyond timestamp updates.
package pipeline
