// Package mcp exposes the indexing, scheduling, tracking, and search
// components as Model Context Protocol tools over stdio.
//
// Every tool takes a context parameter naming the workspace whose data it
// touches and returns a JSON document with a success flag and an errors
// list. Handler code stays thin: parameter extraction and response shaping
// only, with all semantics in the internal packages.
package mcp
