// Package extractor turns source files into code memories and relationship
// edges. Each language gets its own Extractor implementation; the pipeline
// routes files by Supports.
package extractor
