package core

import "context"

// ContextChunk is a retrieved piece of repository context with a relevance
// score and arbitrary metadata.
type ContextChunk struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]string
}

// ContextRetriever returns repository context relevant to a diff.
type ContextRetriever interface {
	Query(ctx context.Context, text string, limit int) ([]ContextChunk, error)
}
