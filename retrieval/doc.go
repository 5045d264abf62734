// Package retrieval provides core.ContextRetriever implementations used to
// attach repository context to a review.
//
// KeywordIndex ranks stored chunks by shared lowercase tokens and needs no
// external services. EmbeddingIndex ranks by cosine similarity of vectors
// produced by an Embedder such as OllamaEmbedder.
package retrieval
