package vectorstore

import (
	"context"
	"fmt"
)

// Document is one embedded passage to be indexed
type Document struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Vector   []float32              `json:"-"`
}

// QueryResult holds the ranked matches of a similarity query, ordered
// by ascending distance. Distances are cosine distances in [0, 2];
// lower means more similar.
type QueryResult struct {
	IDs       []string                 `json:"ids"`
	Contents  []string                 `json:"contents"`
	Metadatas []map[string]interface{} `json:"metadatas"`
	Distances []float64                `json:"distances"`
}

// Len returns the number of matches
func (r *QueryResult) Len() int {
	return len(r.IDs)
}

// Store is a per-collection vector similarity index
type Store interface {
	// EnsureCollection creates the collection if it does not exist and
	// makes it ready for queries
	EnsureCollection(ctx context.Context, collection string) error

	// Add indexes documents into the collection
	Add(ctx context.Context, collection string, docs []Document) error

	// Query returns the topK nearest documents to the vector, optionally
	// restricted by a metadata equality filter. An empty or missing
	// collection yields an empty result, not an error.
	Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) (*QueryResult, error)

	// DeleteByDocument removes all entries belonging to a source document
	DeleteByDocument(ctx context.Context, collection string, documentID int64) error

	// DropCollection removes the collection and all its entries
	DropCollection(ctx context.Context, collection string) error

	// Count returns the number of entries in the collection
	Count(ctx context.Context, collection string) (int64, error)
}

// CollectionName returns the per-project collection name
func CollectionName(projectID int64) string {
	return fmt.Sprintf("project_%d", projectID)
}
