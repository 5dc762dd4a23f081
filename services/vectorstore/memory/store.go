package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/docuchat/backend/services"
	"github.com/docuchat/backend/services/vectorstore"
)

// Store is an in-memory vector store with exact cosine-distance
// search. Used when no external vector database is configured and in
// tests.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]vectorstore.Document
	logger      *zap.Logger
}

// NewStore creates an empty in-memory store
func NewStore(logger *zap.Logger) *Store {
	logger.Info("in-memory vector store initialized")

	return &Store{
		collections: make(map[string][]vectorstore.Document),
		logger:      logger,
	}
}

// EnsureCollection creates the collection if it does not exist
func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[collection]; !exists {
		s.collections[collection] = nil
		s.logger.Debug("collection created", zap.String("collection", collection))
	}
	return nil
}

// Add indexes documents into the collection
func (s *Store) Add(ctx context.Context, collection string, docs []vectorstore.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections[collection] = append(s.collections[collection], docs...)

	s.logger.Debug("documents added",
		zap.String("collection", collection),
		zap.Int("count", len(docs)))
	return nil
}

// Query returns the topK nearest documents by cosine distance
func (s *Store) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) (*vectorstore.QueryResult, error) {
	if len(vector) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "query vector cannot be empty", nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		doc      vectorstore.Document
		distance float64
	}

	var candidates []scored
	for _, doc := range s.collections[collection] {
		if !matchesFilter(doc.Metadata, filter) {
			continue
		}
		candidates = append(candidates, scored{
			doc:      doc,
			distance: cosineDistance(vector, doc.Vector),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	result := &vectorstore.QueryResult{}
	for _, c := range candidates {
		result.IDs = append(result.IDs, c.doc.ID)
		result.Contents = append(result.Contents, c.doc.Content)
		result.Metadatas = append(result.Metadatas, c.doc.Metadata)
		result.Distances = append(result.Distances, c.distance)
	}

	return result, nil
}

// DeleteByDocument removes all entries belonging to a source document
func (s *Store) DeleteByDocument(ctx context.Context, collection string, documentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	kept := docs[:0]
	for _, doc := range docs {
		if metadataDocumentID(doc.Metadata) != documentID {
			kept = append(kept, doc)
		}
	}
	s.collections[collection] = kept

	s.logger.Debug("document entries deleted",
		zap.String("collection", collection),
		zap.Int64("document_id", documentID),
		zap.Int("removed", len(docs)-len(kept)))
	return nil
}

// DropCollection removes the collection and all its entries
func (s *Store) DropCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	s.logger.Debug("collection dropped", zap.String("collection", collection))
	return nil
}

// Count returns the number of entries in the collection
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.collections[collection])), nil
}

// cosineDistance computes 1 - cosine similarity, in [0, 2]
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// matchesFilter checks metadata equality against the filter
func matchesFilter(metadata, filter map[string]interface{}) bool {
	for key, want := range filter {
		if metadata == nil || metadata[key] != want {
			return false
		}
	}
	return true
}

// metadataDocumentID extracts the source document ID from metadata
func metadataDocumentID(metadata map[string]interface{}) int64 {
	switch v := metadata["document_id"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
