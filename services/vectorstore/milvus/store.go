package milvus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"

	"github.com/docuchat/backend/services"
	"github.com/docuchat/backend/services/vectorstore"
)

// Field names for document collections
const (
	FieldID       = "id"
	FieldContent  = "content"
	FieldMetadata = "metadata"
	FieldVector   = "vector"
)

const (
	maxIDLength      = 255
	maxContentLength = 65535
)

// Store persists document chunks in Milvus, one collection per
// project. Search uses COSINE metric, so result scores are cosine
// similarities and distances are derived as 1 - score.
type Store struct {
	client *milvusclient.Client
	dim    int
	logger *zap.Logger
}

// NewStore connects to Milvus at the given address
func NewStore(ctx context.Context, address string, dim int, logger *zap.Logger) (*Store, error) {
	client, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address: address,
	})
	if err != nil {
		return nil, services.WrapExternal(fmt.Sprintf("failed to connect to milvus at %s", address), err)
	}

	logger.Info("connected to milvus",
		zap.String("address", address),
		zap.Int("dimension", dim))

	return &Store{
		client: client,
		dim:    dim,
		logger: logger,
	}, nil
}

// Close terminates the Milvus connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// EnsureCollection creates and loads the collection if it does not exist
func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return services.WrapExternal(fmt.Sprintf("failed to check collection %s", collection), err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: collection,
			Description:    "Document chunks with embeddings",
			Fields: []*entity.Field{
				{
					Name:       FieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					TypeParams: map[string]string{
						"max_length": fmt.Sprintf("%d", maxIDLength),
					},
				},
				{
					Name:     FieldContent,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": fmt.Sprintf("%d", maxContentLength),
					},
				},
				{
					Name:     FieldMetadata,
					DataType: entity.FieldTypeJSON,
				},
				{
					Name:     FieldVector,
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", s.dim),
					},
				},
			},
		}

		createOpt := milvusclient.NewCreateCollectionOption(collection, schema).WithShardNum(2)
		if err := s.client.CreateCollection(ctx, createOpt); err != nil {
			return services.WrapExternal(fmt.Sprintf("failed to create collection %s", collection), err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		indexOpt := milvusclient.NewCreateIndexOption(collection, FieldVector, idx)
		if _, err := s.client.CreateIndex(ctx, indexOpt); err != nil {
			return services.WrapExternal(fmt.Sprintf("failed to create index on %s", collection), err)
		}

		s.logger.Info("collection created", zap.String("collection", collection))
	}

	loadOpt := milvusclient.NewLoadCollectionOption(collection)
	if _, err := s.client.LoadCollection(ctx, loadOpt); err != nil {
		return services.WrapExternal(fmt.Sprintf("failed to load collection %s", collection), err)
	}

	return nil
}

// Add indexes documents into the collection
func (s *Store) Add(ctx context.Context, collection string, docs []vectorstore.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(docs))
	contents := make([]string, 0, len(docs))
	metadatas := make([][]byte, 0, len(docs))
	vectors := make([][]float32, 0, len(docs))

	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return services.WrapInternal(fmt.Sprintf("failed to marshal metadata for %s", doc.ID), err)
		}
		ids = append(ids, doc.ID)
		contents = append(contents, doc.Content)
		metadatas = append(metadatas, metadata)
		vectors = append(vectors, doc.Vector)
	}

	insertOpt := milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnVarChar(FieldContent, contents),
		column.NewColumnJSONBytes(FieldMetadata, metadatas),
		column.NewColumnFloatVector(FieldVector, s.dim, vectors),
	)
	if _, err := s.client.Insert(ctx, insertOpt); err != nil {
		return services.WrapExternal(fmt.Sprintf("failed to insert into %s", collection), err)
	}

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

	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return nil, services.WrapExternal(fmt.Sprintf("failed to check collection %s", collection), err)
	}
	if !exists {
		return &vectorstore.QueryResult{}, nil
	}

	searchOpt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldVector).
		WithOutputFields(FieldContent, FieldMetadata)
	if expr := buildFilterExpr(filter); expr != "" {
		searchOpt = searchOpt.WithFilter(expr)
	}

	resultSets, err := s.client.Search(ctx, searchOpt)
	if err != nil {
		return nil, services.WrapExternal(fmt.Sprintf("failed to search %s", collection), err)
	}

	result := &vectorstore.QueryResult{}
	for _, rs := range resultSets {
		contentCol := rs.GetColumn(FieldContent)
		metadataCol := rs.GetColumn(FieldMetadata)

		for i := 0; i < rs.ResultCount; i++ {
			id, err := rs.IDs.GetAsString(i)
			if err != nil {
				return nil, services.WrapExternal("failed to read result id", err)
			}

			content := ""
			if contentCol != nil {
				if content, err = contentCol.GetAsString(i); err != nil {
					return nil, services.WrapExternal("failed to read result content", err)
				}
			}

			var metadata map[string]interface{}
			if metadataCol != nil {
				raw, err := metadataCol.GetAsString(i)
				if err != nil {
					return nil, services.WrapExternal("failed to read result metadata", err)
				}
				if raw != "" {
					if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
						s.logger.Warn("malformed metadata in search result",
							zap.String("id", id),
							zap.Error(err))
					}
				}
			}

			// COSINE scores are similarities
			distance := 1 - float64(rs.Scores[i])

			result.IDs = append(result.IDs, id)
			result.Contents = append(result.Contents, content)
			result.Metadatas = append(result.Metadatas, metadata)
			result.Distances = append(result.Distances, distance)
		}
	}

	return result, nil
}

// DeleteByDocument removes all entries belonging to a source document
func (s *Store) DeleteByDocument(ctx context.Context, collection string, documentID int64) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return services.WrapExternal(fmt.Sprintf("failed to check collection %s", collection), err)
	}
	if !exists {
		return nil
	}

	expr := fmt.Sprintf(`%s["document_id"] == %d`, FieldMetadata, documentID)
	deleteOpt := milvusclient.NewDeleteOption(collection).WithExpr(expr)
	if _, err := s.client.Delete(ctx, deleteOpt); err != nil {
		return services.WrapExternal(fmt.Sprintf("failed to delete document %d from %s", documentID, collection), err)
	}

	s.logger.Debug("document entries deleted",
		zap.String("collection", collection),
		zap.Int64("document_id", documentID))
	return nil
}

// DropCollection removes the collection and all its entries
func (s *Store) DropCollection(ctx context.Context, collection string) error {
	dropOpt := milvusclient.NewDropCollectionOption(collection)
	if err := s.client.DropCollection(ctx, dropOpt); err != nil {
		return services.WrapExternal(fmt.Sprintf("failed to drop collection %s", collection), err)
	}

	s.logger.Info("collection dropped", zap.String("collection", collection))
	return nil
}

// Count returns the number of entries in the collection
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return 0, services.WrapExternal(fmt.Sprintf("failed to check collection %s", collection), err)
	}
	if !exists {
		return 0, nil
	}

	queryOpt := milvusclient.NewQueryOption(collection).
		WithOutputFields("count(*)")
	results, err := s.client.Query(ctx, queryOpt)
	if err != nil {
		return 0, services.WrapExternal(fmt.Sprintf("failed to count %s", collection), err)
	}

	countCol := results.GetColumn("count(*)")
	if countCol == nil || countCol.Len() == 0 {
		return 0, nil
	}
	count, err := countCol.GetAsInt64(0)
	if err != nil {
		return 0, services.WrapExternal("failed to read count result", err)
	}
	return count, nil
}

// buildFilterExpr converts a metadata equality filter into a Milvus
// boolean expression over the JSON metadata field
func buildFilterExpr(filter map[string]interface{}) string {
	expr := ""
	for key, value := range filter {
		var clause string
		switch v := value.(type) {
		case string:
			clause = fmt.Sprintf(`%s["%s"] == "%s"`, FieldMetadata, key, v)
		case int:
			clause = fmt.Sprintf(`%s["%s"] == %d`, FieldMetadata, key, v)
		case int64:
			clause = fmt.Sprintf(`%s["%s"] == %d`, FieldMetadata, key, v)
		case float64:
			clause = fmt.Sprintf(`%s["%s"] == %v`, FieldMetadata, key, v)
		case bool:
			clause = fmt.Sprintf(`%s["%s"] == %t`, FieldMetadata, key, v)
		default:
			continue
		}
		if expr != "" {
			expr += " and "
		}
		expr += clause
	}
	return expr
}
