package rag

// RetrievedDocument is a chunk returned by the vector store for a
// query, with its cosine distance to the query embedding
type RetrievedDocument struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Distance float64                `json:"distance"`
}

// Score converts distance to a relevance score in [0, 1], higher is
// more relevant
func (d RetrievedDocument) Score() float64 {
	score := 1.0 - d.Distance
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// DocumentID extracts the source document ID from metadata, 0 if absent
func (d RetrievedDocument) DocumentID() int64 {
	return metadataInt64(d.Metadata, "document_id")
}

// ChunkIndex extracts the chunk position from metadata, -1 if absent
func (d RetrievedDocument) ChunkIndex() int {
	if _, ok := d.Metadata["chunk_index"]; !ok {
		return -1
	}
	return int(metadataInt64(d.Metadata, "chunk_index"))
}

// RAGResponse is the result of a blocking generation call
type RAGResponse struct {
	Answer           string              `json:"answer"`
	Sources          []RetrievedDocument `json:"sources"`
	Model            string              `json:"model"`
	PromptTokens     int                 `json:"prompt_tokens,omitempty"`
	CompletionTokens int                 `json:"completion_tokens,omitempty"`
}

// StreamEventType tags events on the streaming generation path
type StreamEventType string

const (
	EventSources StreamEventType = "sources"
	EventToken   StreamEventType = "token"
	EventDone    StreamEventType = "done"
	EventError   StreamEventType = "error"
)

// SourceInfo is the per-document payload of a Sources event
type SourceInfo struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float64                `json:"score"`
}

// DoneInfo is the payload of a Done event
type DoneInfo struct {
	Model        string `json:"model"`
	SourcesCount int    `json:"sources_count"`
}

// StreamEvent is one unit of a streaming generation call. Exactly one
// of the payload fields is set, selected by Type.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Sources []SourceInfo    `json:"sources,omitempty"`
	Token   string          `json:"token,omitempty"`
	Done    *DoneInfo       `json:"done,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewSourceInfo summarizes a retrieved document for a Sources event
func NewSourceInfo(doc RetrievedDocument) SourceInfo {
	return SourceInfo{
		ID:       doc.ID,
		Content:  doc.Content,
		Metadata: doc.Metadata,
		Score:    doc.Score(),
	}
}

func metadataInt64(metadata map[string]interface{}, key string) int64 {
	switch v := metadata[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	}
	return 0
}
