package rag

import (
	"fmt"
	"strings"

	"github.com/docuchat/backend/services/providers"
)

// DefaultSystemPrompt instructs the model to stay grounded in the
// retrieved context
const DefaultSystemPrompt = `You are a helpful AI assistant that answers questions based on the provided context.

Your responsibilities:
- Answer questions accurately using ONLY the information from the provided context
- If the context doesn't contain enough information to answer, say so honestly
- Cite specific parts of the context when making claims
- Be concise but thorough
- If asked about something not in the context, clearly state that

Remember: Base your answers ONLY on the provided context documents.`

const contextPromptTemplate = `Context documents:

%s

---

Question: %s

Please answer the question based on the context provided above. If you reference specific information, indicate which part of the context it comes from.`

// BuildContextPrompt renders the retrieved documents as labeled source
// blocks followed by the question. With no documents the query passes
// through unchanged so the model is not framed to cite absent sources.
func BuildContextPrompt(query string, documents []RetrievedDocument) string {
	if len(documents) == 0 {
		return query
	}

	blocks := make([]string, 0, len(documents))
	for i, doc := range documents {
		var label strings.Builder
		fmt.Fprintf(&label, "[Source %d", i+1)
		if docID := doc.DocumentID(); docID != 0 {
			fmt.Fprintf(&label, ", Document ID: %d", docID)
		}
		if chunkIdx := doc.ChunkIndex(); chunkIdx >= 0 {
			fmt.Fprintf(&label, ", Chunk: %d", chunkIdx)
		}
		fmt.Fprintf(&label, ", Relevance: %.2f]", doc.Score())

		blocks = append(blocks, fmt.Sprintf("%s\n%s\n", label.String(), doc.Content))
	}

	context := strings.Join(blocks, "\n---\n\n")

	return fmt.Sprintf(contextPromptTemplate, context, query)
}

// BuildChatMessages assembles the message list for a generation call:
// one system turn, the most recent maxHistory turns of history in
// their original order, then one user turn carrying the context prompt
func BuildChatMessages(query string, documents []RetrievedDocument, history []providers.Message, systemPrompt string, maxHistory int) []providers.Message {
	messages := make([]providers.Message, 0, len(history)+2)

	messages = append(messages, providers.Message{
		Role:    "system",
		Content: systemPrompt,
	})

	if len(history) > 0 && maxHistory > 0 {
		recent := history
		if len(recent) > maxHistory {
			recent = recent[len(recent)-maxHistory:]
		}
		messages = append(messages, recent...)
	}

	messages = append(messages, providers.Message{
		Role:    "user",
		Content: BuildContextPrompt(query, documents),
	})

	return messages
}
