// Package rag implements the two-stage retrieve→generate query graph.
package rag

import (
	"strings"

	ragserve "github.com/nholden/ragserve"
)

const systemTemplate = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the question. " +
	"If you don't know the answer, just say that you don't know. " +
	"If the context doesn't contain relevant information, say that you don't have enough information to answer the question. " +
	"Use three sentences maximum and keep the answer concise.\n\n" +
	"Context: %CONTEXT%"

// BuildPrompt formats retrieved chunks and the question into the fixed chat
// prompt: a system turn carrying the context, a user turn carrying the
// question. Context chunks are concatenated in retrieval order, separated by
// a blank line. An empty context is valid and produces an empty Context
// section; the model is expected to answer that it lacks information.
func BuildPrompt(question string, context []ragserve.ScoredChunk) []ragserve.ChatMessage {
	texts := make([]string, len(context))
	for i, c := range context {
		texts[i] = c.Text
	}
	system := strings.Replace(systemTemplate, "%CONTEXT%", strings.Join(texts, "\n\n"), 1)

	return []ragserve.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: "Question: " + question},
	}
}
