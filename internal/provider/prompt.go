package provider

import (
	"fmt"
	"strings"

	"github.com/semlens/semlens-mcp/pkg/types"
)

// Prompt assembly shared by the remote backends. Kept in one place so both
// wire adapters produce identical generative behavior.

const systemPrompt = "You are a code assistant answering questions about an indexed codebase. " +
	"Base your answers on the reference files provided; say so when the references do not cover the question."

// maxContextPerFile caps how much of each retrieved file is inlined into a
// generative prompt, keeping total context within model limits.
const maxContextPerFile = 6000

func summarizePrompt(code, fileName string) string {
	return fmt.Sprintf(
		"Summarize the purpose of the file %s in two or three sentences. Mention its main responsibilities, not its syntax.\n\n%s",
		fileName, code)
}

func contextualizePrompt(query string, results []types.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "For the query %q, briefly explain how each of these files is relevant:\n\n", query)
	b.WriteString(formatResults(results))
	return b.String()
}

func answerPrompt(question string, results []types.SearchResult) string {
	var b strings.Builder
	b.WriteString("Reference files:\n\n")
	b.WriteString(formatResults(results))
	fmt.Fprintf(&b, "\nQuestion: %s", question)
	return b.String()
}

// formatResults renders retrieved files as a reference block. Content is
// preferred over summary when present, since it is what the answer should
// be grounded on.
func formatResults(results []types.SearchResult) string {
	if len(results) == 0 {
		return "(no relevant files found)\n"
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "--- [%d] %s (similarity %.2f)\n", i+1, r.FilePath, r.Similarity)
		if r.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", r.Summary)
		}
		if r.Content != "" {
			b.WriteString(truncate(r.Content, maxContextPerFile))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// chatMessage is the role/content pair used by both chat wire formats.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildChatMessages assembles system prompt, prior history, and the
// reference-laden question into an ordered message list.
func buildChatMessages(question string, results []types.SearchResult, history []types.ConversationTurn) []chatMessage {
	messages := []chatMessage{{Role: "system", Content: systemPrompt}}

	for _, turn := range history {
		role := "assistant"
		if turn.IsUser {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Text})
	}

	messages = append(messages, chatMessage{Role: "user", Content: answerPrompt(question, results)})
	return messages
}
