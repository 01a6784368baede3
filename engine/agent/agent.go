package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/cesarhb/kb-engine-playground/engine/knowledge"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/retriever"
	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

const ragSystemPrompt = "You answer questions based only on the following context. " +
	"If the context does not contain enough information, say so.\n\nContext:\n%s"

const toolSystemPrompt = "You answer questions using the knowledge base. When you need facts, " +
	"documentation, or examples, call the search_kb tool to search the vector DB, then answer " +
	"based on the retrieved context. If the context does not contain enough information, say so."

const searchToolName = "search_kb"

// maxToolIterations bounds the tool loop so a model that keeps calling
// search_kb cannot spin forever.
const maxToolIterations = 5

// Retriever is the slice of the retrieval service the agent depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]knowledge.RetrievedContext, error)
}

var _ Retriever = (*retriever.Service)(nil)

// Agent answers questions grounded in the knowledge base.
type Agent struct {
	model     llms.Model
	retriever Retriever
}

func New(model llms.Model, ret Retriever) (*Agent, error) {
	if model == nil {
		return nil, errors.New("agent: chat model is required")
	}
	if ret == nil {
		return nil, errors.New("agent: retriever is required")
	}
	return &Agent{model: model, retriever: ret}, nil
}

// Answer runs the classic RAG path: retrieve contexts, inline them into
// the system prompt, and generate once.
func (a *Agent) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("agent: question is required")
	}
	contexts, err := a.retriever.Retrieve(ctx, question)
	if err != nil {
		return "", fmt.Errorf("agent: retrieve context: %w", err)
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(ragSystemPrompt, formatContexts(contexts))),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}
	resp, err := a.model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("agent: generate answer: %w", err)
	}
	return firstChoiceText(resp)
}

// AnswerWithTools lets the model decide when to search: it exposes
// search_kb as a tool and loops until the model answers in plain text or
// the iteration bound is hit.
func (a *Agent) AnswerWithTools(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("agent: question is required")
	}
	log := logger.FromContext(ctx)
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, toolSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}
	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := a.model.GenerateContent(ctx, messages,
			llms.WithTemperature(0),
			llms.WithTools([]llms.Tool{searchTool()}),
		)
		if err != nil {
			return "", fmt.Errorf("agent: generate answer: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("agent: model returned no choices")
		}
		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			return choice.Content, nil
		}
		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, call := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, call)
		}
		messages = append(messages, assistant)
		for _, call := range choice.ToolCalls {
			log.Debug("agent tool call", "tool", call.FunctionCall.Name, "iteration", iteration)
			result, err := a.executeToolCall(ctx, call)
			if err != nil {
				return "", err
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: call.ID,
					Name:       call.FunctionCall.Name,
					Content:    result,
				}},
			})
		}
	}
	return "", fmt.Errorf("agent: no answer after %d tool iterations", maxToolIterations)
}

func (a *Agent) executeToolCall(ctx context.Context, call llms.ToolCall) (string, error) {
	if call.FunctionCall == nil {
		return "", errors.New("agent: tool call missing function")
	}
	if call.FunctionCall.Name != searchToolName {
		return "", fmt.Errorf("agent: unknown tool %q", call.FunctionCall.Name)
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.FunctionCall.Arguments), &args); err != nil {
		return "", fmt.Errorf("agent: decode %s arguments: %w", searchToolName, err)
	}
	contexts, err := a.retriever.Retrieve(ctx, args.Query)
	if err != nil {
		return "", fmt.Errorf("agent: %s: %w", searchToolName, err)
	}
	if len(contexts) == 0 {
		return "No relevant documents found.", nil
	}
	parts := make([]string, len(contexts))
	for i := range contexts {
		parts[i] = contexts[i].Content
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

func searchTool() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name: searchToolName,
			Description: "Search the knowledge base (vector DB) for relevant passages. " +
				"Use this to find documentation, whitepapers, or repo content before answering.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func formatContexts(contexts []knowledge.RetrievedContext) string {
	if len(contexts) == 0 {
		return "(no relevant documents found)"
	}
	parts := make([]string, len(contexts))
	for i := range contexts {
		parts[i] = contexts[i].Content
	}
	return strings.Join(parts, "\n\n")
}

func firstChoiceText(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("agent: model returned no choices")
	}
	return resp.Choices[0].Content, nil
}
