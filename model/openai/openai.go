// Package openai adapts the OpenAI Chat Completions API (including
// streaming and tool calling) to the generic model.Model interface.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/fitforge/coachkit/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name,
// arguments) so complete tool-use blocks can be reconstructed when the
// finish reason arrives.
type aggCall struct{ id, name, args string }

// Options configures the OpenAI model adapter.
type Options struct {
	Model string
}

// Model wraps the OpenAI Chat Completions API behind the generic
// model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates an OpenAI model using the official client. The API key
// comes from the OPENAI_API_KEY environment variable.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates an OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model: openai.ChatModelGPT4oMini,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Invoke performs one non-streaming chat completion.
func (m *Model) Invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api returned no choices")
	}

	choice := resp.Choices[0]
	msg := model.Message{Role: model.RoleAssistant}
	if choice.Message.Content != "" {
		msg.Blocks = append(msg.Blocks, model.TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.Blocks = append(msg.Blocks, model.ToolUseBlock{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}

	return &model.Response{
		ID:         resp.ID,
		StopReason: convertFinishReason(choice.FinishReason),
		Message:    msg,
		Usage: model.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// InvokeStream performs a streaming chat completion, yielding text deltas
// as they arrive and the reconstructed final response on the terminal chunk.
func (m *Model) InvokeStream(ctx context.Context, req model.Request) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

		stream := m.client.Chat.Completions.NewStreaming(ctx, params)

		var textBuilder strings.Builder
		toolAgg := map[int64]*aggCall{}
		final := &model.Response{}

		for stream.Next() {
			ck := stream.Current()
			if ck.Usage.TotalTokens > 0 {
				final.Usage = model.Usage{
					InputTokens:  int(ck.Usage.PromptTokens),
					OutputTokens: int(ck.Usage.CompletionTokens),
				}
			}
			for _, choice := range ck.Choices {
				if choice.Delta.Content != "" {
					textBuilder.WriteString(choice.Delta.Content)
					select {
					case out <- model.Chunk{Delta: choice.Delta.Content}:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				}
				for _, tc := range choice.Delta.ToolCalls {
					ac, ok := toolAgg[tc.Index]
					if !ok {
						ac = &aggCall{}
						toolAgg[tc.Index] = ac
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name = tc.Function.Name
					}
					ac.args += tc.Function.Arguments
				}
				if choice.FinishReason != "" {
					final.ID = ck.ID
					final.StopReason = convertFinishReason(choice.FinishReason)
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
			return
		}

		msg := model.Message{Role: model.RoleAssistant}
		if textBuilder.Len() > 0 {
			msg.Blocks = append(msg.Blocks, model.TextBlock{Text: textBuilder.String()})
		}
		for i := int64(0); i < int64(len(toolAgg)); i++ {
			if ac, ok := toolAgg[i]; ok {
				msg.Blocks = append(msg.Blocks, model.ToolUseBlock{
					ID:    ac.id,
					Name:  ac.name,
					Input: json.RawMessage(ac.args),
				})
			}
		}
		final.Message = msg

		out <- model.Chunk{Done: true, Response: final}
	}()

	return out, errCh
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

// buildParams assembles the chat completion parameters including tool
// definitions.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    m.opts.Model,
		Messages: buildMessages(req),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  t.InputSchema,
				},
			}
		}
		params.Tools = tools
	}
	return params
}

// buildMessages converts coachkit messages to the OpenAI chat format. Tool
// results grouped into a user message by the loop become individual tool
// messages following their assistant tool-call turn, which the history
// ordering already guarantees.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case model.RoleAssistant:
			toolCalls, text := extractToolCalls(msg)
			if len(toolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(text))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls,
			}
			if text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})

		default:
			results := msg.ToolResults()
			if len(results) > 0 {
				for _, r := range results {
					messages = append(messages, openai.ToolMessage(r.Content, r.ToolUseID))
				}
				continue
			}
			if text := msg.Text(); text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}
	return messages
}

func extractToolCalls(msg model.Message) ([]openai.ChatCompletionMessageToolCallParam, string) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, use := range msg.ToolUses() {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   use.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      use.Name,
				Arguments: string(use.Input),
			},
		})
	}
	return toolCalls, msg.Text()
}

func convertFinishReason(reason string) model.StopReason {
	switch reason {
	case "tool_calls", "function_call":
		return model.StopToolUse
	case "length":
		return model.StopMaxTokens
	case "content_filter":
		return model.StopContentFiltered
	default:
		return model.StopEndTurn
	}
}
