// Package anthropic adapts the Anthropic Messages API (direct or hosted on
// AWS Bedrock) to the generic model.Model interface.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/fitforge/coachkit/model"
)

// Options configures the Anthropic model adapter.
type Options struct {
	Model  anthropic.Model
	APIKey string
	// Region selects the AWS region for Bedrock-hosted models.
	Region string
}

// Model wraps the Anthropic Messages API behind the generic model.Model
// interface.
type Model struct {
	client   *anthropic.Client
	opts     Options
	provider string
}

// NewModel creates an Anthropic model using the official client. The API
// key falls back to the ANTHROPIC_API_KEY environment variable when unset.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model: anthropic.ModelClaude3_5Sonnet20241022,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts, provider: "anthropic"}
}

// NewModelFromClient creates an Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model: anthropic.ModelClaude3_5Sonnet20241022,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts, provider: "anthropic"}
}

// Invoke performs one non-streaming Messages call.
func (m *Model) Invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	resp, err := m.client.Messages.New(ctx, m.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}
	return m.convertResponse(resp), nil
}

// InvokeStream performs a streaming Messages call, yielding text deltas as
// they arrive and the accumulated final response on the terminal chunk.
func (m *Model) InvokeStream(ctx context.Context, req model.Request) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := m.client.Messages.NewStreaming(ctx, m.buildParams(req))

		var acc anthropic.Message
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				errCh <- fmt.Errorf("anthropic stream accumulate: %w", err)
				return
			}

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					select {
					case out <- model.Chunk{Delta: delta.Text}:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic stream error: %w", err)
			return
		}

		out <- model.Chunk{Done: true, Response: m.convertResponse(&acc)}
	}()

	return out, errCh
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      m.provider,
		SupportsTools: true,
	}
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     m.opts.Model,
		Messages:  buildMessages(req.Messages),
		MaxTokens: req.MaxTokens,
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = 4096
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	return params
}

// buildMessages converts coachkit messages to the Anthropic message format.
func buildMessages(messages []model.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		content := buildContent(msg.Blocks)
		if len(content) == 0 {
			continue
		}
		if msg.Role == model.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out
}

func buildContent(blocks []model.Block) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	for _, b := range blocks {
		switch block := b.(type) {
		case model.TextBlock:
			if block.Text != "" {
				content = append(content, anthropic.NewTextBlock(block.Text))
			}
		case model.ToolUseBlock:
			content = append(content, anthropic.NewToolUseBlock(block.ID, block.Input, block.Name))
		case model.ToolResultBlock:
			content = append(content, anthropic.NewToolResultBlock(block.ToolUseID, block.Content, block.IsError))
		case model.ImageBlock:
			if block.Data != "" {
				content = append(content, anthropic.NewImageBlockBase64(block.MediaType, block.Data))
			} else if block.URI != "" {
				content = append(content, anthropic.ContentBlockParamUnion{
					OfImage: &anthropic.ImageBlockParam{
						Source: anthropic.ImageBlockParamSourceUnion{
							OfURL: &anthropic.URLImageSourceParam{URL: block.URI},
						},
					},
				})
			}
		}
	}
	return content
}

// buildTools converts coachkit tool declarations to the Anthropic tool
// format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if t.InputSchema != nil {
			if properties, ok := t.InputSchema["properties"]; ok {
				inputSchema.Properties = properties
			}
			if required, ok := t.InputSchema["required"]; ok {
				inputSchema.Required = requiredStrings(required)
			}
		}
		tool := anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
		if tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(t.Description)
		}
		out[i] = tool
	}
	return out
}

func requiredStrings(required any) []string {
	switch req := required.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (m *Model) convertResponse(resp *anthropic.Message) *model.Response {
	msg := model.Message{Role: model.RoleAssistant}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			if textBlock.Text != "" {
				msg.Blocks = append(msg.Blocks, model.TextBlock{Text: textBlock.Text})
			}
		case "tool_use":
			toolBlock := block.AsToolUse()
			var input json.RawMessage
			if raw, err := json.Marshal(toolBlock.Input); err == nil {
				input = raw
			}
			msg.Blocks = append(msg.Blocks, model.ToolUseBlock{
				ID:    toolBlock.ID,
				Name:  toolBlock.Name,
				Input: input,
			})
		}
	}

	return &model.Response{
		ID:         resp.ID,
		StopReason: convertStopReason(resp.StopReason),
		Message:    msg,
		Usage: model.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}
}

func convertStopReason(reason anthropic.StopReason) model.StopReason {
	switch reason {
	case anthropic.StopReasonToolUse:
		return model.StopToolUse
	case anthropic.StopReasonEndTurn:
		return model.StopEndTurn
	case anthropic.StopReasonMaxTokens:
		return model.StopMaxTokens
	case anthropic.StopReasonStopSequence:
		return model.StopSequence
	case anthropic.StopReasonRefusal:
		return model.StopContentFiltered
	default:
		return model.StopEndTurn
	}
}
