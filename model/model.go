// Package model defines the provider-agnostic chat-completion contract used
// by the agent loop. It normalizes messages, content blocks (text, tool-use,
// tool-result, image), stop reasons and tool declarations so higher layers
// stay decoupled from vendor SDKs, and provides a scriptable MockModel for
// tests.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks content supplied by the end user (or tool results fed
	// back to the model, per the chat-completion protocol).
	RoleUser Role = "user"
	// RoleAssistant marks content produced by the model.
	RoleAssistant Role = "assistant"
)

// StopReason is the chat API's signal for why generation halted in a turn.
type StopReason string

const (
	// StopToolUse indicates the model requested one or more tool executions.
	StopToolUse StopReason = "tool_use"
	// StopEndTurn indicates the model finished its answer normally.
	StopEndTurn StopReason = "end_turn"
	// StopMaxTokens indicates generation was cut off at the token limit.
	StopMaxTokens StopReason = "max_tokens"
	// StopSequence indicates a configured stop sequence was produced.
	StopSequence StopReason = "stop_sequence"
	// StopContentFiltered indicates the provider suppressed the output.
	StopContentFiltered StopReason = "content_filtered"
)

// Block represents a polymorphic segment of message content. Concrete block
// types implement the unexported isBlock marker enabling a closed set.
type Block interface{ isBlock() }

// TextBlock is a plain text content segment.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) isBlock() {}

// ToolUseBlock is a structured request from the model to invoke one tool.
type ToolUseBlock struct {
	ID    string          `json:"id"`    // Correlation id supplied by the provider
	Name  string          `json:"name"`  // Registered tool name
	Input json.RawMessage `json:"input"` // JSON arguments
}

func (ToolUseBlock) isBlock() {}

// ToolResultBlock carries the outcome of a tool execution back to the model.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"` // Matches the originating ToolUseBlock.ID
	Content   string `json:"content"`     // Serialized result or error message
	IsError   bool   `json:"is_error"`
}

func (ToolResultBlock) isBlock() {}

// ImageBlock references an image attachment, either inlined or by URI.
type ImageBlock struct {
	MediaType string `json:"media_type"` // e.g. "image/jpeg"
	Data      string `json:"data"`       // Base64 encoded bytes (if inlined)
	URI       string `json:"uri"`        // External reference (if not inlined)
}

func (ImageBlock) isBlock() {}

// Message holds a role plus ordered content blocks. Conversation history is
// an ordered slice of Messages, append-only during a single agent run.
type Message struct {
	Role   Role    `json:"role"`
	Blocks []Block `json:"blocks"`
}

// NewTextMessage builds a single-text-block message for the given role.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Blocks: []Block{TextBlock{Text: text}}}
}

// NewUserMessage builds a user message from text plus optional image attachments.
func NewUserMessage(text string, images ...ImageBlock) Message {
	blocks := make([]Block, 0, len(images)+1)
	blocks = append(blocks, TextBlock{Text: text})
	for _, img := range images {
		blocks = append(blocks, img)
	}
	return Message{Role: RoleUser, Blocks: blocks}
}

// Text returns the concatenated text blocks of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, blk := range m.Blocks {
		if tb, ok := blk.(TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String()
}

// ToolUses returns the tool-use blocks contained in the message preserving
// their original order.
func (m Message) ToolUses() []ToolUseBlock {
	var uses []ToolUseBlock
	for _, blk := range m.Blocks {
		if tu, ok := blk.(ToolUseBlock); ok {
			uses = append(uses, tu)
		}
	}
	return uses
}

// ToolResults returns the tool-result blocks contained in the message
// preserving their original order.
func (m Message) ToolResults() []ToolResultBlock {
	var results []ToolResultBlock
	for _, blk := range m.Blocks {
		if tr, ok := blk.(ToolResultBlock); ok {
			results = append(results, tr)
		}
	}
	return results
}

// ToolDefinition declaratively exposes a callable tool to the model.
// InputSchema is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request captures the normalized model input produced by the agent loop.
type Request struct {
	System      string           `json:"system"` // System prompt
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   int64            `json:"max_tokens,omitempty"`
}

// Usage captures token usage statistics for a response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage record into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Response is the final outcome of one model turn.
type Response struct {
	ID         string     `json:"id"`
	StopReason StopReason `json:"stop_reason"`
	Message    Message    `json:"message"` // Assistant content (text and/or tool-use blocks)
	Usage      Usage      `json:"usage"`
}

// Text returns the concatenated text blocks of the response message.
func (r *Response) Text() string { return r.Message.Text() }

// ToolUses returns the tool-use blocks of the response message.
func (r *Response) ToolUses() []ToolUseBlock { return r.Message.ToolUses() }

// Chunk is an incremental unit emitted by a streaming invocation: zero or
// more text deltas followed by exactly one terminal chunk carrying the
// complete Response.
type Chunk struct {
	Delta    string    `json:"delta,omitempty"` // Incremental text
	Done     bool      `json:"done"`
	Response *Response `json:"response,omitempty"` // Set only on the terminal chunk
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "anthropic", "bedrock", "openai", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the agent loop to drive
// generation. Invoke performs one blocking turn; InvokeStream yields text
// deltas followed by a terminal chunk with the same final shape.
type Model interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
	InvokeStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a scriptable in-memory Model for tests and examples. Queue
// responses with Enqueue; each Invoke consumes the next one and records the
// request it received.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	queue     []Response
	requests  []Request
	invokeErr error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{Name: name, Provider: "mock", SupportsTools: true},
	}
}

// Enqueue appends a scripted response consumed by the next Invoke call.
func (m *MockModel) Enqueue(resp Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
	return m
}

// EnqueueText is shorthand for scripting a plain end_turn text response.
func (m *MockModel) EnqueueText(text string) *MockModel {
	return m.Enqueue(Response{
		StopReason: StopEndTurn,
		Message:    NewTextMessage(RoleAssistant, text),
	})
}

// FailWith makes every subsequent Invoke return err.
func (m *MockModel) FailWith(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invokeErr = err
	return m
}

// Requests returns a copy of the requests recorded so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]Request, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}

// Invoke implements Model by consuming the next scripted response.
func (m *MockModel) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.invokeErr != nil {
		return nil, m.invokeErr
	}

	if len(m.queue) == 0 {
		return nil, fmt.Errorf("mock model: no scripted response for request %d", len(m.requests))
	}

	resp := m.queue[0]
	m.queue = m.queue[1:]

	return &resp, nil
}

// InvokeStream implements Model; the scripted response text is split into
// word-sized deltas followed by the terminal chunk.
func (m *MockModel) InvokeStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.Invoke(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		for _, word := range strings.SplitAfter(resp.Text(), " ") {
			if word == "" {
				continue
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Chunk{Delta: word}:
			}
		}

		out <- Chunk{Done: true, Response: resp}
	}()

	return out, errCh
}

// Info implements the Model interface.
func (m *MockModel) Info() Info { return m.info }
