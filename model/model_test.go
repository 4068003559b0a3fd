package model

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageAccessors(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Blocks: []Block{
			TextBlock{Text: "Let me "},
			ToolUseBlock{ID: "tu_1", Name: "lookup", Input: json.RawMessage(`{"q":"x"}`)},
			TextBlock{Text: "check."},
			ToolUseBlock{ID: "tu_2", Name: "fetch", Input: json.RawMessage(`{}`)},
		},
	}

	assert.Equal(t, "Let me check.", msg.Text())

	uses := msg.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "tu_1", uses[0].ID)
	assert.Equal(t, "tu_2", uses[1].ID)

	assert.Empty(t, msg.ToolResults())
}

func TestMessageToolResults(t *testing.T) {
	msg := Message{
		Role: RoleUser,
		Blocks: []Block{
			ToolResultBlock{ToolUseID: "tu_1", Content: "ok"},
			ToolResultBlock{ToolUseID: "tu_2", Content: "boom", IsError: true},
		},
	}

	results := msg.ToolResults()
	require.Len(t, results, 2)
	assert.Equal(t, "tu_1", results[0].ToolUseID)
	assert.True(t, results[1].IsError)
	assert.Empty(t, msg.Text())
}

func TestNewUserMessageWithImages(t *testing.T) {
	msg := NewUserMessage("what is this?", ImageBlock{MediaType: "image/png", Data: "aGk="})

	assert.Equal(t, RoleUser, msg.Role)
	require.Len(t, msg.Blocks, 2)
	assert.Equal(t, "what is this?", msg.Text())
	img, ok := msg.Blocks[1].(ImageBlock)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MediaType)
}

func TestUsageAccumulation(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5}
	u.Add(Usage{InputTokens: 3, OutputTokens: 7})

	assert.Equal(t, 13, u.InputTokens)
	assert.Equal(t, 12, u.OutputTokens)
	assert.Equal(t, 25, u.Total())
}

func TestMockModelConsumesQueueInOrder(t *testing.T) {
	m := NewMockModel("test").
		EnqueueText("first").
		EnqueueText("second")

	resp, err := m.Invoke(context.Background(), Request{Messages: []Message{NewTextMessage(RoleUser, "a")}})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text())
	assert.Equal(t, StopEndTurn, resp.StopReason)

	resp, err = m.Invoke(context.Background(), Request{Messages: []Message{NewTextMessage(RoleUser, "b")}})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text())

	// Queue exhausted.
	_, err = m.Invoke(context.Background(), Request{})
	require.Error(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "a", reqs[0].Messages[0].Text())
	assert.Equal(t, "b", reqs[1].Messages[0].Text())
}

func TestMockModelFailWith(t *testing.T) {
	m := NewMockModel("test").EnqueueText("never delivered").FailWith(assert.AnError)

	_, err := m.Invoke(context.Background(), Request{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMockModelStreamRejoinsToText(t *testing.T) {
	m := NewMockModel("test").EnqueueText("hello streaming world")

	chunks, errCh := m.InvokeStream(context.Background(), Request{})

	var b strings.Builder
	var final *Response
	for chunk := range chunks {
		if chunk.Done {
			require.Nil(t, final, "expected a single terminal chunk")
			final = chunk.Response
			continue
		}
		b.WriteString(chunk.Delta)
	}
	require.NoError(t, <-errCh)

	require.NotNil(t, final)
	assert.Equal(t, "hello streaming world", b.String())
	assert.Equal(t, "hello streaming world", final.Text())
	assert.Equal(t, StopEndTurn, final.StopReason)
}

func TestMockModelStreamPropagatesError(t *testing.T) {
	m := NewMockModel("test").FailWith(assert.AnError)

	chunks, errCh := m.InvokeStream(context.Background(), Request{})
	for range chunks {
		t.Fatal("no chunks expected on failure")
	}
	assert.ErrorIs(t, <-errCh, assert.AnError)
}

func TestMockModelInfo(t *testing.T) {
	info := NewMockModel("scripted").Info()
	assert.Equal(t, "scripted", info.Name)
	assert.Equal(t, "mock", info.Provider)
	assert.True(t, info.SupportsTools)
}
