package agent

import (
	"context"
	"fmt"

	"github.com/fitforge/coachkit/model"
)

// StreamEventType discriminates the events of a streaming run.
type StreamEventType string

const (
	// StreamEventText carries an incremental chunk of assistant text.
	StreamEventText StreamEventType = "text"
	// StreamEventStatus carries a short, non-authoritative contextual update
	// emitted while background work proceeds. Never part of history.
	StreamEventStatus StreamEventType = "status"
	// StreamEventSummary is the single terminal record of a streaming run.
	StreamEventSummary StreamEventType = "summary"
)

// StreamEvent is one unit yielded by ConverseStream: text chunks in arrival
// order, optionally interleaved status updates, then exactly one summary
// event carrying the run Result.
type StreamEvent struct {
	Type   StreamEventType
	Text   string
	Result *Result
}

// ConverseStream runs the same bounded loop as Converse but yields assistant
// text chunks as the model streams them, then one terminal summary event.
// Chunk emission is a cooperative yield point; there is no backpressure
// beyond the channel itself. Fatal model errors are delivered on the error
// channel and end the stream without a summary.
func (a *Agent) ConverseStream(ctx context.Context, userMessage string, attachments ...model.ImageBlock) (<-chan StreamEvent, <-chan error) {
	out := make(chan StreamEvent, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		a.beginRun()
		a.history = append(a.history, model.NewUserMessage(userMessage, attachments...))

		res := &Result{RunID: a.runID}

		var bestText string

		for iter := 1; iter <= a.opts.MaxIterations; iter++ {
			res.Iterations = iter

			resp, err := a.streamTurn(ctx, out)
			if err != nil {
				a.logger.Error("agent.model.error", "run_id", a.runID, "iteration", iter, "error", err.Error())
				errCh <- fmt.Errorf("model invocation failed: %w", err)
				return
			}

			res.Usage.Add(resp.Usage)
			res.StopReason = resp.StopReason

			switch resp.StopReason {
			case model.StopToolUse:
				if text := resp.Text(); text != "" {
					bestText = text
				}
				a.history = append(a.history, resp.Message)
				resultBlocks := a.handleToolUse(ctx, resp.ToolUses(), res)
				a.history = append(a.history, model.Message{Role: model.RoleUser, Blocks: resultBlocks})
				continue

			case model.StopEndTurn, model.StopSequence:
				a.history = append(a.history, resp.Message)
				res.FinalText = resp.Text()

			case model.StopMaxTokens, model.StopContentFiltered:
				text := resp.Text()
				if text == "" {
					text = a.opts.FallbackText
					emit(ctx, out, StreamEvent{Type: StreamEventText, Text: text})
				}
				a.history = append(a.history, resp.Message)
				res.FinalText = text

			default:
				a.history = append(a.history, resp.Message)
				res.FinalText = resp.Text()
			}

			a.endRun(res)
			emit(ctx, out, StreamEvent{Type: StreamEventSummary, Result: res})
			return
		}

		res.StopReason = StopIterationCap
		res.FinalText = bestText
		if res.FinalText == "" {
			// Nothing was streamed in any turn, so the fallback is the only
			// text the client ever sees. Streamed text is not re-emitted; the
			// summary carries it.
			res.FinalText = a.opts.FallbackText
			emit(ctx, out, StreamEvent{Type: StreamEventText, Text: res.FinalText})
		}

		a.logger.Warn("agent.loop.iteration_cap", "run_id", a.runID, "iterations", res.Iterations)
		a.endRun(res)
		emit(ctx, out, StreamEvent{Type: StreamEventSummary, Result: res})
	}()

	return out, errCh
}

// streamTurn drives one streaming model invocation, forwarding text deltas
// in arrival order and returning the final response.
func (a *Agent) streamTurn(ctx context.Context, out chan<- StreamEvent) (*model.Response, error) {
	chunks, errCh := a.llm.InvokeStream(ctx, a.buildRequest())

	// Drain both channels fully before deciding the turn's fate so a fatal
	// error is never lost to a close race on the chunk channel.
	var final *model.Response
	for chunks != nil || errCh != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if chunk.Done {
				final = chunk.Response
				continue
			}
			if chunk.Delta != "" {
				emit(ctx, out, StreamEvent{Type: StreamEventText, Text: chunk.Delta})
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				return nil, err
			}
			errCh = nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if final == nil {
		return nil, fmt.Errorf("stream closed without terminal response")
	}
	return final, nil
}

func emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) {
	select {
	case <-ctx.Done():
	case out <- ev:
	}
}
