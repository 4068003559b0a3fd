package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fitforge/coachkit/background"
	"github.com/fitforge/coachkit/coach"
	"github.com/fitforge/coachkit/store"
)

// memoryCues maps phrases that signal a durable user fact to the tag the
// extracted memory is filed under.
var memoryCues = []struct {
	phrase string
	tag    string
}{
	{"injur", "injury"},
	{"hurt", "injury"},
	{"pain", "injury"},
	{"allerg", "health"},
	{"prefer", "preference"},
	{"hate", "preference"},
	{"love", "preference"},
	{"goal", "goal"},
	{"training for", "goal"},
	{"want to", "goal"},
}

// NewMemoryExtractionHandler returns the background handler for
// MemoryExtractionJob: it scans the user's message for phrases that signal
// durable facts and saves one memory per matched sentence. A cheap keyword
// pass rather than a model call; the conversational agent already saves
// explicit facts through its save_user_memory tool, this catches what the
// model skipped.
func NewMemoryExtractionHandler(memories store.MemoryStore) background.Handler {
	return func(ctx context.Context, job background.Job) error {
		var payload MemoryExtractionPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", MemoryExtractionJob, err)
		}
		if payload.UserID == "" || payload.Message == "" {
			return nil
		}

		for _, sentence := range splitSentences(payload.Message) {
			tag, ok := matchCue(sentence)
			if !ok {
				continue
			}
			m := &coach.Memory{
				UserID:    payload.UserID,
				Content:   sentence,
				Tags:      []string{tag, "auto_extracted"},
				CreatedAt: time.Now().UTC(),
			}
			if err := memories.Save(ctx, m); err != nil {
				return fmt.Errorf("save extracted memory: %w", err)
			}
		}
		return nil
	}
}

func matchCue(sentence string) (string, bool) {
	lower := strings.ToLower(sentence)
	for _, cue := range memoryCues {
		if strings.Contains(lower, cue.phrase) {
			return cue.tag, true
		}
	}
	return "", false
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
