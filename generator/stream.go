package generator

import (
	"context"
	"strings"
)

// StreamNotes runs one generation end to end: truncate the diff, build the
// fixed prompt, stream the completion, and re-extract the two fields on
// every fragment. Events arrive in token order; the channel closes after a
// single terminal complete or error event. The orchestrator holds no state
// once the stream ends.
func (a *Agent) StreamNotes(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)

		prompt := BuildNotesPrompt(req.ID, req.Description, TruncateDiff(req.Diff))
		ch <- Event{Type: EventStatus, Message: "generating"}

		// best is threaded explicitly so the never-regress policy stays
		// in one place instead of hiding in captured mutable state.
		var buf strings.Builder
		var best Notes
		full, err := a.llm.CompleteStream(ctx, prompt, func(delta string) error {
			buf.WriteString(delta)
			best = best.Merge(ExtractNotes(buf.String()))
			ch <- Event{
				Type:        EventChunk,
				Text:        delta,
				Accumulated: buf.String(),
				Developer:   best.Developer,
				Marketing:   best.Marketing,
			}
			return nil
		})
		if err != nil {
			ch <- Event{
				Type:      EventError,
				Kind:      ErrorKindUpstream,
				Message:   err.Error(),
				Developer: best.Developer,
				Marketing: best.Marketing,
			}
			return
		}

		final, perr := ParseNotes(full)
		if perr != nil {
			// Never guess notes off a malformed final payload.
			ch <- Event{
				Type:        EventError,
				Kind:        ErrorKindParse,
				Message:     perr.Error(),
				Accumulated: full,
				Developer:   best.Developer,
				Marketing:   best.Marketing,
			}
			return
		}

		ch <- Event{
			Type:        EventComplete,
			Accumulated: full,
			Developer:   final.Developer,
			Marketing:   final.Marketing,
		}
	}()
	return ch
}
