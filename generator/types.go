package generator

// Notes is the two-field generation output: a technical note for
// changelogs and a user-facing note for announcements.
type Notes struct {
	Developer string `json:"developer"`
	Marketing string `json:"marketing"`
}

// Merge keeps the last known good value per field: a newer extraction
// overwrites only when it is non-empty, so a field never regresses to
// empty on a less informative partial.
func (n Notes) Merge(newer Notes) Notes {
	if newer.Developer != "" {
		n.Developer = newer.Developer
	}
	if newer.Marketing != "" {
		n.Marketing = newer.Marketing
	}
	return n
}

// Request identifies one change to summarize. ID and Description are
// prompt context only; Diff is the payload.
type Request struct {
	ID          string
	Description string
	Diff        string
}

// EventType tags progress events emitted by the streaming orchestrator.
type EventType string

const (
	EventStatus   EventType = "status"
	EventChunk    EventType = "chunk"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Error kinds carried by error events.
const (
	ErrorKindUpstream = "upstream"
	ErrorKindParse    = "parse"
)

// Event is one frame of generation progress. Chunk events carry the raw
// fragment, the full accumulated text, and the best-known field values so
// far; complete events carry the final text and the strictly parsed notes.
type Event struct {
	Type        EventType `json:"type"`
	Message     string    `json:"message,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Text        string    `json:"text,omitempty"`
	Accumulated string    `json:"accumulated,omitempty"`
	Developer   string    `json:"developer,omitempty"`
	Marketing   string    `json:"marketing,omitempty"`
}
