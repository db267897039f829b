package types

// Event is a structured state-change notification surfaced to subscribers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
