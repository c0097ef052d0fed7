package models

// EventType describes a topology change of a world.
type EventType string

const (
	EventTypeCellSplit  EventType = "cell_split"
	EventTypeCellMerged EventType = "cell_merged"
)

// Event is published to world subscribers after each topology change.
// Subscribers receive events in Seq order.
type Event struct {
	Type    EventType `json:"type"`
	WorldID string    `json:"world_id"`

	// Position of the change in the world history, starting at 1.
	Seq uint64 `json:"seq"`

	// IDs of the cells that are no longer leaves.
	Removed []string `json:"removed"`

	// The cells that replaced them.
	Added []*Cell `json:"added"`

	// Depth of the added cells.
	Depth int `json:"depth"`
}
