package worldstate

import "github.com/conscious-bot/reflexcore/internal/collab"

// Position is the bot's location in world coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sample is a snapshot of the external agent's state. Every field is a
// pointer or nil-able slice: a nil field means "unknown", never zero-valued.
// Consumers that depend on a field must treat its absence as fail-closed
// "do not act", per spec §3.1. JSON tags let a Sample be decoded directly
// off a streaming feed (see worldstate.Streamer).
type Sample struct {
	Position       *Position              `json:"position,omitempty"`
	Health         *float64               `json:"health,omitempty"` // 0-20
	Food           *int                   `json:"food,omitempty"`   // 0-20
	Inventory      []collab.InventoryItem `json:"inventory,omitempty"`
	TimeOfDay      *int                   `json:"timeOfDay,omitempty"` // game tick
	Biome          *string                `json:"biome,omitempty"`
	NearbyHostiles *int                   `json:"nearbyHostiles,omitempty"`
	NearbyPassives *int                   `json:"nearbyPassives,omitempty"`
}

// NightStart and NightEnd bound the Minecraft night window in game ticks.
const (
	NightStart = 12542
	NightEnd   = 23460
)

// IsNight reports whether t falls in the night window. Callers must check
// TimeOfDay for nil before calling.
func IsNight(t int) bool {
	return t >= NightStart && t <= NightEnd
}
