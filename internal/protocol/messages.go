package protocol

import "seedsift.ai/internal/filter"

// SUBSCRIBE (observer -> searcher). May be re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Goals restricts HIT messages to worlds that satisfied at least one
	// of these goals. Empty means every hit.
	Goals []string `json:"goals,omitempty"`
	// Progress enables periodic PROGRESS messages.
	Progress bool `json:"progress,omitempty"`
}

// WELCOME (searcher -> observer)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	SearchID        string `json:"search_id"`
	WorldType       string `json:"world_type"`
	Query           string `json:"query,omitempty"`
}

// HIT (searcher -> observer): one matching world.
type HitMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	SearchID        string    `json:"search_id"`
	Seed            int64     `json:"seed"`
	WorldType       string    `json:"world_type"`
	Goals           []string  `json:"goals"`
	Items           []HitItem `json:"items"`
}

type HitItem struct {
	X          int64    `json:"x"`
	Z          int64    `json:"z"`
	Biome      string   `json:"biome,omitempty"`
	Structures []string `json:"structures,omitempty"`
	Goal       string   `json:"goal,omitempty"`
}

// PROGRESS (searcher -> observer)
type ProgressMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SearchID        string `json:"search_id"`
	Searched        uint64 `json:"searched"`
	Matched         uint64 `json:"matched"`
	Skipped         uint64 `json:"skipped"`
	Done            bool   `json:"done,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

// NewHit flattens a world result into a HIT message.
func NewHit(searchID string, wr *filter.WorldFilterResult) HitMsg {
	msg := HitMsg{
		Type:            TypeHit,
		ProtocolVersion: Version,
		SearchID:        searchID,
		Seed:            wr.Options.Seed,
		WorldType:       wr.Options.WorldType,
		Goals:           wr.Goals(),
		Items:           []HitItem{},
	}
	for _, p := range wr.SortedItems() {
		it := HitItem{X: p.Pos.X, Z: p.Pos.Y, Goal: p.Item.Goal}
		if p.Item.Biome != nil {
			it.Biome = p.Item.Biome.Name()
		}
		for _, st := range p.Item.Structures() {
			it.Structures = append(it.Structures, st.Name())
		}
		msg.Items = append(msg.Items, it)
	}
	return msg
}

// WantsHit reports whether a subscriber filtering on goals wants hit.
func (s SubscribeMsg) WantsHit(hit HitMsg) bool {
	if len(s.Goals) == 0 {
		return true
	}
	for _, want := range s.Goals {
		for _, got := range hit.Goals {
			if want == got {
				return true
			}
		}
	}
	return false
}
