package model

// CardHealth is one entry of the health feed. The feed has a lifecycle of
// its own and may be absent or cover only a subset of cards.
type CardHealth struct {
	Status  string `json:"status"`
	Stale   bool   `json:"stale"`
	Message string `json:"message,omitempty"`
}

// Health is the backend health snapshot: an overall status plus optional
// per-card entries keyed by card id.
type Health struct {
	Status string                `json:"status"`
	Cards  map[string]CardHealth `json:"tiles"`
}

// Card returns the health entry for id, or nil if the feed has none.
func (h *Health) Card(id string) *CardHealth {
	if h == nil || h.Cards == nil {
		return nil
	}
	ch, ok := h.Cards[id]
	if !ok {
		return nil
	}
	return &ch
}
