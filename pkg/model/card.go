// Package model defines the dashboard data model: cards (the addressable
// tiles with stable identity), layouts, zones, profiles, and health feeds.
package model

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// CardType enumerates the known card kinds. Unknown types are preserved
// as-is so the renderer can fall back to a raw dump instead of failing.
type CardType string

const (
	CardClock    CardType = "clock"
	CardWeather  CardType = "weather"
	CardTasks    CardType = "tasks"
	CardCalendar CardType = "calendar"
	CardTransit  CardType = "transit"
	CardText     CardType = "text"
	CardStatus   CardType = "status"
	CardInfo     CardType = "info"
	CardChart    CardType = "chart"
	CardMetric   CardType = "metric"
	CardImage    CardType = "image"
)

// KnownCardTypes lists every card type with a dedicated renderer.
func KnownCardTypes() []CardType {
	return []CardType{
		CardClock, CardWeather, CardTasks, CardCalendar, CardTransit,
		CardText, CardStatus, CardInfo, CardChart, CardMetric, CardImage,
	}
}

// IsKnownCardType reports whether t has a dedicated renderer.
func IsKnownCardType(t CardType) bool {
	for _, k := range KnownCardTypes() {
		if k == t {
			return true
		}
	}
	return false
}

// Card is a single dashboard entity. Identity is the stable ID; everything
// else may change between polls. Type-specific payload fields live in
// Fields so renderers can pick out what they need and the fallback renderer
// can dump whatever arrived.
type Card struct {
	ID     string
	Type   CardType
	Title  string
	Status string
	Error  string
	Fields map[string]any

	// Raw preserves the wire payload for the fallback renderer and yank.
	Raw []byte
}

type cardEnvelope struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Title  string          `json:"title"`
	Status string          `json:"status"`
	Error  json.RawMessage `json:"error"`
}

// UnmarshalJSON decodes a card, tolerating the two error shapes the backend
// emits (a bare string or {"message": ...}) and keeping unknown fields.
func (c *Card) UnmarshalJSON(data []byte) error {
	var env cardEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, known := range []string{"id", "type", "title", "status", "error"} {
		delete(fields, known)
	}

	c.ID = env.ID
	c.Type = CardType(env.Type)
	c.Title = env.Title
	c.Status = env.Status
	c.Error = decodeErrorField(env.Error)
	c.Fields = fields
	c.Raw = append([]byte(nil), data...)
	return nil
}

// MarshalJSON re-assembles the flat wire shape from the known fields plus
// the preserved payload fields.
func (c Card) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Fields)+5)
	for k, v := range c.Fields {
		out[k] = v
	}
	if c.ID != "" {
		out["id"] = c.ID
	}
	if c.Type != "" {
		out["type"] = string(c.Type)
	}
	if c.Title != "" {
		out["title"] = c.Title
	}
	if c.Status != "" {
		out["status"] = c.Status
	}
	if c.Error != "" {
		out["error"] = c.Error
	}
	return json.Marshal(out)
}

func decodeErrorField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return string(raw)
}

// String returns a plain string payload field, or "" if absent.
func (c *Card) String(field string) string {
	if c == nil || c.Fields == nil {
		return ""
	}
	s, _ := c.Fields[field].(string)
	return s
}

// Number returns a numeric payload field. JSON numbers always decode as
// float64 through the generic path.
func (c *Card) Number(field string) (float64, bool) {
	if c == nil || c.Fields == nil {
		return 0, false
	}
	f, ok := c.Fields[field].(float64)
	return f, ok
}

// Slice returns an array payload field, or nil if absent.
func (c *Card) Slice(field string) []any {
	if c == nil || c.Fields == nil {
		return nil
	}
	s, _ := c.Fields[field].([]any)
	return s
}

// Numbers returns a payload field as a float64 slice, dropping entries that
// are not numbers.
func (c *Card) Numbers(field string) []float64 {
	raw := c.Slice(field)
	if raw == nil {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Time parses a payload field as a timestamp. RFC 3339 strings and unix
// millisecond numbers are both accepted.
func (c *Card) Time(field string) (time.Time, bool) {
	if c == nil || c.Fields == nil {
		return time.Time{}, false
	}
	return ParseTimestamp(c.Fields[field])
}

// ParseTimestamp converts a decoded JSON value into a time.Time. The backend
// is inconsistent about timestamps: some feeds send RFC 3339 strings, some
// send unix milliseconds.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, true
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, true
		}
		return time.Time{}, false
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)), true
	default:
		return time.Time{}, false
	}
}

// PlaceholderCard builds the substitute card shown when a referenced card
// could not be fetched.
func PlaceholderCard(id string, cause error) *Card {
	content := fmt.Sprintf("Card %q could not be loaded.", id)
	if cause != nil {
		content = fmt.Sprintf("Card %q could not be loaded: %v", id, cause)
	}
	c := &Card{
		ID:     id,
		Type:   CardText,
		Title:  "Missing",
		Fields: map[string]any{"content": content, "placeholder": true},
	}
	c.Raw, _ = json.Marshal(c)
	return c
}

// IsPlaceholder reports whether the card was synthesized for an
// unresolvable reference.
func (c *Card) IsPlaceholder() bool {
	if c == nil || c.Fields == nil {
		return false
	}
	b, _ := c.Fields["placeholder"].(bool)
	return b
}
