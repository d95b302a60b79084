package model

import (
	"fmt"
	"strings"
)

// Field requirements per card type. Base fields apply to every card.
var (
	requiredBaseFields = []string{"id", "type"}

	requiredFields = map[CardType][]string{
		CardText:   {"title", "content"},
		CardStatus: {"title", "status"},
		CardInfo:   {"title"},
		CardChart:  {"title", "data"},
		CardMetric: {"title", "value"},
		CardImage:  {"title", "imageUrl"},
	}

	optionalFields = map[CardType][]string{
		CardText:   {"description"},
		CardStatus: {"message"},
		CardInfo:   {"content", "items"},
		CardChart:  {"chartType"},
		CardMetric: {"unit", "description"},
		CardImage:  {"alt", "description"},
	}

	commonStatusValues = []string{
		"online", "offline", "active", "inactive",
		"success", "error", "warning", "pending",
	}
)

// ValidationResult describes how well a card matches the field requirements
// for its type. Errors make the card invalid; warnings are advisory and the
// card still renders.
type ValidationResult struct {
	Valid    bool
	CardType CardType
	Errors   []string
	Warnings []string
	Missing  []string
	Extra    []string
}

func (r *ValidationResult) errorf(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateCard checks a card's structure against the per-type field tables.
// Validation never mutates the card.
func ValidateCard(c *Card) ValidationResult {
	result := ValidationResult{Valid: true}

	if c == nil {
		result.errorf("card is nil")
		return result
	}

	if c.ID == "" {
		result.errorf("missing required base field: id")
		result.Missing = append(result.Missing, "id")
	}
	if c.Type == "" {
		result.errorf("missing required base field: type")
		result.Missing = append(result.Missing, "type")
		return result
	}

	cardType := CardType(strings.ToLower(string(c.Type)))
	result.CardType = cardType

	if !IsKnownCardType(cardType) {
		result.errorf("unknown card type: %s", c.Type)
		return result
	}

	for _, field := range requiredFields[cardType] {
		if !c.hasField(field) {
			result.errorf("missing required field for %s card: %s", cardType, field)
			result.Missing = append(result.Missing, field)
		}
	}

	expected := make(map[string]bool)
	for _, f := range requiredBaseFields {
		expected[f] = true
	}
	expected["title"] = true
	expected["status"] = true
	expected["error"] = true
	for _, f := range requiredFields[cardType] {
		expected[f] = true
	}
	for _, f := range optionalFields[cardType] {
		expected[f] = true
	}
	for f := range c.Fields {
		if !expected[f] && f != "placeholder" {
			result.Extra = append(result.Extra, f)
		}
	}
	if len(result.Extra) > 0 {
		result.warnf("extra fields found: %s", strings.Join(result.Extra, ", "))
	}

	validateContent(c, cardType, &result)
	return result
}

func validateContent(c *Card, cardType CardType, result *ValidationResult) {
	switch cardType {
	case CardText:
		if v, ok := c.Fields["content"]; ok {
			if _, isString := v.(string); !isString {
				result.warnf("text card content should be a string")
			}
		}
	case CardInfo:
		if v, ok := c.Fields["items"]; ok {
			if _, isArray := v.([]any); !isArray {
				result.warnf("info card items should be an array")
			}
		}
	case CardChart:
		if v, ok := c.Fields["data"]; ok {
			arr, isArray := v.([]any)
			if !isArray {
				result.errorf("chart card data must be an array")
				return
			}
			for _, item := range arr {
				if _, isNumber := item.(float64); !isNumber {
					result.warnf("chart data should contain only numbers")
					break
				}
			}
		}
	case CardMetric:
		if v, ok := c.Fields["value"]; ok {
			switch v.(type) {
			case float64, string:
			default:
				result.warnf("metric card value should be a number or string")
			}
		}
	case CardStatus:
		status, _ := c.Fields["status"].(string)
		if status == "" {
			status = c.Status
		}
		if status != "" && !isCommonStatus(status) {
			result.warnf("status %q is not a common status value", status)
		}
	case CardImage:
		if v, ok := c.Fields["imageUrl"]; ok {
			if _, isString := v.(string); !isString {
				result.errorf("image card imageUrl must be a string")
			}
		}
	}
}

func isCommonStatus(s string) bool {
	s = strings.ToLower(s)
	for _, v := range commonStatusValues {
		if s == v {
			return true
		}
	}
	return false
}

func (c *Card) hasField(field string) bool {
	switch field {
	case "id":
		return c.ID != ""
	case "type":
		return c.Type != ""
	case "title":
		return c.Title != ""
	case "status":
		if c.Status != "" {
			return true
		}
	case "error":
		if c.Error != "" {
			return true
		}
	}
	if c.Fields == nil {
		return false
	}
	v, ok := c.Fields[field]
	return ok && v != nil
}
