package ui

import (
	"strings"

	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

// Status is the derived display status of a tile.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarn    Status = "warn"
	StatusError   Status = "error"
	StatusStale   Status = "stale"
	StatusLoading Status = "loading"
	StatusUnknown Status = "unknown"
)

// DeriveStatus folds a card's own fields and the health snapshot into one
// display status. Precedence, highest first:
//
//  1. an error embedded in the card payload
//  2. a recognized status field on the card itself
//  3. the health snapshot (its status, or its stale flag)
//
// The card's own data always outranks the health feed; health only speaks
// when the card is silent. A nil card with no usable health entry is
// loading.
func DeriveStatus(card *model.Card, health *model.CardHealth) Status {
	if card == nil {
		if s := fromHealth(health); s != StatusUnknown {
			return s
		}
		return StatusLoading
	}
	if card.Error != "" {
		return StatusError
	}
	if s := card.String("status"); s != "" {
		if norm := normalizeStatus(s); norm != StatusUnknown {
			return norm
		}
	}
	if s := fromHealth(health); s != StatusUnknown {
		return s
	}
	return StatusOK
}

// fromHealth derives a status from the health entry alone. The stale flag
// outranks everything but an error-grade status.
func fromHealth(health *model.CardHealth) Status {
	if health == nil {
		return StatusUnknown
	}
	norm := normalizeStatus(health.Status)
	if norm == StatusError {
		return StatusError
	}
	if health.Stale || norm == StatusStale {
		return StatusStale
	}
	return norm
}

// StatusMessage picks the text shown alongside a non-ok status. The card's
// own error message wins over the health feed's.
func StatusMessage(card *model.Card, health *model.CardHealth) string {
	if card != nil && card.Error != "" {
		return card.Error
	}
	if health != nil && health.Message != "" {
		return health.Message
	}
	return ""
}

// normalizeStatus maps the status vocabulary different backends use onto
// the display statuses.
func normalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ok", "healthy", "up", "good", "online", "active", "success":
		return StatusOK
	case "warn", "warning", "degraded", "slow":
		return StatusWarn
	case "error", "err", "down", "critical", "unhealthy", "failed", "offline":
		return StatusError
	case "stale":
		return StatusStale
	case "loading", "pending":
		return StatusLoading
	default:
		return StatusUnknown
	}
}

// StatusRank orders statuses by severity for aggregation; higher is worse.
func StatusRank(s Status) int {
	switch s {
	case StatusOK:
		return 0
	case StatusLoading:
		return 1
	case StatusUnknown:
		return 2
	case StatusStale:
		return 3
	case StatusWarn:
		return 4
	case StatusError:
		return 5
	default:
		return 2
	}
}
