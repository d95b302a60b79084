package ui

import (
	"testing"

	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

func TestDeriveStatusPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		card   *model.Card
		health *model.CardHealth
		want   Status
	}{
		{"nil card is loading", nil, nil, StatusLoading},
		{
			"nil card takes the health status",
			nil,
			&model.CardHealth{Status: "down"},
			StatusError,
		},
		{
			"nil card takes the health stale flag",
			nil,
			&model.CardHealth{Stale: true, Status: "stale", Message: "y"},
			StatusStale,
		},
		{
			"nil card with a silent health entry is loading",
			nil,
			&model.CardHealth{Message: "no status here"},
			StatusLoading,
		},
		{"plain card is ok", &model.Card{ID: "a"}, nil, StatusOK},
		{
			"card error beats everything",
			&model.Card{ID: "a", Error: "boom", Fields: map[string]any{"status": "ok"}},
			&model.CardHealth{Status: "healthy"},
			StatusError,
		},
		{
			"card status beats health error",
			&model.Card{ID: "a", Fields: map[string]any{"status": "ok"}},
			&model.CardHealth{Status: "unhealthy"},
			StatusOK,
		},
		{
			"card status beats health stale",
			&model.Card{ID: "a", Fields: map[string]any{"status": "ok"}},
			&model.CardHealth{Stale: true},
			StatusOK,
		},
		{
			"health error fills in when the card is silent",
			&model.Card{ID: "a"},
			&model.CardHealth{Status: "unhealthy"},
			StatusError,
		},
		{
			"health stale fills in when the card is silent",
			&model.Card{ID: "a"},
			&model.CardHealth{Stale: true},
			StatusStale,
		},
		{
			"card status field used when health is quiet",
			&model.Card{ID: "a", Fields: map[string]any{"status": "degraded"}},
			&model.CardHealth{Status: "healthy"},
			StatusWarn,
		},
		{
			"unrecognized card status falls through to health",
			&model.Card{ID: "a", Fields: map[string]any{"status": "purple"}},
			&model.CardHealth{Status: "degraded"},
			StatusWarn,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(tc.card, tc.health); got != tc.want {
				t.Errorf("DeriveStatus = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestStatusMessagePrecedence(t *testing.T) {
	withErr := &model.Card{ID: "a", Error: "card says no"}
	health := &model.CardHealth{Status: "down", Message: "health says no"}

	if got := StatusMessage(withErr, health); got != "card says no" {
		t.Errorf("message = %q, card error should win", got)
	}
	if got := StatusMessage(&model.Card{ID: "a"}, health); got != "health says no" {
		t.Errorf("message = %q, health message should fill in", got)
	}
	if got := StatusMessage(nil, health); got != "health says no" {
		t.Errorf("message = %q for nil card", got)
	}
	if got := StatusMessage(&model.Card{ID: "a"}, nil); got != "" {
		t.Errorf("message = %q, want empty", got)
	}
}

func TestNormalizeStatusVocabulary(t *testing.T) {
	cases := map[string]Status{
		"OK":       StatusOK,
		"healthy":  StatusOK,
		" up ":     StatusOK,
		"degraded": StatusWarn,
		"DOWN":     StatusError,
		"failed":   StatusError,
		"stale":    StatusStale,
		"pending":  StatusLoading,
		"???":      StatusUnknown,
		"":         StatusUnknown,
	}
	for raw, want := range cases {
		if got := normalizeStatus(raw); got != want {
			t.Errorf("normalizeStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestStatusRankOrdering(t *testing.T) {
	order := []Status{StatusOK, StatusLoading, StatusUnknown, StatusStale, StatusWarn, StatusError}
	for i := 1; i < len(order); i++ {
		if StatusRank(order[i-1]) >= StatusRank(order[i]) {
			t.Errorf("rank(%s) should be below rank(%s)", order[i-1], order[i])
		}
	}
}
