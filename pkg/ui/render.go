package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/stat"

	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

// presenter renders a card's body into at most height lines of at most
// width cells. Tile chrome (border, title, badges) is added by the caller.
type presenter func(card *model.Card, width, height int) string

var presenters = map[model.CardType]presenter{
	model.CardClock:    renderClock,
	model.CardWeather:  renderWeather,
	model.CardTasks:    renderTasks,
	model.CardCalendar: renderCalendar,
	model.CardTransit:  renderTransit,
	model.CardText:     renderText,
	model.CardStatus:   renderStatusCard,
	model.CardInfo:     renderInfo,
	model.CardChart:    renderChart,
	model.CardMetric:   renderMetric,
	model.CardImage:    renderImage,
}

// RenderCardBody dispatches to the card type's presenter. A panicking
// presenter is recovered and the card falls back to a raw field dump, so
// one malformed payload can never take down the frame.
func RenderCardBody(card *model.Card, width, height int) (body string) {
	if card == nil {
		return "loading…"
	}
	p, ok := presenters[card.Type]
	if !ok {
		return renderFallback(card, width, height)
	}

	var warn string
	if res := model.ValidateCard(card); len(res.Errors) > 0 {
		warn = lipgloss.NewStyle().Foreground(ColorWarning).Render("⚠ " + res.Errors[0])
	}

	defer func() {
		if r := recover(); r != nil {
			debug.Log("presenter panic for %s (%s): %v", card.ID, card.Type, r)
			body = renderFallback(card, width, height)
		}
	}()
	body = p(card, width, height)
	if warn != "" {
		body = joinClamped(append([]string{warn}, strings.Split(body, "\n")...), width, height)
	}
	return body
}

func renderClock(card *model.Card, width, height int) string {
	format := card.String("format")
	if format == "" {
		format = "15:04"
	}
	now := time.Now()
	if tz := card.String("timezone"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			now = now.In(loc)
		}
	}
	lines := []string{now.Format(format)}
	if height > 1 {
		lines = append(lines, TileBodyStyle.Render(now.Format("Mon Jan 2")))
	}
	return joinClamped(lines, width, height)
}

func renderWeather(card *model.Card, width, height int) string {
	var lines []string
	if temp, ok := card.Number("temperature"); ok {
		unit := card.String("unit")
		if unit == "" {
			unit = "°C"
		}
		lines = append(lines, fmt.Sprintf("%.0f%s", temp, unit))
	}
	if cond := card.String("condition"); cond != "" {
		lines = append(lines, cond)
	}
	if loc := card.String("location"); loc != "" {
		lines = append(lines, TileBodyStyle.Render(loc))
	}
	if len(lines) == 0 {
		return renderFallback(card, width, height)
	}
	return joinClamped(lines, width, height)
}

func renderTasks(card *model.Card, width, height int) string {
	items := card.Slice("items")
	if len(items) == 0 {
		return TileBodyStyle.Render("no tasks")
	}
	var lines []string
	done := 0
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title, _ := item["title"].(string)
		if title == "" {
			title, _ = item["text"].(string)
		}
		checked, _ := item["done"].(bool)
		box := "☐"
		if checked {
			box = "☑"
			done++
		}
		lines = append(lines, box+" "+title)
	}
	if height > 1 && len(items) > height-1 {
		lines = lines[:height-1]
		lines = append(lines, TileBodyStyle.Render(fmt.Sprintf("%d/%d done", done, len(items))))
	}
	return joinClamped(lines, width, height)
}

func renderCalendar(card *model.Card, width, height int) string {
	events := card.Slice("events")
	if len(events) == 0 {
		return TileBodyStyle.Render("no events")
	}
	var lines []string
	for _, raw := range events {
		event, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title, _ := event["title"].(string)
		when := ""
		if start, ok := model.ParseTimestamp(event["start"]); ok {
			when = start.Format("15:04") + " "
		}
		lines = append(lines, when+title)
	}
	return joinClamped(lines, width, height)
}

func renderTransit(card *model.Card, width, height int) string {
	departures := card.Slice("departures")
	if len(departures) == 0 {
		return TileBodyStyle.Render("no departures")
	}
	var lines []string
	for _, raw := range departures {
		dep, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		line, _ := dep["line"].(string)
		dest, _ := dep["destination"].(string)
		entry := line
		if dest != "" {
			entry += " → " + dest
		}
		if mins, ok := dep["minutes"].(float64); ok {
			entry += fmt.Sprintf(" %dm", int(mins))
		}
		lines = append(lines, entry)
	}
	return joinClamped(lines, width, height)
}

func renderText(card *model.Card, width, height int) string {
	content := card.String("content")
	if content == "" {
		return ""
	}
	rendered, err := glamour.Render(content, "auto")
	if err != nil {
		debug.Log("glamour render failed for %s: %v", card.ID, err)
		rendered = content
	}
	return strings.Join(clampLines(strings.TrimSpace(rendered), width, height), "\n")
}

func renderStatusCard(card *model.Card, width, height int) string {
	lines := []string{RenderStatusBadge(normalizeStatus(card.String("status")))}
	if msg := card.String("message"); msg != "" {
		lines = append(lines, msg)
	}
	return joinClamped(lines, width, height)
}

func renderInfo(card *model.Card, width, height int) string {
	items := card.Slice("items")
	if len(items) == 0 {
		return renderFallback(card, width, height)
	}
	var lines []string
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		label, _ := item["label"].(string)
		value := fmt.Sprintf("%v", item["value"])
		lines = append(lines, TileBodyStyle.Render(label+": ")+value)
	}
	return joinClamped(lines, width, height)
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// renderChart draws a sparkline with a summary line underneath.
func renderChart(card *model.Card, width, height int) string {
	data := card.Numbers("data")
	if len(data) == 0 {
		return TileBodyStyle.Render("no data")
	}

	min, max := data[0], data[0]
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	points := data
	if width > 0 && len(points) > width {
		points = points[len(points)-width:]
	}
	var spark strings.Builder
	span := max - min
	for _, v := range points {
		idx := 0
		if span > 0 {
			idx = int((v - min) / span * float64(len(sparkRunes)-1))
		}
		spark.WriteRune(sparkRunes[idx])
	}

	lines := []string{spark.String()}
	if height > 1 {
		mean := stat.Mean(data, nil)
		lines = append(lines, TileBodyStyle.Render(
			fmt.Sprintf("min %.1f  avg %.1f  max %.1f", min, mean, max)))
	}
	if height > 2 && len(data) > 1 {
		sigma := stat.StdDev(data, nil)
		lines = append(lines, TileBodyStyle.Render(fmt.Sprintf("σ %.1f  n %d", sigma, len(data))))
	}
	return joinClamped(lines, width, height)
}

func renderMetric(card *model.Card, width, height int) string {
	value := card.String("value")
	if value == "" {
		if n, ok := card.Number("value"); ok {
			value = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", n), "0"), ".")
		}
	}
	if unit := card.String("unit"); unit != "" {
		value += " " + unit
	}
	lines := []string{value}
	if delta, ok := card.Number("delta"); ok && height > 1 {
		arrow := "▲"
		color := ColorSuccess
		if delta < 0 {
			arrow = "▼"
			color = ColorDanger
		}
		deltaStyle := lipgloss.NewStyle().Foreground(color)
		lines = append(lines, deltaStyle.Render(fmt.Sprintf("%s %.1f", arrow, delta)))
	}
	if label := card.String("label"); label != "" && height > len(lines) {
		lines = append(lines, TileBodyStyle.Render(label))
	}
	return joinClamped(lines, width, height)
}

// renderImage cannot paint pixels in a terminal; show the reference.
func renderImage(card *model.Card, width, height int) string {
	var lines []string
	if alt := card.String("alt"); alt != "" {
		lines = append(lines, alt)
	}
	if u := card.String("imageUrl"); u != "" {
		lines = append(lines, TileBodyStyle.Render(u))
	}
	if len(lines) == 0 {
		return TileBodyStyle.Render("no image")
	}
	return joinClamped(lines, width, height)
}

// renderFallback dumps the card's fields as sorted key: value lines. Used
// for unknown types and as the recovery path when a presenter panics.
func renderFallback(card *model.Card, width, height int) string {
	if len(card.Fields) == 0 {
		return TileBodyStyle.Render(string(card.Type))
	}
	keys := make([]string, 0, len(card.Fields))
	keyW := 0
	for k := range card.Fields {
		keys = append(keys, k)
		if len(k) > keyW {
			keyW = len(k)
		}
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		v := card.Fields[k]
		var rendered string
		switch v.(type) {
		case string, float64, bool, nil:
			rendered = fmt.Sprintf("%v", v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				rendered = fmt.Sprintf("%v", v)
			} else {
				rendered = string(b)
			}
		}
		lines = append(lines, TileBodyStyle.Render(padRight(k+":", keyW+2))+rendered)
	}
	return joinClamped(lines, width, height)
}

func joinClamped(lines []string, width, height int) string {
	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	for i, line := range lines {
		lines[i] = truncate(line, width)
	}
	return strings.Join(lines, "\n")
}
