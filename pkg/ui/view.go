package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// tileGroup is the set of tiles sharing one grid rectangle. Profile zones
// can stack several cards into the same area; they split the cell height.
type tileGroup struct {
	col, row   int
	wCells     int
	hCells     int
	tiles      []*Tile
}

// RenderGrid lays the live tiles out on a character grid sized to the
// terminal. Tiles are positioned by their grid rectangle: one terminal cell
// band per grid row, tiles spanning columns proportionally.
func RenderGrid(e *Engine, width, height int, focusID string) string {
	if e.Empty() {
		return RenderEmpty(e.EmptyReason(), width, height)
	}
	grid := e.Grid()
	cols, rows := grid.Columns, grid.Rows
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	cellW := width / cols
	cellH := height / rows
	if cellW < 8 {
		cellW = 8
	}
	if cellH < 3 {
		cellH = 3
	}

	groups := groupTiles(e)

	// Band tiles by starting grid row.
	byRow := make(map[int][]*tileGroup)
	var rowKeys []int
	for _, g := range groups {
		if _, seen := byRow[g.row]; !seen {
			rowKeys = append(rowKeys, g.row)
		}
		byRow[g.row] = append(byRow[g.row], g)
	}
	sort.Ints(rowKeys)

	bands := make([]string, 0, len(rowKeys))
	for _, rowKey := range rowKeys {
		band := byRow[rowKey]
		sort.Slice(band, func(i, j int) bool { return band[i].col < band[j].col })

		rendered := make([]string, 0, len(band))
		for _, g := range band {
			rendered = append(rendered, renderGroup(g, cellW, cellH, focusID))
		}
		bands = append(bands, lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, bands...)
}

func groupTiles(e *Engine) []*tileGroup {
	index := make(map[[2]int]*tileGroup)
	var out []*tileGroup
	for _, tile := range e.Tiles() {
		col, row, colSpan, rowSpan := tile.Placement.Rect(e.Grid())
		key := [2]int{col, row}
		g, ok := index[key]
		if !ok {
			g = &tileGroup{col: col, row: row, wCells: colSpan, hCells: rowSpan}
			index[key] = g
			out = append(out, g)
		}
		g.tiles = append(g.tiles, tile)
		if colSpan > g.wCells {
			g.wCells = colSpan
		}
		if rowSpan > g.hCells {
			g.hCells = rowSpan
		}
	}
	return out
}

func renderGroup(g *tileGroup, cellW, cellH int, focusID string) string {
	w := g.wCells * cellW
	h := g.hCells * cellH
	share := h / len(g.tiles)
	if share < 3 {
		share = 3
	}

	parts := make([]string, 0, len(g.tiles))
	for _, tile := range g.tiles {
		parts = append(parts, renderTile(tile, w, share, tile.ID == focusID))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderTile draws one tile: border, title line with status badge, body.
func renderTile(t *Tile, w, h int, focused bool) string {
	style := TileStyle
	if t.Status == StatusError {
		style = ErrorTileStyle
	}
	if focused {
		style = FocusedTileStyle
	}

	innerW := w - 2 // border
	if innerW < 4 {
		innerW = 4
	}
	innerH := h - 2
	if innerH < 1 {
		innerH = 1
	}

	badge := RenderStatusBadge(t.Status)
	if t.FromCache {
		badge += " " + RenderCacheBadge()
	}
	badgeW := lipgloss.Width(badge)
	title := TileTitleStyle.Render(truncate(t.Title, innerW-badgeW-1))
	gap := innerW - lipgloss.Width(title) - badgeW
	if gap < 1 {
		gap = 1
	}
	header := title + strings.Repeat(" ", gap) + badge

	bodyH := innerH - 1

	// A non-ok status with a message gets one line under the header, as the
	// original shows the message on the status badge.
	statusLine := ""
	if t.Message != "" && t.Status != StatusOK && t.Status != StatusLoading {
		color := ColorWarning
		if t.Status == StatusError {
			color = ColorDanger
		}
		statusLine = lipgloss.NewStyle().Foreground(color).Render(truncate(t.Message, innerW))
		bodyH--
	}

	var body string
	if bodyH > 0 {
		body = RenderCardBody(t.Card, innerW, bodyH)
	}

	content := header
	if statusLine != "" {
		content += "\n" + statusLine
	}
	if body != "" {
		content += "\n" + body
	}
	return style.Width(innerW).Height(innerH).Render(content)
}

// RenderEmpty fills the viewport with a centered explanation of why there
// is nothing to show.
func RenderEmpty(reason string, width, height int) string {
	if reason == "" {
		reason = "nothing to display"
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		StatusLineStyle.Render(reason))
}
