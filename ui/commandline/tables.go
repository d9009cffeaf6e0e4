// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline holds helpers to report progress and results on a terminal:
// lipgloss tables, a rows progress bar and duration formatting.
package commandline

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	redRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)

	// TitleStyle for section titles printed before tables.
	TitleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// Table is a lipgloss table with alternating row styles, where individual rows can be
// highlighted in red (e.g. files that failed).
type Table struct {
	*lgtable.Table
	count int
	reds  map[int]bool
}

// NewTable creates a Table. If headers are given, they are rendered as the header row.
// alignments are per column, with the last one repeated for the remaining columns.
func NewTable(headers []string, alignments ...lipgloss.Position) *Table {
	t := &Table{reds: make(map[int]bool)}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				s = headerRowStyle
				return
			}
			if t.reds[row] {
				s = redRowStyle
			} else if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			s = s.Align(alignment)
			return
		})
	if len(headers) > 0 {
		t.Table.Headers(headers...)
	}
	return t
}

// AddRow appends a row. If isRed the row is highlighted.
func (t *Table) AddRow(isRed bool, row ...string) {
	if isRed {
		t.reds[t.count] = true
	}
	t.Table.Row(row...)
	t.count++
}

// NumRows returns the number of rows added, not counting the header.
func (t *Table) NumRows() int { return t.count }
