// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.23s", FormatDuration(1234567891*time.Nanosecond))
	assert.Equal(t, "12.3ms", FormatDuration(12345678*time.Nanosecond))
	assert.Equal(t, "500ns", FormatDuration(500*time.Nanosecond))
	assert.Equal(t, "2m3s", FormatDuration(2*time.Minute+3*time.Second+400*time.Millisecond))
	assert.Equal(t, "-1.5s", FormatDuration(-1500*time.Millisecond))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "1,500 rows/s", FormatRate(3000, 2*time.Second))
	assert.Equal(t, "- rows/s", FormatRate(10, 0))
}

func TestTable(t *testing.T) {
	table := NewTable([]string{"File", "Rows"}, lipgloss.Left, lipgloss.Right)
	table.AddRow(false, "a.csv", "10")
	table.AddRow(true, "b.csv", "failed")
	assert.Equal(t, 2, table.NumRows())
	rendered := table.Render()
	for _, s := range []string{"File", "Rows", "a.csv", "b.csv", "failed"} {
		assert.Contains(t, rendered, s)
	}
}

func TestRowsProgress(t *testing.T) {
	var nilProgress *RowsProgress
	nilProgress.Add(10)
	nilProgress.Finish()

	var buf bytes.Buffer
	p := NewRowsProgress(&buf, "predicting", 100)
	p.Add(40)
	p.Add(60)
	p.Finish()
	p.Finish()
	p.Add(1)
	out := buf.String()
	require.NotEmpty(t, out)
	assert.Equal(t, 1, strings.Count(out, "100 of 100 rows in"))
}
