package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/treerun/pkg/predictor"
	"github.com/gomlx/treerun/pkg/unit"
	"github.com/gomlx/treerun/ui/commandline"
	"github.com/pkg/errors"
)

// infoTable renders the summary of the loaded computation unit.
func infoTable(p *predictor.Predictor) string {
	table := commandline.NewTable(nil, lipgloss.Right, lipgloss.Left)
	table.AddRow(false, "path", p.Path())
	groups := p.NumOutputGroup()
	table.AddRow(false, "# output groups", humanize.Comma(int64(groups)))
	callingShape := "single output (predict)"
	if groups > 1 {
		callingShape = "multi-output (predict_multiclass)"
	}
	table.AddRow(false, "calling shape", callingShape)
	table.AddRow(false, "max threads", humanize.Comma(int64(p.MaxThreads())))
	table.AddRow(false, "loaders", strings.Join(unit.List(), ", "))
	return commandline.TitleStyle.Render("Computation Unit") + "\n" + table.Render()
}

// resultsTable renders one row per input file. Failed files are highlighted, skipped files have no
// prediction columns.
func resultsTable(results []*fileResult) string {
	table := commandline.NewTable(
		[]string{"File", "Kind", "Rows", "Columns", "Outputs/Row", "Read", "Predict", "Throughput", "Output"},
		lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Right,
		lipgloss.Right, lipgloss.Right, lipgloss.Right, lipgloss.Left)
	var totalRows uint64
	for _, r := range results {
		if r == nil {
			continue
		}
		if errors.Is(r.err, errSkipped) {
			table.AddRow(false, r.path, r.kind.String(),
				humanize.Comma(int64(r.numRow)), humanize.Comma(int64(r.numCol)), "",
				commandline.FormatDuration(r.readTime), "", "", "skipped")
			continue
		}
		if r.err != nil {
			table.AddRow(true, r.path, "", "", "", "", commandline.FormatDuration(r.readTime), "", "",
				fmt.Sprintf("failed: %v", r.err))
			continue
		}
		totalRows += r.numRow
		table.AddRow(false, r.path, r.kind.String(),
			humanize.Comma(int64(r.numRow)), humanize.Comma(int64(r.numCol)), humanize.Comma(int64(r.width)),
			commandline.FormatDuration(r.readTime), commandline.FormatDuration(r.predictTime),
			commandline.FormatRate(int64(r.numRow), r.predictTime), r.outPath)
	}
	title := fmt.Sprintf("Predictions (%s rows)", humanize.Comma(int64(totalRows)))
	return commandline.TitleStyle.Render(title) + "\n" + table.Render()
}
