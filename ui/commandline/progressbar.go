package commandline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// RefreshPeriod is the minimum time between terminal updates.
var RefreshPeriod = time.Millisecond * 200

// RowsProgress displays the number of rows predicted so far, out of a known total.
//
// It is safe for concurrent use, and a nil *RowsProgress is a valid no-op progress.
type RowsProgress struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	output  *termenv.Output
	start   time.Time
	total   int64
	done    int64
	writer  io.Writer
	stopped bool
}

// NewRowsProgress creates a progress bar over total rows, written to w.
func NewRowsProgress(w io.Writer, description string, total int64) *RowsProgress {
	p := &RowsProgress{
		output: termenv.NewOutput(w),
		start:  time.Now(),
		total:  total,
		writer: w,
	}
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionThrottle(RefreshPeriod),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionClearOnFinish(),
	)
	p.output.HideCursor()
	return p
}

// Add reports n more rows predicted.
func (p *RowsProgress) Add(n int64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.done += n
	_ = p.bar.Add64(n)
}

// Finish clears the bar, restores the cursor and prints the overall throughput.
// It is idempotent.
func (p *RowsProgress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	_ = p.bar.Finish()
	p.output.ShowCursor()
	elapsed := time.Since(p.start)
	_, _ = fmt.Fprintf(p.writer, "%s of %s rows in %s (%s)\n",
		humanize.Comma(p.done), humanize.Comma(p.total), FormatDuration(elapsed), FormatRate(p.done, elapsed))
}

// FormatRate pretty prints the throughput of n rows in elapsed time.
func FormatRate(n int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "- rows/s"
	}
	rate := float64(n) / elapsed.Seconds()
	return fmt.Sprintf("%s rows/s", humanize.CommafWithDigits(rate, 1))
}
