// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"time"
)

// FormatDuration pretty prints duration rounded to about 3 significant digits,
// so "1.234567891s" becomes "1.23s" and "12.345678ms" becomes "12.3ms".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}
	unit := time.Nanosecond
	for unit < time.Hour && d >= 1000*unit {
		unit *= 10
	}
	return d.Round(unit).String()
}
