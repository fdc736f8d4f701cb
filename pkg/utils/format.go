package utils

import (
	"fmt"
	"time"
)

// FormatPeriod renders a report window as a date range,
// e.g. "2026-03-02 - 2026-03-08".
func FormatPeriod(start, end time.Time) string {
	return fmt.Sprintf("%s - %s",
		start.Format("2006-01-02"),
		end.Format("2006-01-02"))
}
