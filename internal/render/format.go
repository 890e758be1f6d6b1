// Package render turns session state and contest history into the shapes the
// dashboard, the CLI table and the trend chart display.
package render

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/contestlens/internal/domain/model"
)

// DateLayout renders day, short month and year, e.g. "7 Jan 2024".
const DateLayout = "2 Jan 2006"

// Round rounds half up, matching how the dashboard always displayed ratings.
func Round(v float64) int {
	return int(math.Floor(v + 0.5))
}

// FormatDate formats a unix-seconds contest start in UTC.
func FormatDate(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(DateLayout)
}

// FormatFinish formats a finish time as "{m}m {s}s".
func FormatFinish(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// FormatSolved formats solved problems against the contest total.
func FormatSolved(e model.EnrichedEntry) string {
	return fmt.Sprintf("%d / %d", e.ProblemsSolved, e.TotalProblems)
}

// FormatChange formats the rating move of an entry as "1500 → 1600 (+100)".
// The plus sign is shown for every non-negative change.
func FormatChange(e model.EnrichedEntry) string {
	sign := ""
	if e.Improved() {
		sign = "+"
	}
	return fmt.Sprintf("%d → %d (%s%d)", Round(e.PrevRating), Round(e.Rating), sign, Round(e.RatingChange))
}
