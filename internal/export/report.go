package export

import (
	"fmt"
	"strings"

	"kayakcast/internal/models"
)

const maxReportWindows = 10

// Recommendations renders the ranked windows as a human-readable report,
// grouped by day. The input is assumed best-first (store ordering).
func Recommendations(windows []models.Window) string {
	if len(windows) == 0 {
		return "No optimal kayaking windows found in the forecast.\n"
	}

	var b strings.Builder
	b.WriteString("KAYAK FORECAST RECOMMENDATIONS\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")

	if len(windows) > maxReportWindows {
		windows = windows[:maxReportWindows]
	}

	// Group by day, preserving rank order within each day.
	type dayGroup struct {
		label   string
		windows []models.Window
	}
	var days []dayGroup
	byDay := make(map[string]int)
	for _, w := range windows {
		day := w.StartTime.Format("Monday, January 2")
		idx, seen := byDay[day]
		if !seen {
			byDay[day] = len(days)
			days = append(days, dayGroup{label: day})
			idx = len(days) - 1
		}
		days[idx].windows = append(days[idx].windows, w)
	}

	for _, day := range days {
		fmt.Fprintf(&b, "\n%s\n", day.label)
		b.WriteString(strings.Repeat("-", 30) + "\n")

		for _, w := range day.windows {
			fmt.Fprintf(&b, "Score: %.1f/100\n", w.AvgScore)
			fmt.Fprintf(&b, "Time: %s - %s (%dh)\n",
				w.StartTime.Format("03:04 PM"), w.EndTime.Format("03:04 PM"), w.DurationHours)
			fmt.Fprintf(&b, "Site: %s\n", w.SiteName)
			fmt.Fprintf(&b, "Discharge: %.1f cfs\n", w.AvgDischarge)
			fmt.Fprintf(&b, "Gage: %.2f ft\n\n", w.AvgGage)
		}
	}

	return b.String()
}
