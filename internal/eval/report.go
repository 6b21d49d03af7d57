package eval

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	passColor  = color.New(color.FgGreen, color.Bold)
	failColor  = color.New(color.FgRed, color.Bold)
	errorColor = color.New(color.FgYellow, color.Bold)
	dimColor   = color.New(color.Faint)
)

// statusColor returns the colour a status is printed in.
func statusColor(s Status) *color.Color {
	switch s {
	case StatusPassed:
		return passColor
	case StatusFailed:
		return failColor
	default:
		return errorColor
	}
}

// PrintResult writes one case as it finishes.
func PrintResult(w io.Writer, r Result) {
	label := strings.ToUpper(string(r.Status))
	fmt.Fprintf(w, "%s Q%d: %s\n", statusColor(r.Status).Sprintf("[%s]", label), r.Index, r.Question)

	switch r.Status {
	case StatusErrored:
		fmt.Fprintf(w, "    error: %s\n", r.Error)
	default:
		fmt.Fprintf(w, "    answer: %s\n", truncate(oneLine(r.Answer), 240))
		if len(r.Missing) > 0 {
			fmt.Fprintf(w, "    missing: %s\n", failColor.Sprint(strings.Join(r.Missing, ", ")))
		}
		if len(r.Degraded) > 0 {
			fmt.Fprintf(w, "    degraded: %s\n", dimColor.Sprint(strings.Join(r.Degraded, ", ")))
		}
	}
	fmt.Fprintf(w, "    %s\n", dimColor.Sprintf("%s  trace=%s", r.Duration.Round(time.Millisecond), r.TraceID))
}

// PrintSummary writes the aggregate line and per-metric means.
func PrintSummary(w io.Writer, s *Summary) {
	fmt.Fprintln(w)
	rate := statusColor(StatusPassed)
	if s.Passed < s.Total {
		rate = statusColor(StatusFailed)
	}
	fmt.Fprintf(w, "%s %d/%d passed (%.0f%%), %d failed, %d errored in %s\n",
		rate.Sprint("Summary:"), s.Passed, s.Total, s.PassRate*100, s.Failed, s.Errored, s.Duration.Round(time.Millisecond))

	for _, name := range s.Metrics() {
		fmt.Fprintf(w, "    %-18s %.3f\n", name, s.MeanScores[name])
	}
	if len(s.MeanScores) > 0 {
		fmt.Fprintf(w, "    %-18s %.3f\n", "overall", s.OverallScore)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate truncates a string to a maximum length with ellipsis
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
