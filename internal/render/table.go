package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/okian/contestlens/internal/domain/session"
)

// WriteTable prints v as plain text: status line, summary cards, the
// performance distribution and one line per contest.
func WriteTable(w io.Writer, v View) error {
	switch v.Status {
	case session.StatusIdle:
		_, err := fmt.Fprintln(w, "no handle submitted")
		return err
	case session.StatusLoading:
		_, err := fmt.Fprintf(w, "loading contests for %s...\n", v.Handle)
		return err
	case session.StatusError:
		_, err := fmt.Fprintln(w, v.Message)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if v.Cards != nil {
		fmt.Fprintf(tw, "Handle\t%s\n", v.Handle)
		fmt.Fprintf(tw, "Current Rating\t%d\n", v.Cards.CurrentRating)
		fmt.Fprintf(tw, "Peak Rating\t%d\n", v.Cards.PeakRating)
		fmt.Fprintf(tw, "Total Contests\t%d\n", v.Cards.TotalContests)
		fmt.Fprintf(tw, "Latest Change\t%+d\n", v.Cards.LatestChange)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(v.Distribution) > 0 {
		labels := make([]string, 0, len(v.Distribution))
		for _, b := range v.Distribution {
			labels = append(labels, fmt.Sprintf("%s: %d", b.Label, b.Count))
		}
		if _, err := fmt.Fprintf(w, "\n%s\n\n", strings.Join(labels, "  ")); err != nil {
			return err
		}
	}

	if len(v.Rows) == 0 {
		_, err := fmt.Fprintln(w, "no attended contests")
		return err
	}

	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Contest\tDate\tRank\tSolved\tFinish\tRating Change")
	for _, r := range v.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			sanitizeInline(r.Contest), r.Date, r.Rank, r.Solved, r.Finish, r.Change)
	}
	return tw.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return strings.ReplaceAll(cleaned, "\t", " ")
}
