package dashboard

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/glebk/status-board/internal/domain"
)

const EmptyBoard = "No one here yet."

// TimeAgo formats the distance between t and now the way the board shows it
func TimeAgo(t, now time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)
	switch {
	case seconds < 10:
		return "just now"
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	default:
		return fmt.Sprintf("%dd ago", seconds/86400)
	}
}

// StatusLabel is the text shown for a status; an empty status renders as a dash
func StatusLabel(s domain.Status) string {
	if s == "" {
		return "-"
	}
	return string(s)
}

// Render writes snap as an aligned Name / Status / Updated table. The row
// matching snap.Me is marked "(you)".
func Render(w io.Writer, snap Snapshot, now time.Time) error {
	if len(snap.People) == 0 {
		_, err := fmt.Fprintln(w, EmptyBoard)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tUPDATED")
	for _, p := range snap.People {
		name := p.Name
		if snap.Me != "" && p.Name == snap.Me {
			name += " (you)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, StatusLabel(p.Status), TimeAgo(p.UpdatedAt, now))
	}
	return tw.Flush()
}
