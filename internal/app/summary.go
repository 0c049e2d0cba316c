package app

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/dev-tams/deltabackup/internal/detect"
)

// colorEnabled reports whether w is a terminal that should get colour.
func colorEnabled(w io.Writer) bool {
	if color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type palette struct {
	ok, skip, fail func(a ...interface{}) string
}

func newPalette(w io.Writer) palette {
	if !colorEnabled(w) {
		plain := fmt.Sprint
		return palette{ok: plain, skip: plain, fail: plain}
	}
	return colourPalette()
}

// colourPalette always emits escapes; the caller has already decided the
// output is a terminal.
func colourPalette() palette {
	paint := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		c.EnableColor()
		return c.SprintFunc()
	}
	return palette{
		ok:   paint(color.FgGreen),
		skip: paint(color.FgYellow),
		fail: paint(color.FgRed, color.Bold),
	}
}

// tableRow is one aligned line whose first cell is a status word.
type tableRow struct {
	status string
	paint  func(a ...interface{}) string
	cells  []string
}

// writeTable aligns rows as plain text and colours the status afterwards,
// so escape sequences never count towards column widths.
func writeTable(w io.Writer, indent string, rows []tableRow) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s%s\t%s\n", indent, r.status, strings.Join(r.cells, "\t"))
	}
	_ = tw.Flush()

	lines := strings.SplitAfter(buf.String(), "\n")
	for i, r := range rows {
		rest := strings.TrimPrefix(lines[i], indent+r.status)
		fmt.Fprint(w, indent+r.paint(r.status)+rest)
	}
}

// PrintSummary writes one line per target followed by the skipped databases.
func PrintSummary(w io.Writer, rep Report) {
	printSummary(w, newPalette(w), rep)
}

func printSummary(w io.Writer, p palette, rep Report) {
	fmt.Fprintf(w, "run %s (%s)\n", rep.RunID, rep.Duration.Round(time.Millisecond))

	rows := make([]tableRow, 0, len(rep.Results)+len(rep.Skipped))
	for _, res := range rep.Results {
		if res.Err != nil {
			rows = append(rows, tableRow{"FAIL", p.fail, []string{res.Target.Label(), res.Err.Error()}})
			continue
		}
		rows = append(rows, tableRow{"OK", p.ok, []string{res.Target.Label(), res.Dest, humanBytes(res.Bytes)}})
	}
	for _, name := range rep.Skipped {
		rows = append(rows, tableRow{"SKIP", p.skip, []string{name, "unchanged"}})
	}
	writeTable(w, "  ", rows)

	failed := len(rep.Failed())
	status := p.ok("ok")
	if failed > 0 {
		status = p.fail(fmt.Sprintf("%d failed", failed))
	}
	if !rep.SnapshotSaved {
		status += ", " + p.fail("snapshot not saved")
	}
	fmt.Fprintf(w, "%d dumped, %d skipped, %s\n", len(rep.Results)-failed, len(rep.Skipped), status)
}

// PrintPlan writes one line per decision.
func PrintPlan(w io.Writer, decisions []detect.Decision) {
	p := newPalette(w)
	rows := make([]tableRow, 0, len(decisions))
	for _, d := range decisions {
		r := tableRow{"skip", p.skip, []string{d.Name, string(d.Reason)}}
		if d.Backup {
			r.status, r.paint = "backup", p.ok
		}
		rows = append(rows, r)
	}
	writeTable(w, "", rows)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
