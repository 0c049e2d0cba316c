// Package stats models per-database activity counters and the
// pipe-delimited line format they travel in.
package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Delimiter separates fields on a stats line.
const Delimiter = "|"

const fieldCount = 7

// ActivityRecord is one database's counters at a point in time.
// Counters only grow while the database lives; a decrease means it was
// reset or recreated.
type ActivityRecord struct {
	Timestamp string
	ID        string
	Name      string
	Commits   int64
	Inserted  int64
	Updated   int64
	Deleted   int64
}

// Snapshot maps database name to its record.
type Snapshot map[string]ActivityRecord

// Names returns the database names in ascending order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LineError describes a stats line that was dropped.
type LineError struct {
	Line   int
	Text   string
	Reason string
	Err    error
}

func (e *LineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stats line %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("stats line %d: %s", e.Line, e.Reason)
}

func (e *LineError) Unwrap() error { return e.Err }

// Parse builds a Snapshot from raw stats lines. Blank lines and lines without
// a name are ignored. Malformed lines are skipped and reported; they never
// abort parsing. A repeated name replaces the earlier record.
func Parse(lines []string) (Snapshot, []*LineError) {
	snap := make(Snapshot, len(lines))
	var bad []*LineError

	for i, raw := range lines {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		fields := strings.Split(raw, Delimiter)
		for j := range fields {
			fields[j] = strings.TrimSpace(fields[j])
		}

		if len(fields) < 3 || fields[2] == "" {
			continue
		}
		if len(fields) != fieldCount {
			bad = append(bad, &LineError{
				Line:   i + 1,
				Text:   raw,
				Reason: fmt.Sprintf("expected %d fields, got %d", fieldCount, len(fields)),
			})
			continue
		}

		var counters [4]int64
		var convErr error
		for k := range counters {
			counters[k], convErr = strconv.ParseInt(fields[3+k], 10, 64)
			if convErr != nil {
				break
			}
		}
		if convErr != nil {
			bad = append(bad, &LineError{Line: i + 1, Text: raw, Reason: "non-integer counter", Err: convErr})
			continue
		}

		snap[fields[2]] = ActivityRecord{
			Timestamp: fields[0],
			ID:        fields[1],
			Name:      fields[2],
			Commits:   counters[0],
			Inserted:  counters[1],
			Updated:   counters[2],
			Deleted:   counters[3],
		}
	}

	return snap, bad
}

// FormatLine renders r in the wire format Parse reads.
func FormatLine(r ActivityRecord) string {
	return strings.Join([]string{
		r.Timestamp,
		r.ID,
		r.Name,
		strconv.FormatInt(r.Commits, 10),
		strconv.FormatInt(r.Inserted, 10),
		strconv.FormatInt(r.Updated, 10),
		strconv.FormatInt(r.Deleted, 10),
	}, Delimiter)
}
