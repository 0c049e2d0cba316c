// Package detect decides which databases changed since the last snapshot.
package detect

import "github.com/dev-tams/deltabackup/internal/stats"

type Reason string

const (
	ReasonForced    Reason = "forced"
	ReasonNew       Reason = "new"
	ReasonChanged   Reason = "changed"
	ReasonReset     Reason = "reset"
	ReasonUnchanged Reason = "unchanged"
	ReasonGone      Reason = "gone"
)

// Decision is the verdict for one database.
type Decision struct {
	Name   string
	Backup bool
	Reason Reason
}

// NeedsBackup reports whether name should be dumped this run.
//
// Only the row counters (inserted, updated, deleted) count as change.
// Commits are ignored on purpose: vacuum and read-only transactions bump
// xact_commit without touching any data.
func NeedsBackup(previous, current stats.Snapshot, name string, forceAll bool) (bool, Reason) {
	if forceAll {
		return true, ReasonForced
	}
	prev, ok := previous[name]
	if !ok {
		return true, ReasonNew
	}
	cur, ok := current[name]
	if !ok {
		return false, ReasonGone
	}

	if cur.Inserted < prev.Inserted || cur.Updated < prev.Updated || cur.Deleted < prev.Deleted {
		return true, ReasonReset
	}
	if cur.Inserted != prev.Inserted || cur.Updated != prev.Updated || cur.Deleted != prev.Deleted {
		return true, ReasonChanged
	}
	return false, ReasonUnchanged
}

// Plan evaluates every database in current, in name order.
func Plan(previous, current stats.Snapshot, forceAll bool) []Decision {
	names := current.Names()
	out := make([]Decision, 0, len(names))
	for _, n := range names {
		backup, reason := NeedsBackup(previous, current, n, forceAll)
		out = append(out, Decision{Name: n, Backup: backup, Reason: reason})
	}
	return out
}
