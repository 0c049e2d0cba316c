package stats

import (
	"context"
	"strings"

	"github.com/dev-tams/deltabackup/internal/config"
)

// Query reads the per-database counters in wire field order.
const Query = `SELECT now(), datid, datname, xact_commit, tup_inserted, tup_updated, tup_deleted
FROM pg_stat_database
WHERE datname IS NOT NULL
ORDER BY datname`

// Source produces the current raw stats lines for a cluster.
type Source interface {
	Collect(ctx context.Context, conn config.ConnectionConfig) ([]string, error)
}

// dropExcluded removes lines for system databases. Lines it cannot read are
// kept so Parse can report them.
func dropExcluded(lines []string, exclude []string) []string {
	if len(exclude) == 0 {
		return lines
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}

	out := lines[:0:0]
	for _, l := range lines {
		fields := strings.Split(l, Delimiter)
		if len(fields) >= 3 {
			if _, ok := skip[strings.TrimSpace(fields[2])]; ok {
				continue
			}
		}
		out = append(out, l)
	}
	return out
}
