// internal/service/tracker/compact.go
package tracker

import (
	"sort"

	"github.com/clarahq/clara-backend/internal/entity"
)

// Compact merges adjacent same-domain log entries separated by at most
// MergeGapMS. Malformed entries (end < start) are dropped, the rest are
// sorted by start before the single merge pass. Compact is idempotent:
// Compact(Compact(x)) == Compact(x).
func Compact(logs []entity.LogEntry) []entity.LogEntry {
	if len(logs) <= 1 {
		return logs
	}

	arr := make([]entity.LogEntry, 0, len(logs))
	for _, l := range logs {
		if l.End >= l.Start {
			arr = append(arr, l)
		}
	}
	if len(arr) == 0 {
		return []entity.LogEntry{}
	}
	sort.SliceStable(arr, func(i, j int) bool { return arr[i].Start < arr[j].Start })

	out := make([]entity.LogEntry, 0, len(arr))
	cur := arr[0]
	for _, nxt := range arr[1:] {
		gap := nxt.Start - cur.End
		if nxt.Domain == cur.Domain && gap >= 0 && gap <= MergeGapMS {
			if nxt.End > cur.End {
				cur.End = nxt.End
			}
			continue
		}
		out = append(out, cur)
		cur = nxt
	}
	out = append(out, cur)
	return out
}
