// Package diagnostics reports on the state of a request cache for manual
// verification. Nothing here is on the request path.
package diagnostics

import (
	"fmt"
	"strings"
	"time"

	"github.com/saiset-co/estate-client/api"
	"github.com/saiset-co/estate-client/cache"
)

// Inspectable is the read-only view of a cache that Inspect needs.
type Inspectable interface {
	Name() string
	TTL() time.Duration
	Inspect(key string) (cache.EntryInfo, bool)
	Pending() int
	Len() int
}

type KeyReport struct {
	Key     string `json:"key"`
	Present bool   `json:"present"`
	// Expired entries stay Present until the next read drops them.
	Expired   bool          `json:"expired"`
	Items     int           `json:"items"`
	Remaining time.Duration `json:"remaining"`
}

type Report struct {
	Bucket  string        `json:"bucket"`
	TTL     time.Duration `json:"ttl"`
	Entries []KeyReport   `json:"entries"`
	Pending int           `json:"pending"`
	Size    int           `json:"size"`
}

// Inspect reports, for each key, whether it is stored, how many list items it
// holds and how long it has left. It does not touch the network or expire
// entries.
func Inspect(c Inspectable, keys []string) Report {
	report := Report{
		Bucket:  c.Name(),
		TTL:     c.TTL(),
		Entries: make([]KeyReport, 0, len(keys)),
		Pending: c.Pending(),
		Size:    c.Len(),
	}

	for _, key := range keys {
		info, ok := c.Inspect(key)
		if !ok {
			report.Entries = append(report.Entries, KeyReport{Key: key})
			continue
		}

		report.Entries = append(report.Entries, KeyReport{
			Key:       key,
			Present:   true,
			Expired:   !info.Valid,
			Items:     countItems(info.Value),
			Remaining: info.Remaining,
		})
	}

	return report
}

// InspectAll reports on every stored key of a RequestCache.
func InspectAll(c *cache.RequestCache) Report {
	snapshot := c.Snapshot()
	keys := make([]string, len(snapshot))
	for i, info := range snapshot {
		keys[i] = info.Key
	}
	return Inspect(c, keys)
}

// countItems counts list items, or 1 for a single object.
func countItems(value any) int {
	list := api.ExtractList(value)
	if list.Strategy != api.StrategyDefault {
		return len(list.Items)
	}
	if item, _ := api.ExtractItem(value); item != nil {
		return 1
	}
	return 0
}

func (r Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "bucket %s (ttl %s): %d entries, %d pending\n", r.Bucket, r.TTL, r.Size, r.Pending)
	for _, e := range r.Entries {
		switch {
		case !e.Present:
			fmt.Fprintf(&b, "  %-8s %s\n", "missing", e.Key)
		case e.Expired:
			fmt.Fprintf(&b, "  %-8s %s items=%d\n", "expired", e.Key, e.Items)
		default:
			fmt.Fprintf(&b, "  %-8s %s items=%d remaining=%s\n", "cached", e.Key, e.Items, e.Remaining.Round(time.Second))
		}
	}

	return b.String()
}
