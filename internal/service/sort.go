package service

import (
	"math"
	"sort"
	"strings"

	"github.com/d60-Lab/blahbox/internal/model"
)

// SortDirection orders a cache read's items by the chosen field.
type SortDirection int

const (
	SortAscending SortDirection = iota
	SortDescending
)

// fieldComparator compares two items on one field: <0, 0, >0.
type fieldComparator func(a, b *model.InboxItem) int

// sortComparators is the closed set of sortable item fields. Anything outside
// this set is client input drift and must never fault the read path, so
// unknown names are a no-op.
var sortComparators = map[string]fieldComparator{
	"created":    func(a, b *model.InboxItem) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"author":     func(a, b *model.InboxItem) int { return strings.Compare(a.AuthorID, b.AuthorID) },
	"text":       func(a, b *model.InboxItem) int { return strings.Compare(a.Text, b.Text) },
	"type":       func(a, b *model.InboxItem) int { return strings.Compare(a.Type, b.Type) },
	"up_votes":   counterComparator(func(it *model.InboxItem) *int64 { return it.UpVotes }),
	"down_votes": counterComparator(func(it *model.InboxItem) *int64 { return it.DownVotes }),
	"views":      counterComparator(func(it *model.InboxItem) *int64 { return it.Views }),
	"opens":      counterComparator(func(it *model.InboxItem) *int64 { return it.Opens }),
}

// counterComparator orders optional counters; an unset counter sorts below any
// set one.
func counterComparator(get func(*model.InboxItem) *int64) fieldComparator {
	val := func(it *model.InboxItem) int64 {
		if v := get(it); v != nil {
			return *v
		}
		return math.MinInt64
	}
	return func(a, b *model.InboxItem) int {
		av, bv := val(a), val(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
}

// applySort stably sorts items in place by field. Empty or unknown fields
// leave the insertion order untouched.
func applySort(items []model.InboxItem, field string, dir SortDirection) {
	cmp, ok := sortComparators[field]
	if !ok {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := cmp(&items[i], &items[j])
		if dir == SortDescending {
			return c > 0
		}
		return c < 0
	})
}

// window applies start/count over items by forward scan: nil start means 0,
// nil count means all. Inbox sizes are bounded, so the scan is cheap.
func window(items []model.InboxItem, start, count *int) []model.InboxItem {
	skip := 0
	if start != nil && *start > 0 {
		skip = *start
	}
	if skip >= len(items) {
		return []model.InboxItem{}
	}
	rest := items[skip:]
	if count == nil || *count < 0 || *count >= len(rest) {
		return rest
	}
	return rest[:*count]
}
