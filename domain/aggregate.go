package domain

import (
	"sort"
	"time"
)

// MonthlyCompleted counts the tasks a user completed in one calendar (year, month) bucket.
type MonthlyCompleted struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// BucketOf returns the UTC (year, month) bucket a completion timestamp falls into.
func BucketOf(t time.Time) (int, int) {
	u := t.UTC()
	return u.Year(), int(u.Month())
}

// SortBuckets orders buckets chronologically.
func SortBuckets(buckets []MonthlyCompleted) {
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Year != buckets[j].Year {
			return buckets[i].Year < buckets[j].Year
		}
		return buckets[i].Month < buckets[j].Month
	})
}
