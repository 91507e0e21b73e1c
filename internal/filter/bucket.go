package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBucket indicates a range label outside the catalog.
var ErrUnknownBucket = errors.New("filter: unknown bucket")

// Bucket is a named inclusive range over the index value.
type Bucket struct {
	Label string  `json:"label"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
}

// Contains reports whether v falls within [Low, High].
func (b Bucket) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// catalog is the fixed bucket list in display order. The gaps (45-49.99 and
// the fractional tails of 74.55 and 94.55) are part of the published ranges.
var catalog = []Bucket{
	{Label: "25 - 34.99", Low: 25, High: 34.99},
	{Label: "35 - 44.99", Low: 35, High: 44.99},
	{Label: "50 - 54.99", Low: 50, High: 54.99},
	{Label: "55 - 64.99", Low: 55, High: 64.99},
	{Label: "65 - 74.55", Low: 65, High: 74.55},
	{Label: "75 - 84.99", Low: 75, High: 84.99},
	{Label: "85 - 94.55", Low: 85, High: 94.55},
	{Label: "95 - 100", Low: 95, High: 100},
}

// Buckets returns a copy of the bucket catalog.
func Buckets() []Bucket {
	out := make([]Bucket, len(catalog))
	copy(out, catalog)
	return out
}

// BucketLabels returns the catalog labels in display order.
func BucketLabels() []string {
	out := make([]string, len(catalog))
	for i, b := range catalog {
		out[i] = b.Label
	}
	return out
}

// LookupBucket finds a bucket by label. Surrounding spaces are ignored and an
// en dash is accepted in place of the hyphen.
func LookupBucket(label string) (Bucket, bool) {
	l := strings.TrimSpace(strings.ReplaceAll(label, "–", "-"))
	for _, b := range catalog {
		if b.Label == l {
			return b, true
		}
	}
	return Bucket{}, false
}

func resolveBuckets(labels []string) ([]Bucket, error) {
	out := make([]Bucket, 0, len(labels))
	for _, l := range labels {
		b, ok := LookupBucket(l)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownBucket, l)
		}
		out = append(out, b)
	}
	return out, nil
}
