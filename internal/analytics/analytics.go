// Package analytics aggregates website request records for display.
package analytics

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"time"

	"launchpad/internal/models"
)

// DateLayout is the wire and display format of a day
const DateLayout = "2006-01-02"

// Presets are the day counts offered as quick ranges
var Presets = []int{7, 30, 90}

// Range limits analytics to a span of days. A zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

// LastDays returns the range covering the last n days including today
func LastDays(n int, now time.Time) Range {
	to := truncateDay(now)
	return Range{
		From: to.AddDate(0, 0, -n+1),
		To:   to,
	}
}

// ParseRange parses optional YYYY-MM-DD bounds
func ParseRange(from, to string) (Range, error) {
	var r Range
	if from != "" {
		t, err := time.Parse(DateLayout, from)
		if err != nil {
			return Range{}, fmt.Errorf("invalid from date %q: expected YYYY-MM-DD", from)
		}
		r.From = t
	}
	if to != "" {
		t, err := time.Parse(DateLayout, to)
		if err != nil {
			return Range{}, fmt.Errorf("invalid to date %q: expected YYYY-MM-DD", to)
		}
		r.To = t
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return Range{}, fmt.Errorf("to date %s is before from date %s", to, from)
	}
	return r, nil
}

// Values encodes the range as from/to query parameters
func (r Range) Values() url.Values {
	v := url.Values{}
	if !r.From.IsZero() {
		v.Set("from", r.From.Format(DateLayout))
	}
	if !r.To.IsZero() {
		v.Set("to", r.To.Format(DateLayout))
	}
	return v
}

// Bounds returns the formatted bounds, empty when open
func (r Range) Bounds() (from, to string) {
	if !r.From.IsZero() {
		from = r.From.Format(DateLayout)
	}
	if !r.To.IsZero() {
		to = r.To.Format(DateLayout)
	}
	return from, to
}

// Label is a human readable description of the range
func (r Range) Label() string {
	from, to := r.Bounds()
	switch {
	case from == "" && to == "":
		return "All time"
	case to == "":
		return from + " - ..."
	case from == "":
		return "... - " + to
	}
	return from + " - " + to
}

// DailyStat summarizes one day of requests
type DailyStat struct {
	Date           string `json:"date"`
	Count          int    `json:"count"`
	ResponseTimeMs *int   `json:"response_time_ms"`
}

// GroupByDate counts requests per day and averages their response time.
// Records without a response time count as requests but do not affect the
// average. The result is sorted by date.
func GroupByDate(records []models.WebsiteAnalytics) []DailyStat {
	type acc struct {
		count         int
		totalResponse int
		responseCount int
	}

	byDay := make(map[string]*acc)
	for _, rec := range records {
		key := rec.CreatedAt.Format(DateLayout)
		a, ok := byDay[key]
		if !ok {
			a = &acc{}
			byDay[key] = a
		}
		a.count++
		if rec.ResponseTimeMs != nil {
			a.totalResponse += *rec.ResponseTimeMs
			a.responseCount++
		}
	}

	stats := make([]DailyStat, 0, len(byDay))
	for day, a := range byDay {
		stat := DailyStat{Date: day, Count: a.count}
		if a.responseCount > 0 {
			avg := int(math.Round(float64(a.totalResponse) / float64(a.responseCount)))
			stat.ResponseTimeMs = &avg
		}
		stats = append(stats, stat)
	}

	// YYYY-MM-DD sorts lexically in date order
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Date < stats[j].Date
	})

	return stats
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
