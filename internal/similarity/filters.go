package similarity

import (
	"fmt"
	"strings"
	"time"

	"photoagent/internal/library"
)

const dateLayout = "2006-01-02"

// Filters narrows the candidate set before ranking. Dates are YYYY-MM-DD; either
// bound may be left empty for an open-ended range.
type Filters struct {
	StartDate string
	EndDate   string
	Location  string
	People    []string
}

// dateRange is [start 00:00:00, end 23:59:59] in loc. Zero bounds are open.
type dateRange struct {
	start time.Time
	end   time.Time
}

func parseRange(f Filters, loc *time.Location) (dateRange, error) {
	var r dateRange
	if s := strings.TrimSpace(f.StartDate); s != "" {
		d, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return r, fmt.Errorf("invalid start_date %q: %w", s, err)
		}
		r.start = d
	}
	if s := strings.TrimSpace(f.EndDate); s != "" {
		d, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return r, fmt.Errorf("invalid end_date %q: %w", s, err)
		}
		r.end = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc)
	}
	return r, nil
}

func (r dateRange) active() bool {
	return !r.start.IsZero() || !r.end.IsZero()
}

func (r dateRange) contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	if !r.start.IsZero() && t.Before(r.start) {
		return false
	}
	if !r.end.IsZero() && t.After(r.end) {
		return false
	}
	return true
}

// candidates applies the filters to live records, keeping store order.
func candidates(records []library.Record, f Filters, loc *time.Location) ([]library.Record, error) {
	rng, err := parseRange(f, loc)
	if err != nil {
		return nil, err
	}
	location := strings.ToLower(strings.TrimSpace(f.Location))
	people := make([]string, 0, len(f.People))
	for _, p := range f.People {
		if p = strings.TrimSpace(p); p != "" {
			people = append(people, p)
		}
	}

	out := make([]library.Record, 0, len(records))
	for _, rec := range records {
		if rec.Deleted {
			continue
		}
		if rng.active() && !rng.contains(rec.TakenAt) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(rec.Location), location) {
			continue
		}
		if len(people) > 0 && !rec.HasPerson(people) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
