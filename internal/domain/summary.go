package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

// HourSlot is one hour of a DayChecks row.
type HourSlot uint8

const (
	SlotNoData HourSlot = iota
	SlotDown
	SlotUp
)

// MarshalJSON encodes slots as null (no data), 0 (down) or 1 (up).
func (h HourSlot) MarshalJSON() ([]byte, error) {
	switch h {
	case SlotUp:
		return []byte("1"), nil
	case SlotDown:
		return []byte("0"), nil
	default:
		return []byte("null"), nil
	}
}

func (h *HourSlot) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "null":
		*h = SlotNoData
	case "0":
		*h = SlotDown
	case "1":
		*h = SlotUp
	default:
		return fmt.Errorf("invalid hour slot %s", b)
	}
	return nil
}

// DayChecks holds 24 hourly slots for one UTC calendar day.
type DayChecks struct {
	Day    time.Time    `json:"-"`
	Checks [24]HourSlot `json:"checks"`
}

func (d DayChecks) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Day    string       `json:"day"`
		Checks [24]HourSlot `json:"checks"`
	}{Day: d.Day.Format(DayLayout), Checks: d.Checks})
}

// HourlySummary maps project -> site -> chronologically ordered days.
type HourlySummary map[string]map[string][]DayChecks

// DailySummary is the uptime of one monitor over one UTC day.
type DailySummary struct {
	ProjectID   string  `json:"project_id"`
	SiteKey     string  `json:"site_key"`
	Day         string  `json:"day"`
	TotalChecks int64   `json:"total_checks"`
	UpChecks    int64   `json:"up_checks"`
	UptimePct   float64 `json:"uptime_pct"`
}

// HourBucket is one (monitor, UTC hour) group of history rows. AllUp is false
// as soon as one check in the hour failed.
type HourBucket struct {
	ProjectID string
	SiteKey   string
	Hour      time.Time
	AllUp     bool
}

// DayBucket is one (monitor, UTC day) group of history rows.
type DayBucket struct {
	ProjectID string
	SiteKey   string
	Day       time.Time
	Total     int64
	Up        int64
}

// UptimePct is 100*up/total, or 0 when there were no checks.
func UptimePct(total, up int64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(up) / float64(total)
}

// TruncateHour returns the start of t's UTC hour.
func TruncateHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// TruncateDay returns UTC midnight of t's UTC calendar day.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// BucketHourly groups checks ordered by (project, site, checked_at) into hour
// buckets in one forward pass.
func BucketHourly(checks []CheckResult) []HourBucket {
	var out []HourBucket
	for _, c := range checks {
		hour := TruncateHour(c.CheckedAt)
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.ProjectID == c.ProjectID && last.SiteKey == c.SiteKey && last.Hour.Equal(hour) {
				last.AllUp = last.AllUp && c.IsUp
				continue
			}
		}
		out = append(out, HourBucket{ProjectID: c.ProjectID, SiteKey: c.SiteKey, Hour: hour, AllUp: c.IsUp})
	}
	return out
}

// BucketDaily groups checks ordered by (project, site, checked_at) into day
// buckets in one forward pass.
func BucketDaily(checks []CheckResult) []DayBucket {
	var out []DayBucket
	for _, c := range checks {
		day := TruncateDay(c.CheckedAt)
		n := len(out)
		if n == 0 || out[n-1].ProjectID != c.ProjectID || out[n-1].SiteKey != c.SiteKey || !out[n-1].Day.Equal(day) {
			out = append(out, DayBucket{ProjectID: c.ProjectID, SiteKey: c.SiteKey, Day: day})
			n++
		}
		out[n-1].Total++
		if c.IsUp {
			out[n-1].Up++
		}
	}
	return out
}
