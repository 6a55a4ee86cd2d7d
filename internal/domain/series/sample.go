// Package series turns an indicator's sparse, dated measurements into the
// dense, windowed sequence a chart draws, and summarizes what that sequence
// shows.
//
// Everything here is pure: no I/O, no clocks unless the caller leaves
// Options.Today unset.
package series

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Sample is one dated measurement. A nil Value is an explicit gap: the day
// belongs to the series but has no measurement.
type Sample struct {
	Date  time.Time
	Value *float64
}

// Point builds a Sample with a value.
func Point(date time.Time, v float64) Sample {
	return Sample{Date: Day(date), Value: &v}
}

// Gap builds a Sample with no value.
func Gap(date time.Time) Sample {
	return Sample{Date: Day(date)}
}

// IsGap reports whether the sample carries no value.
func (s Sample) IsGap() bool { return s.Value == nil }

// Day truncates t to its calendar date, expressed as midnight UTC.
// The calendar date is read in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

type sampleJSON struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// MarshalJSON encodes the sample as {"date":"YYYY-MM-DD","value":n|null}.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{Date: FormatDate(s.Date), Value: s.Value})
}

// UnmarshalJSON decodes {"date":"YYYY-MM-DD","value":n|null}.
func (s *Sample) UnmarshalJSON(b []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d, err := ParseDate(raw.Date)
	if err != nil {
		return fmt.Errorf("sample date %q: %w", raw.Date, err)
	}
	s.Date = d
	s.Value = raw.Value
	return nil
}
