package contracts

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for every date in inputs and outputs
const DateLayout = "2006-01-02"

// Bar is one daily OHLCV record
// ⭐ SSOT: Price Oracle 응답 계약
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// IsValid checks that prices are positive and the range is consistent
func (b *Bar) IsValid() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	return b.Low <= b.High && b.Low <= b.Open && b.Low <= b.Close
}

// Day truncates t to a UTC calendar date.
// 모든 날짜 비교는 이 함수를 거친 값으로만 수행
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date (a full RFC3339 timestamp is accepted and truncated)
func ParseDay(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// DaysBetween returns the number of calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// Date is a calendar date that marshals as "YYYY-MM-DD"
type Date struct {
	time.Time
}

// NewDate truncates t to a Date
func NewDate(t time.Time) Date {
	return Date{Time: Day(t)}
}

// String implements fmt.Stringer
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler; accepts YYYY-MM-DD or RFC3339
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date must be a string, got %s", s)
	}
	t, err := ParseDay(s[1 : len(s)-1])
	if err != nil {
		return fmt.Errorf("parse date %s: %w", s, err)
	}
	d.Time = t
	return nil
}
