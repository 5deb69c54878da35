// Package calendar converts Gregorian dates into the secondary calendar the
// daily greetings are computed in.
package calendar

import (
	"fmt"
	"time"
)

// Date is a calendar-agnostic (year, month, day) triple.
type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

// MonthDay reports whether d and o fall on the same month and day.
func (d Date) MonthDay(o Date) bool {
	return d.Month == o.Month && d.Day == o.Day
}

// Converter maps a Gregorian date to and from another calendar. Conversions
// are exact inverses over the supported range.
type Converter interface {
	Name() string
	FromGregorian(t time.Time) (Date, error)
	ToGregorian(d Date) (time.Time, error)
}

// Gregorian is the identity converter.
type Gregorian struct{}

func (Gregorian) Name() string { return "gregorian" }

func (Gregorian) FromGregorian(t time.Time) (Date, error) {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m), Day: d}, nil
}

func (Gregorian) ToGregorian(d Date) (time.Time, error) {
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	if t.Day() != d.Day || int(t.Month()) != d.Month {
		return time.Time{}, fmt.Errorf("invalid gregorian date %s", d)
	}
	return t, nil
}

// ByName returns the converter registered under name.
func ByName(name string) (Converter, error) {
	switch name {
	case "", "jalali":
		return Jalali{}, nil
	case "gregorian":
		return Gregorian{}, nil
	}
	return nil, fmt.Errorf("unknown calendar %q", name)
}
