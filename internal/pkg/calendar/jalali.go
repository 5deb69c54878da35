package calendar

import (
	"fmt"
	"time"
)

// Jalali is the Solar Hijri calendar, computed with the 33-year break-point
// arithmetic. Valid for Jalali years -61 through 3177.
type Jalali struct{}

var jalaliBreaks = [...]int{
	-61, 9, 38, 199, 426, 686, 756, 818, 1111, 1181, 1210,
	1635, 2060, 2097, 2192, 2262, 2324, 2394, 2456, 3178,
}

const unixEpochJDN = 2440588

func (Jalali) Name() string { return "jalali" }

func (Jalali) FromGregorian(t time.Time) (Date, error) {
	y, m, d := t.Date()
	return jdnToJalali(gregorianToJDN(y, int(m), d))
}

func (Jalali) ToGregorian(d Date) (time.Time, error) {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return time.Time{}, fmt.Errorf("invalid jalali date %s", d)
	}
	info, err := jalaliYear(d.Year)
	if err != nil {
		return time.Time{}, err
	}
	if d.Day > monthLength(d.Month, info.leap == 0) {
		return time.Time{}, fmt.Errorf("invalid jalali date %s", d)
	}
	jdn := gregorianToJDN(info.gy, 3, info.march) + (d.Month-1)*31 - d.Month/7*(d.Month-7) + d.Day - 1
	return time.Unix(int64(jdn-unixEpochJDN)*86400, 0).UTC(), nil
}

func monthLength(month int, leap bool) int {
	switch {
	case month <= 6:
		return 31
	case month <= 11:
		return 30
	case leap:
		return 30
	default:
		return 29
	}
}

type yearInfo struct {
	// leap is the position in the 4-year cycle; 0 marks a leap year.
	leap int
	// gy is the Gregorian year in which the Jalali year begins.
	gy int
	// march is the day of March on which Farvardin 1 falls.
	march int
}

func jalaliYear(jy int) (yearInfo, error) {
	n := len(jalaliBreaks)
	if jy < jalaliBreaks[0] || jy >= jalaliBreaks[n-1] {
		return yearInfo{}, fmt.Errorf("jalali year %d out of range", jy)
	}

	gy := jy + 621
	leapJ := -14
	jp := jalaliBreaks[0]
	jump := 0
	for i := 1; i < n; i++ {
		jm := jalaliBreaks[i]
		jump = jm - jp
		if jy < jm {
			break
		}
		leapJ += jump/33*8 + jump%33/4
		jp = jm
	}
	k := jy - jp

	leapJ += k/33*8 + (k%33+3)/4
	if jump%33 == 4 && jump-k == 4 {
		leapJ++
	}
	leapG := gy/4 - (gy/100+1)*3/4 - 150
	march := 20 + leapJ - leapG

	if jump-k < 6 {
		k = k - jump + (jump+4)/33*33
	}
	leap := ((k+1)%33 - 1) % 4
	if leap == -1 {
		leap = 4
	}
	return yearInfo{leap: leap, gy: gy, march: march}, nil
}

func jdnToJalali(jdn int) (Date, error) {
	gy, _, _ := jdnToGregorian(jdn)
	jy := gy - 621
	info, err := jalaliYear(jy)
	if err != nil {
		return Date{}, err
	}
	k := jdn - gregorianToJDN(gy, 3, info.march)
	if k >= 0 {
		if k <= 185 {
			return Date{Year: jy, Month: 1 + k/31, Day: k%31 + 1}, nil
		}
		k -= 186
	} else {
		jy--
		k += 179
		if info.leap == 1 {
			k++
		}
	}
	return Date{Year: jy, Month: 7 + k/30, Day: k%30 + 1}, nil
}

func gregorianToJDN(gy, gm, gd int) int {
	d := (gy+(gm-8)/6+100100)*1461/4 + (153*((gm+9)%12)+2)/5 + gd - 34840408
	return d - (gy+100100+(gm-8)/6)/100*3/4 + 752
}

func jdnToGregorian(jdn int) (gy, gm, gd int) {
	j := 4*jdn + 139361631
	j += (4*jdn+183187720)/146097*3/4*4 - 3908
	i := j%1461/4*5 + 308
	gd = i%153/5 + 1
	gm = i/153%12 + 1
	gy = j/1461 - 100100 + (8-gm)/6
	return gy, gm, gd
}
