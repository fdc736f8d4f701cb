package utils

import "time"

// Calendar helpers for the tracker. All inputs and outputs are epoch
// milliseconds; weeks start Monday 00:00:00.000 in the given location.

func StartOfDay(ts int64, loc *time.Location) int64 {
	t := time.UnixMilli(ts).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).UnixMilli()
}

func EndOfDay(ts int64, loc *time.Location) int64 {
	t := time.UnixMilli(ts).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1).UnixMilli() - 1
}

func StartOfWeek(ts int64, loc *time.Location) int64 {
	t := time.UnixMilli(ts).In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	back := (int(t.Weekday()) + 6) % 7 // Monday -> 0, Sunday -> 6
	return midnight.AddDate(0, 0, -back).UnixMilli()
}

func EndOfWeek(ts int64, loc *time.Location) int64 {
	start := time.UnixMilli(StartOfWeek(ts, loc)).In(loc)
	return start.AddDate(0, 0, 7).UnixMilli() - 1
}

// DayStarts returns the eight day boundaries of the week containing ts:
// Monday 00:00 through the following Monday 00:00.
func DayStarts(ts int64, loc *time.Location) [8]int64 {
	start := time.UnixMilli(StartOfWeek(ts, loc)).In(loc)
	var out [8]int64
	for i := 0; i < 8; i++ {
		out[i] = start.AddDate(0, 0, i).UnixMilli()
	}
	return out
}

// NextWeeklyDigest returns the next occurrence of the given weekday/hour
// strictly after now. On the digest weekday itself the same-day slot is
// used while the hour is still ahead; once it has passed, the following
// week.
func NextWeeklyDigest(now time.Time, weekday time.Weekday, hour int, loc *time.Location) time.Time {
	n := now.In(loc)
	days := (int(weekday) - int(n.Weekday()) + 7) % 7
	next := time.Date(n.Year(), n.Month(), n.Day(), hour, 0, 0, 0, loc).AddDate(0, 0, days)
	if !next.After(n) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func ISODate(ts int64, loc *time.Location) string {
	return time.UnixMilli(ts).In(loc).Format("2006-01-02")
}

func ISOTime(ts int64) string {
	return time.UnixMilli(ts).UTC().Format("2006-01-02T15:04:05.000Z")
}

func Clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
