/*
LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package clock provides a wall-clock abstraction for a 24-hour
// broadcast day that does not necessarily start at midnight.
package clock

import "time"

// SecondsPerDay is the number of seconds in a broadcast day.
const SecondsPerDay = 86400.0

// BroadcastClock maps system time onto a broadcast day that rolls over
// at DayStart rather than midnight, with an optional fixed shift applied
// to compensate for a misconfigured system clock.
type BroadcastClock struct {
	DayStart int           // Hour (0-23) at which the broadcast day rolls over.
	Shift    time.Duration // Fixed offset added to wall-clock time.
}

// New returns a BroadcastClock with the given day-start hour and shift.
func New(dayStart int, shift time.Duration) *BroadcastClock {
	return &BroadcastClock{DayStart: dayStart, Shift: shift}
}

// now returns the unshifted wall-clock time; each method applies Shift
// itself. It refers to time.Now, which tests patch with bou.ke/monkey.
var now = time.Now

// Hour returns the current hour of day (0-23) after applying the shift.
func (c *BroadcastClock) Hour() int {
	return now().Add(c.Shift).Hour()
}

// SecondsOfDay returns the current time of day in seconds, with
// microsecond precision, after applying the shift.
func (c *BroadcastClock) SecondsOfDay() float64 {
	t := now().Add(c.Shift)
	sec := float64(t.Hour()*3600 + t.Minute()*60 + t.Second())
	micro := float64(t.Nanosecond()) / 1e9
	return sec + micro
}

// DateFor returns the current broadcast date. If seekBack is true and
// the current hour is before DayStart, the date returned is yesterday's,
// since the broadcast day spans [DayStart, DayStart+24h).
func (c *BroadcastClock) DateFor(seekBack bool) time.Time {
	t := now().Add(c.Shift)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if seekBack && t.Hour() < c.DayStart {
		return d.AddDate(0, 0, -1)
	}
	return d
}

// DayStartSeconds returns DayStart expressed in seconds-of-day.
func (c *BroadcastClock) DayStartSeconds() float64 {
	return float64(c.DayStart) * 3600
}

// InDayFrame maps a timestamp expressed in seconds-of-day into the
// broadcast-day reference frame [DayStartSeconds, DayStartSeconds+86400),
// wrapping values that fall in [0, DayStartSeconds) forward by one day
// so that comparisons against "ref = 86400 + day_start" behave correctly
// across the midnight boundary.
func (c *BroadcastClock) InDayFrame(secondsOfDay float64) float64 {
	start := c.DayStartSeconds()
	if secondsOfDay >= 0 && secondsOfDay < start {
		return secondsOfDay + SecondsPerDay
	}
	return secondsOfDay
}

// NowInDayFrame is a convenience combining SecondsOfDay and InDayFrame.
func (c *BroadcastClock) NowInDayFrame() float64 {
	return c.InDayFrame(c.SecondsOfDay())
}

// Ref returns 86400 + day_start, the upper bound of the broadcast-day
// reference frame used throughout the scheduler's day-boundary math.
func (c *BroadcastClock) Ref() float64 {
	return SecondsPerDay + c.DayStartSeconds()
}
