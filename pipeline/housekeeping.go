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

package pipeline

import (
	"fmt"

	cron "github.com/robfig/cron/v3"

	"github.com/ausocean/utils/logging"
)

// Refresher is satisfied by *playlist.Store: ResetCache clears the
// cached mtime so that the next Load reparses its file. It does not
// load anything itself.
type Refresher interface {
	ResetCache()
}

// Housekeeper schedules one daily cron entry, one minute before
// dayStart, that resets the Playlist Store's cache (SPEC_FULL.md §4.4
// "periodic housekeeping via robfig/cron/v3"; grounded on
// cmd/oceancron/cron.go's scheduler wrapper over robfig/cron). The
// reset only forces the Store's next Load to reparse; the next
// broadcast day's playlist is not read ahead of time. A missed or
// delayed tick changes nothing else, since day rollover is handled
// unconditionally by the Scheduler itself.
type Housekeeper struct {
	cron *cron.Cron
	log  logging.Logger
}

// NewHousekeeper returns a Housekeeper. Start must be called to begin
// ticking.
func NewHousekeeper(log logging.Logger) *Housekeeper {
	return &Housekeeper{cron: cron.New(), log: log}
}

// Schedule installs the daily reset for dayStart (0-23). store's
// cache is reset one minute before rollover, so the Scheduler's first
// Load after rollover reparses the playlist file.
func (h *Housekeeper) Schedule(dayStart int, store Refresher) error {
	minute := 59
	hour := dayStart - 1
	if hour < 0 {
		hour = 23
	}
	spec := fmt.Sprintf("%d %d * * *", minute, hour)

	_, err := h.cron.AddFunc(spec, func() {
		store.ResetCache()
		if h.log != nil {
			h.log.Info("housekeeping: reset playlist cache ahead of day rollover")
		}
	})
	return err
}

// Start begins running scheduled entries in the background.
func (h *Housekeeper) Start() { h.cron.Start() }

// Stop halts the scheduler, waiting for any running entry to finish.
func (h *Housekeeper) Stop() { h.cron.Stop() }
