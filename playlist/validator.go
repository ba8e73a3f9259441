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

package playlist

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ausocean/utils/logging"
)

// Notifier is the subset of notify.Notifier the Validator needs. Kept
// minimal here so playlist does not import notify directly.
type Notifier interface {
	Notify(ctx context.Context, kind, message string) error
}

// Prober probes the reported duration of a live-protocol source, e.g.
// by shelling out to ffprobe. The same Prober is used by the Scheduler
// when resolving a live source to a render command (spec.md §4.3.2),
// so the "probe reported duration, fail on 404" rule has one
// implementation.
type Prober interface {
	Probe(ctx context.Context, source string) (out string, err error)
}

// Validator runs best-effort, non-blocking validation of a freshly
// loaded playlist. Any accumulated error text is delivered via the
// Notifier; validation never blocks or fails the Store's Load.
type Validator struct {
	LiveProtocols []string
	DayStart      int // Hour, used for the length sanity-check.
	Prober        Prober
	Notifier      Notifier
	log           logging.Logger
}

// NewValidator returns a Validator.
func NewValidator(liveProtocols []string, dayStart int, prober Prober, notifier Notifier, log logging.Logger) *Validator {
	return &Validator{LiveProtocols: liveProtocols, DayStart: dayStart, Prober: prober, Notifier: notifier, log: log}
}

// Validate spawns a daemonic goroutine that checks pl and reports any
// problems via the Notifier. It returns immediately.
func (v *Validator) Validate(pl *Playlist, path string) {
	go v.check(pl, path)
}

func (v *Validator) check(pl *Playlist, path string) {
	ctx := context.Background()

	var errText strings.Builder
	var counter float64

	for _, node := range pl.Program {
		var lineErr string

		if scheme, ok := liveScheme(node.Source, v.LiveProtocols); ok {
			_ = scheme
			out, err := v.Prober.Probe(ctx, node.Source)
			if err != nil || strings.Contains(out, "404") {
				lineErr += "Stream not exist! "
			}
		} else if _, err := os.Stat(node.Source); err != nil {
			lineErr += "File not exist! "
		}

		counter += node.Out - node.In

		if node.Duration <= 0 {
			lineErr += "No DURATION Value! "
		}

		if lineErr != "" {
			errText.WriteString(lineErr + "In line: " + fmt.Sprintf("%+v", node) + "\n")
		}
	}

	if errText.Len() > 0 {
		v.notify("Validation error, check json playlist, values are missing:\n" + errText.String())
	}

	v.checkStartAndLength(pl, counter)
}

// checkStartAndLength implements spec.md §4.2's sanity check: if the
// playlist declares a length, verify
// begin + counter - day_start >= length - 5. A playlist without a
// begin is checked too, with begin taken as -100 seconds.
func (v *Validator) checkStartAndLength(pl *Playlist, counter float64) {
	if !pl.HasLength {
		return
	}

	start := float64(v.DayStart) * 3600
	begin := pl.Begin
	if !pl.HasBegin {
		begin = -100.0
	}

	totalPlayTime := begin + counter - start
	if totalPlayTime < pl.Length-5 {
		v.notify(fmt.Sprintf("playlist not long enough: total play time is %.1f seconds", totalPlayTime))
	}
}

func (v *Validator) notify(msg string) {
	if v.log != nil {
		v.log.Warning("playlist validation", "message", msg)
	}
	if v.Notifier != nil {
		if err := v.Notifier.Notify(context.Background(), "validation", msg); err != nil && v.log != nil {
			v.log.Error("could not send validation notification", "error", err)
		}
	}
}

// liveScheme returns the URI scheme of source (the text before "://")
// and whether it is in protocols.
func liveScheme(source string, protocols []string) (string, bool) {
	idx := strings.Index(source, "://")
	if idx < 0 {
		return "", false
	}
	scheme := source[:idx]
	for _, p := range protocols {
		if p == scheme {
			return scheme, true
		}
	}
	return scheme, false
}
