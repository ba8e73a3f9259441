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

package scheduler

import "github.com/google/uuid"

// RenderCommand is the source-side argument vector for one invocation
// of the external renderer (spec.md §3, §6). The Pipeline Supervisor
// prefixes it with the fixed `ffmpeg -v error -hide_banner -nostats`
// preamble and appends the mode-dependent encoder settings before
// spawning the subprocess (spec.md §4.4, §6).
type RenderCommand struct {
	// ID correlates this command's emission log line with the Pipeline
	// Supervisor's eventual "finished piping" log line.
	ID uuid.UUID

	// Args is the ffmpeg source-and-filter argument vector, e.g.
	// ["-ss", "12", "-i", "clip.mp4", "-t", "30"].
	Args []string

	// PlayableSpan is the duration, in seconds, that this command
	// advances the virtual playhead by once emitted.
	PlayableSpan float64

	// IsDummy is true for synthetic filler (solid color/silence or the
	// configured blackclip), which drives the Scheduler's first/last
	// resync bookkeeping (spec.md §3, check_last_item).
	IsDummy bool
}

func newCommand(args []string, span float64, dummy bool) *RenderCommand {
	return &RenderCommand{ID: uuid.New(), Args: args, PlayableSpan: span, IsDummy: dummy}
}
