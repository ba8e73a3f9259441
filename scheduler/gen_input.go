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

import (
	"context"
	"fmt"
)

// genInput implements spec.md §4.3.1's day-boundary arithmetic table.
// It returns the RenderCommand to emit (nil means "emit nothing this
// pass") and timeLeft, where nil means "normal" (no day-boundary
// adjustment needed), and a non-nil value carries the seconds of
// over/under-run the caller must act on (spec.md §4.3 step 4).
func (s *Scheduler) genInput(ctx context.Context, src string, begin, duration, seek, out float64, last bool) (*RenderCommand, *float64) {
	start := s.clock.DayStartSeconds()
	refTime := s.clock.Ref()
	now := s.clock.NowInDayFrame()

	timeDiff := s.bufferLength + s.bufferTolerance + (out - seek) + now

	switch {
	case (timeDiff <= refTime || begin < 86400) && !last:
		cmd := s.render.srcOrDummy(ctx, src, duration, seek, out, nonLastMissingDummy)
		return cmd, nil

	case timeDiff < refTime && last:
		timeDiffFull := s.bufferLength + s.bufferTolerance + duration + now
		newLen := duration - (timeDiffFull - refTime)

		var cmd *RenderCommand
		if timeDiffFull >= refTime {
			if src == s.render.cfg.Filler {
				// Filler is end-anchored: start later, play to its natural close.
				cmd = s.render.srcOrDummy(ctx, src, duration, duration-newLen, duration, 0)
			} else {
				cmd = s.render.srcOrDummy(ctx, src, duration, 0, newLen, 0)
			}
		} else {
			cmd = s.render.srcOrDummy(ctx, src, duration, 0, duration, 0)
			s.render.notify(ctx, "playlist_short", fmt.Sprintf("playlist is not long enough: %.1f seconds needed.", newLen))
		}

		timeLeft := newLen - duration
		return cmd, &timeLeft

	case timeDiff > refTime:
		newLen := (out - seek) - (timeDiff - refTime)

		var cmd *RenderCommand
		switch {
		case newLen > MinTruncateRender:
			if src == s.render.cfg.Filler {
				cmd = s.render.srcOrDummy(ctx, src, duration, out-newLen, out, 0)
			} else {
				cmd = s.render.srcOrDummy(ctx, src, duration, seek, newLen, 0)
			}
		case newLen > 1.0:
			cmd = newCommand(s.render.genDummy(newLen), newLen, true)
		default:
			cmd = nil
		}

		timeLeft := 0.0
		return cmd, &timeLeft
	}

	// No branch matched (the degenerate case time_diff == ref_time with
	// last true): nothing to emit, no day-boundary adjustment.
	return nil, nil
}
