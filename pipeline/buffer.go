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

// defaultCopyBitrate is substituted when probing the first clip of
// today's playlist for its bitrate fails in copy mode (spec.md §4.4).
const defaultCopyBitrate = 4000.0

// defaultCopySizeKB is the buffer size used when today's playlist is
// missing entirely, so buffer sizing never blocks startup on the
// Scheduler's own playlist-not-found recovery (spec.md §4.4).
const defaultCopySizeKB = 5000.0

// BufferSizeKB computes the ring-buffer's size in KB, once at startup
// (spec.md §4.4 "Buffer sizing").
//
// Compress mode sizes off the configured video bitrate. Copy mode sizes
// off the probed bitrate of today's first clip, in bits/second,
// degrading to defaultCopyBitrate when probing fails.
func BufferSizeKB(copyMode bool, videoBitrateKbps int, bufferLength float64, firstClipBitrate *float64) float64 {
	if !copyMode {
		return (float64(videoBitrateKbps)*0.125 + 281.25) * bufferLength
	}
	if firstClipBitrate == nil {
		return defaultCopySizeKB
	}
	bitrate := *firstClipBitrate
	if bitrate <= 0 {
		bitrate = defaultCopyBitrate
	}
	return bitrate * 0.125 * bufferLength
}
