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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferSizeKBCompressMode(t *testing.T) {
	// (2000*0.125 + 281.25) * 10 = (250+281.25)*10 = 5312.5
	got := BufferSizeKB(false, 2000, 10, nil)
	assert.InDelta(t, 5312.5, got, 1e-9)
}

func TestBufferSizeKBCopyModeProbed(t *testing.T) {
	bitrate := 8000.0
	// 8000*0.125*10 = 10000
	got := BufferSizeKB(true, 0, 10, &bitrate)
	assert.InDelta(t, 10000.0, got, 1e-9)
}

func TestBufferSizeKBCopyModeProbeFailedDefaultsToBitrate(t *testing.T) {
	zero := 0.0
	// probe "succeeded" with a non-positive reading -> default bitrate 4000.
	got := BufferSizeKB(true, 0, 10, &zero)
	assert.InDelta(t, defaultCopyBitrate*0.125*10, got, 1e-9)
}

func TestBufferSizeKBCopyModeNoPlaylistDefaultsToFixedSize(t *testing.T) {
	got := BufferSizeKB(true, 0, 10, nil)
	assert.Equal(t, defaultCopySizeKB, got)
}
