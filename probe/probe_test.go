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

package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProbe writes a shell script standing in for ffprobe that echoes
// stdout and exits with the given status, mirroring the pipeline
// package's "real shell commands as process stand-ins" test style.
func stubProbe(t *testing.T, stdout string, exitCode int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe-stub.sh")
	script := "#!/bin/sh\nprintf '" + stdout + "'\nexit " + itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func TestProbeReturnsTrimmedStdoutOnSuccess(t *testing.T) {
	p := &FFProbe{Path: stubProbe(t, "3600.250000\n", 0)}
	out, err := p.Probe(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "3600.250000", out)
}

func TestProbeReturnsOutputAndErrorOnNonZeroExit(t *testing.T) {
	p := &FFProbe{Path: stubProbe(t, "404 not found", 1)}
	out, err := p.Probe(context.Background(), "rtmp://camera/live")
	assert.Error(t, err)
	assert.Equal(t, "404 not found", out)
}

func TestBitRateReturnsTrimmedStdoutOnSuccess(t *testing.T) {
	p := &FFProbe{Path: stubProbe(t, "8000000\n", 0)}
	out, err := p.BitRate(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "8000000", out)
}

func TestBinDefaultsToFFProbeWhenPathEmpty(t *testing.T) {
	p := &FFProbe{}
	assert.Equal(t, "ffprobe", p.bin())
}

func TestBinUsesConfiguredPath(t *testing.T) {
	p := &FFProbe{Path: "/usr/local/bin/ffprobe"}
	assert.Equal(t, "/usr/local/bin/ffprobe", p.bin())
}
