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

// Package probe shells out to ffprobe to determine the reported
// duration or bitrate of a local or live-protocol media source. It is
// the one place both the Playlist Validator and the Scheduler's source
// resolution go to ask "how long is this clip" (spec.md §4.2, §4.3.2).
package probe

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// FFProbe is a Prober backed by the ffprobe binary.
type FFProbe struct {
	// Path to the ffprobe binary; defaults to "ffprobe" if empty.
	Path string
}

func (p *FFProbe) bin() string {
	if p.Path == "" {
		return "ffprobe"
	}
	return p.Path
}

// Probe runs ffprobe against source and returns its raw stdout, which
// the caller inspects for "404" (probe failed) or parses as a float
// (reported duration in seconds).
func (p *FFProbe) Probe(ctx context.Context, source string) (string, error) {
	cmd := exec.CommandContext(ctx, p.bin(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source,
	)
	out, err := cmd.Output()
	if err != nil {
		// ffprobe exits non-zero on many "stream not found" conditions;
		// still return what it wrote so the 404 sniff can run.
		return strings.TrimSpace(string(out)), errors.Wrapf(err, "ffprobe failed for %s", source)
	}
	return strings.TrimSpace(string(out)), nil
}

// BitRate runs ffprobe against source and returns its reported bit
// rate in bits/second as raw stdout text, for the Pipeline Supervisor's
// copy-mode buffer sizing (spec.md §4.4).
func (p *FFProbe) BitRate(ctx context.Context, source string) (string, error) {
	cmd := exec.CommandContext(ctx, p.bin(),
		"-v", "error",
		"-show_entries", "format=bit_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source,
	)
	out, err := cmd.Output()
	if err != nil {
		return strings.TrimSpace(string(out)), errors.Wrapf(err, "ffprobe failed for %s", source)
	}
	return strings.TrimSpace(string(out)), nil
}
