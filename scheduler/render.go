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
	"os"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"
)

// nonLastMissingDummy is the dummy length, in seconds, substituted in
// compress mode for a missing or probe-failed source rendered by
// genInput's non-last branch, which serves both the ordinary walk of
// non-final nodes and the resync pass. It is
// a literal carried over from the original engine, distinct from the
// configurable dummy_len default (60s) used on playlist-load failure.
const nonLastMissingDummy = 20.0

// MinTruncateRender is the smallest over-time truncation span that
// still renders the clip itself rather than a plain dummy (spec.md §9
// Open Question).
const MinTruncateRender = 5.0

// Prober reports a source's duration or failure (spec.md §4.3.2).
type Prober interface {
	Probe(ctx context.Context, source string) (string, error)
}

// Notifier delivers a soft-error message (spec.md §7).
type Notifier interface {
	Notify(ctx context.Context, kind, message string) error
}

// renderConfig bundles the rendering knobs the Scheduler needs from
// config.Config, kept separate from config.Config itself so scheduler
// does not import the config package directly.
type renderConfig struct {
	Width, Height, FPS int
	CopyMode           bool
	LiveProtocols      []string
	Filler             string
	Blackclip          string
}

// renderer builds RenderCommands from playlist entries, resolving
// missing/live/invalid sources to dummies as spec.md §4.3.2 describes.
type renderer struct {
	cfg      renderConfig
	prober   Prober
	notifier Notifier
	log      logging.Logger
	logo     *LogoOverlay
}

// logoFragment returns the configured logo overlay's filtergraph
// fragment with its "[0:v]" input reference rewritten to videoIn (the
// label of the clip's video pad at the point the overlay is spliced
// in -- either the raw source "[0:v]" or a fade-out's relabelled
// output), logging and disabling the overlay for the rest of the run
// if evaluation fails (spec.md §6, a misconfigured overlay is cosmetic
// and must never block playout).
func (r *renderer) logoFragment(videoIn string) string {
	if r.logo == nil {
		return ""
	}
	fragment, err := r.logo.Render(r.cfg.Width, r.cfg.Height, r.cfg.FPS)
	if err != nil {
		if r.log != nil {
			r.log.Warning("logo overlay disabled", "error", err)
		}
		r.logo = nil
		return ""
	}
	if fragment == "" {
		return ""
	}
	if videoIn != "[0:v]" {
		fragment = strings.ReplaceAll(fragment, "[0:v]", videoIn)
	}
	return fragment
}

// logoInput returns the extra ffmpeg input arguments that open the
// configured logo file as stream 1, so a logoFragment referencing
// "[1:v]" resolves (original ffplayout.py: `_playout.logo =
// ['-thread_queue_size', '16', '-i', logo_path]`). Returns nil when no
// overlay is configured.
func (r *renderer) logoInput() []string {
	if r.logo == nil || r.logo.Path == "" {
		return nil
	}
	return []string{"-thread_queue_size", "16", "-i", r.logo.Path}
}

// seekInCutEnd builds the argument vector for seeking into inFile at
// seek and stopping at out, adding a 1-second fade-out in compress
// mode when the clip is cut short of its full duration (spec.md
// §4.3.2, §11 "Fade-out on truncated clips").
func (r *renderer) seekInCutEnd(inFile string, duration, seek, out float64) []string {
	var inpoint []string
	if seek > 0 {
		inpoint = []string{"-ss", fmtFloat(seek)}
	}

	var cutEnd, end []string
	var fadeOutVid, fadeOutAud string
	// videoPad is the label the clip's video ends up on just before a
	// logo overlay (if any) is spliced in: the fade-out relabels it off
	// "[0:v]" so the two filter stages don't both declare "[v]".
	videoPad := "[0:v]"

	if out < duration {
		length := out - seek - 1.0
		cutEnd = []string{"-t", fmtFloat(out - seek)}
		videoPad = "[vfade]"
		fadeOutVid = fmt.Sprintf("[0:v]fade=out:st=%s:d=1.0%s;", fmtFloat(length), videoPad)
		fadeOutAud = fmt.Sprintf("[0:a]afade=out:st=%s:d=1.0[a]", fmtFloat(length))
		end = []string{"-map", "[v]", "-map", "[a]"}
	} else {
		fadeOutAud = "[0:a]apad[a]"
		end = []string{"-shortest", "-map", "0:v", "-map", "[a]"}
	}

	args := append(inpoint, "-i", inFile)
	args = append(args, cutEnd...)

	if r.cfg.CopyMode {
		return args
	}

	filter := fadeOutVid + fadeOutAud
	if logo := r.logoFragment(videoPad); logo != "" {
		args = append(args, r.logoInput()...)
		filter += ";" + logo
		end = []string{"-map", "[v]", "-map", "[a]"}
	} else if videoPad == "[vfade]" {
		// No logo: the fade-out's own output is the final video pad, so
		// it must be named "[v]", not the logo-splicing "[vfade]".
		filter = strings.Replace(filter, "[vfade]", "[v]", 1)
	}
	args = append(args, "-filter_complex", filter)
	args = append(args, end...)
	return args
}

// genDummy builds the argument vector for a synthetic filler of the
// given duration: the configured blackclip in copy mode, or a
// generated solid-color + silent-audio source otherwise (spec.md §3,
// §4.3.2).
func (r *renderer) genDummy(duration float64) []string {
	if r.cfg.CopyMode {
		return []string{"-i", r.cfg.Blackclip}
	}
	return []string{
		"-f", "lavfi", "-i", fmt.Sprintf("color=s=%dx%d:d=%s", r.cfg.Width, r.cfg.Height, fmtFloat(duration)),
		"-f", "lavfi", "-i", "anullsrc=r=48000",
		"-shortest",
	}
}

// srcOrDummy resolves src to a RenderCommand: a live-protocol probe, a
// local file check, or a dummy with a notification when neither
// resolves (spec.md §4.3.2). dummyLen, when non-zero, overrides the
// fallback dummy length in compress mode only, matching the original's
// "dummy_len and not copy" rule.
func (r *renderer) srcOrDummy(ctx context.Context, src string, duration, seek, out, dummyLen float64) *RenderCommand {
	scheme, isLive := liveScheme(src, r.cfg.LiveProtocols)

	addFilter := func(args []string) []string {
		if r.cfg.CopyMode {
			return args
		}
		filter := "[0:a]apad[a]"
		videoMap := "0:v"
		if logo := r.logoFragment("[0:v]"); logo != "" {
			args = append(args, r.logoInput()...)
			filter += ";" + logo
			videoMap = "[v]"
		}
		return append(args, "-filter_complex", filter, "-shortest", "-map", videoMap, "-map", "[a]")
	}

	missing := func() *RenderCommand {
		r.notify(ctx, "clip_not_exist", "Clip not exist: "+src)
		if dummyLen != 0 && !r.cfg.CopyMode {
			return newCommand(r.genDummy(dummyLen), dummyLen, true)
		}
		return newCommand(r.genDummy(out-seek), out-seek, true)
	}

	if isLive {
		_ = scheme
		probed, err := r.prober.Probe(ctx, src)
		if err != nil || strings.Contains(probed, "404") {
			return missing()
		}
		liveDuration, ok := parseFloat(probed)
		switch {
		case ok && (seek > 0 || out < liveDuration):
			return newCommand(r.seekInCutEnd(src, liveDuration, seek, out), out-seek, false)
		case ok:
			return newCommand(addFilter([]string{"-i", src}), out-seek, false)
		default:
			// No duration found; assume 24h so the out-point truncates it.
			return newCommand(r.seekInCutEnd(src, 86400, 0, out-seek), out-seek, false)
		}
	}

	if _, err := os.Stat(src); err == nil {
		if seek > 0 || out < duration {
			return newCommand(r.seekInCutEnd(src, duration, seek, out), out-seek, false)
		}
		return newCommand(addFilter([]string{"-i", src}), out-seek, false)
	}

	return missing()
}

func (r *renderer) notify(ctx context.Context, kind, msg string) {
	if r.log != nil {
		r.log.Warning(msg)
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, kind, msg); err != nil && r.log != nil {
			r.log.Error("could not send notification", "kind", kind, "error", err)
		}
	}
}

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

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
