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

// Package scheduler implements the core playout state machine: a lazy,
// pull-based producer of RenderCommands that tracks a virtual playhead
// against wall-clock time, resynchronizes across gaps and day
// rollovers, and substitutes dummies/truncations for missing or
// misbehaving content (spec.md §3, §4.3).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/playout/clock"
	"github.com/ausocean/playout/playlist"
)

// defaultDummyLen is the fallback filler duration used whenever the
// Scheduler has no better information (spec.md §3).
const defaultDummyLen = 60.0

// Config bundles everything the Scheduler needs beyond the Clock and
// Playlist Store: the pre-compress/output knobs that drive rendering,
// and the buffer lead-time the sync check and day-boundary math are
// relative to.
type Config struct {
	Width, Height, FPS int
	CopyMode           bool
	LiveProtocols      []string
	Filler             string
	Blackclip          string
	BufferLength       float64
	BufferTolerance    float64

	LogoPath string
	LogoExpr string
}

// Scheduler is the core state machine described in spec.md §3/§4.3. It
// is single-threaded and cooperative: callers pull one RenderCommand
// per Next call.
type Scheduler struct {
	clock *clock.BroadcastClock
	store *playlist.Store
	render *renderer

	bufferLength    float64
	bufferTolerance float64

	// Persistent state (spec.md §3).
	lastTime *float64
	first    bool
	last     bool
	listDate time.Time
	dummyLen float64

	prevCmd *RenderCommand
}

// New returns a Scheduler. notifier may be nil to disable soft-error
// reporting (tests only); prober resolves live-protocol durations.
func New(c *clock.BroadcastClock, store *playlist.Store, cfg Config, prober Prober, notifier Notifier, log logging.Logger) *Scheduler {
	logo, err := NewLogoOverlay(cfg.LogoPath, cfg.LogoExpr)
	if err != nil {
		if log != nil {
			log.Warning("logo overlay disabled at startup", "error", err)
		}
		logo = &LogoOverlay{}
	}

	return &Scheduler{
		clock: c,
		store: store,
		render: &renderer{
			cfg: renderConfig{
				Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS,
				CopyMode: cfg.CopyMode, LiveProtocols: cfg.LiveProtocols,
				Filler: cfg.Filler, Blackclip: cfg.Blackclip,
			},
			prober:   prober,
			notifier: notifier,
			log:      log,
			logo:     logo,
		},
		bufferLength:    cfg.BufferLength,
		bufferTolerance: cfg.BufferTolerance,
		first:           true,
		listDate:        c.DateFor(true),
		dummyLen:        defaultDummyLen,
	}
}

// Next returns the next RenderCommand, blocking internally (without
// ever stalling output, spec.md §8 law 1) across any number of
// "nothing to emit this pass" internal retries, or reports ok=false at
// a clean end-of-stream (spec.md §4.3 step 5).
func (s *Scheduler) Next(ctx context.Context) (*RenderCommand, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		default:
		}

		cmd, end, err := s.step(ctx)
		if err != nil {
			return nil, false, err
		}
		if end {
			return nil, false, nil
		}
		if cmd != nil {
			s.prevCmd = cmd
			if s.render.log != nil {
				s.render.log.Info("render command emitted", "id", cmd.ID.String())
			}
			return cmd, true, nil
		}
		// No command was produced this pass (the over-time branch's
		// "emit nothing" case) -- loop back exactly as the original
		// engine's generator does when it reaches the end of its body
		// without having assigned a yieldable command.
	}
}

// step runs one pass of the outer load-refresh-walk loop (spec.md §4.3
// steps 1-5), returning the command to emit (nil if none), whether the
// playlist has been cleanly exhausted (end=true), or an error.
func (s *Scheduler) step(ctx context.Context) (cmd *RenderCommand, end bool, err error) {
	pl, loadErr := s.store.Load(s.listDate)
	if loadErr != nil {
		path := s.store.PathFor(s.listDate)
		return s.errorHandling(ctx, "Playlist not exist: "+path), false, nil
	}

	s.checkLastItem()

	var begin float64
	switch {
	case pl.HasBegin:
		begin = pl.Begin
	case s.lastTime != nil:
		begin = *s.lastTime
	default:
		begin = s.clock.SecondsOfDay()
	}

	for i := range pl.Program {
		node := pl.Program[i]
		seek := node.In
		out := node.Out
		duration := node.Duration
		isLast := i == len(pl.Program)-1

		switch {
		case s.first && s.lastTime != nil && *s.lastTime < begin+duration:
			effectiveSeek := *s.lastTime - begin + seek
			c, _ := s.genInput(ctx, node.Source, begin, duration, effectiveSeek, out, false)
			s.first = false
			lt := begin
			s.lastTime = &lt
			return c, false, nil

		case s.lastTime != nil && *s.lastTime < begin:
			s.checkSync(ctx, begin)
			c, timeLeft := s.genInput(ctx, node.Source, begin, duration, seek, out, isLast)
			s.last = isLast

			switch {
			case timeLeft == nil:
				lt := begin
				s.lastTime = &lt
			case *timeLeft > 0:
				s.listDate = s.clock.DateFor(false)
				lt := begin
				s.lastTime = &lt
				s.dummyLen = *timeLeft
			default:
				s.listDate = s.clock.DateFor(false)
				lt := s.clock.DayStartSeconds() - 5
				s.lastTime = &lt
				s.store.ResetCache()
			}
			return c, false, nil
		}

		begin += out - seek
	}

	// Walked every entry without finding the current clip.
	if !pl.HasBegin || (!pl.HasLength && begin < s.clock.SecondsOfDay()) {
		if s.render.log != nil {
			s.render.log.Info("playlist reached end")
		}
		return nil, true, nil
	}

	return s.errorHandling(ctx, "Playlist not valid: "+s.store.PathFor(s.listDate)), false, nil
}

// checkLastItem implements spec.md §4.3 step 2: if the previous
// emission was a dummy (or none) and last is false, the next pass must
// resynchronize.
func (s *Scheduler) checkLastItem() {
	wasDummyOrNone := s.prevCmd == nil || s.prevCmd.IsDummy
	if wasDummyOrNone && !s.last {
		s.first = true
		lt := s.clock.InDayFrame(s.clock.SecondsOfDay() + s.dummyLen + s.bufferLength + s.bufferTolerance)
		s.lastTime = &lt
		return
	}
	s.first = false
}

// checkSync compares the playhead against wall-clock time and reports
// drift beyond tolerance (spec.md §4.3 "Sync check"). Advisory only;
// it never alters Scheduler state.
func (s *Scheduler) checkSync(ctx context.Context, begin float64) {
	now := s.clock.SecondsOfDay()
	start := s.clock.DayStartSeconds()

	tolerance := s.bufferTolerance * 4
	if s.render.cfg.CopyMode {
		tolerance = 60
	}

	dist := begin - now
	if now >= 0 && now < start && begin != start {
		dist -= clock.SecondsPerDay
	}

	if !(s.bufferLength-tolerance < dist && dist < s.bufferLength+tolerance) {
		s.render.notify(ctx, "playlist_not_sync", fmt.Sprintf("Playlist is not sync! %.1f seconds async", dist))
	}
}

// errorHandling implements spec.md §3's load/validity failure path: it
// always emits a dummy, sets up the resync bookkeeping, and reports
// the failure via the Notifier.
func (s *Scheduler) errorHandling(ctx context.Context, message string) *RenderCommand {
	cmd := newCommand(s.render.genDummy(s.dummyLen), s.dummyLen, true)

	if s.last {
		lt := s.clock.DayStartSeconds() - 5
		s.lastTime = &lt
		s.first = false
	} else {
		lt := s.clock.SecondsOfDay() + s.dummyLen + s.bufferLength + s.bufferTolerance
		lt = s.clock.InDayFrame(lt)
		s.lastTime = &lt
		s.first = true
	}

	s.render.notify(ctx, "playlist_error", message)

	s.last = false
	s.dummyLen = defaultDummyLen
	s.store.ResetCache()

	return cmd
}
